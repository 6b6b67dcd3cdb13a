// Package datastore persists completed classifications to SQLite or MySQL.
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/imageclassifier/internal/conf"
	"github.com/tphakala/imageclassifier/internal/errors"
	"github.com/tphakala/imageclassifier/internal/logger"
)

// Interface abstracts the history store backend.
type Interface interface {
	Open() error
	Save(ctx context.Context, c *Classification) error
	List(ctx context.Context, limit int) ([]Classification, error)
	Get(ctx context.Context, requestID string) (*Classification, error)
	Close() error
}

// DataStore implements the queries shared by all gorm backends.
type DataStore struct {
	DB *gorm.DB
}

// New returns the store selected by the history settings.
func New(settings *conf.Settings) Interface {
	switch settings.History.Type {
	case "mysql":
		return &MySQLStore{Settings: settings}
	default:
		return &SQLiteStore{Settings: settings}
	}
}

// Save inserts a classification together with its per-model results.
func (ds *DataStore) Save(ctx context.Context, c *Classification) error {
	if ds.DB == nil {
		return errNotInitialized("save")
	}
	if err := ds.DB.WithContext(ctx).Create(c).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save").
			Context("request_id", c.RequestID).
			Build()
	}
	return nil
}

// List returns the most recent classifications, newest first.
func (ds *DataStore) List(ctx context.Context, limit int) ([]Classification, error) {
	if ds.DB == nil {
		return nil, errNotInitialized("list")
	}
	var out []Classification
	err := ds.DB.WithContext(ctx).
		Preload("Results", orderResults).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list").
			Context("limit", limit).
			Build()
	}
	return out, nil
}

// Get returns the classification stored for requestID.
func (ds *DataStore) Get(ctx context.Context, requestID string) (*Classification, error) {
	if ds.DB == nil {
		return nil, errNotInitialized("get")
	}
	var c Classification
	err := ds.DB.WithContext(ctx).
		Preload("Results", orderResults).
		Where("request_id = ?", requestID).
		Order("id DESC").
		First(&c).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get").
			Context("request_id", requestID).
			Build()
	}
	return &c, nil
}

// Close releases the underlying connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return errNotInitialized("close")
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsNotFound reports whether err means no matching record exists.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func orderResults(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func errNotInitialized(op string) error {
	return errors.Newf("database connection is not initialized").
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Build()
}

// openGorm opens a gorm connection and migrates the history tables.
func openGorm(dialector gorm.Dialector, dbType, target string, debug bool) (*gorm.DB, error) {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: NewGormLogger(200*time.Millisecond, level)})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open").
			Context("db_type", dbType).
			Build()
	}
	if err := performAutoMigration(db, dbType, target); err != nil {
		return nil, err
	}
	return db, nil
}

func performAutoMigration(db *gorm.DB, dbType, target string) error {
	start := time.Now()
	if err := db.AutoMigrate(&Classification{}, &Result{}); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("db_type", dbType).
			Build()
	}
	GetLogger().Debug("database migration completed",
		logger.String("db_type", dbType),
		logger.String("target", target),
		logger.Duration("duration", time.Since(start)))
	return nil
}

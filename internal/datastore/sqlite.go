package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"

	"github.com/tphakala/imageclassifier/internal/conf"
	"github.com/tphakala/imageclassifier/internal/errors"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open creates the database file if needed and migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.History.SQLite.Path
	if path == "" {
		path = conf.DefaultSQLitePath
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("operation", "create_database_dir").
				Context("path", dir).
				Build()
		}
	}

	// WAL lets the history API read while the recorder writes
	db, err := openGorm(sqlite.Open(path+"?_journal_mode=WAL&_busy_timeout=5000"), "SQLite", path, store.Settings.Debug)
	if err != nil {
		return err
	}
	store.DB = db
	return nil
}

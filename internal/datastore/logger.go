package datastore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/imageclassifier/internal/errors"
	"github.com/tphakala/imageclassifier/internal/logger"
)

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the datastore package logger
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("datastore")
	})
	return serviceLogger
}

// gormLog sends gorm output to the datastore logger. SQL statements are
// logged at debug level, and only when gorm runs at Info.
type gormLog struct {
	slow  time.Duration
	level gormlogger.LogLevel
}

// NewGormLogger returns a gorm logger that warns about queries slower than slow.
func NewGormLogger(slow time.Duration, level gormlogger.LogLevel) gormlogger.Interface {
	return gormLog{slow: slow, level: level}
}

func (g gormLog) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	g.level = level
	return g
}

func (g gormLog) Info(ctx context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Info {
		GetLogger().WithContext(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (g gormLog) Warn(ctx context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Warn {
		GetLogger().WithContext(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (g gormLog) Error(ctx context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Error {
		GetLogger().WithContext(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

// Trace logs one executed statement. Record-not-found is routine for Get
// and is not treated as an error.
func (g gormLog) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := g.slow > 0 && elapsed > g.slow

	var level logger.LogLevel
	switch {
	case failed && g.level >= gormlogger.Error:
		level = logger.LogLevelError
	case slow && g.level >= gormlogger.Warn:
		level = logger.LogLevelWarn
	case g.level >= gormlogger.Info:
		level = logger.LogLevelDebug
	default:
		return
	}

	sql, rows := fc()
	fields := []logger.Field{
		logger.String("sql", sql),
		logger.Int64("rows", rows),
		logger.Duration("elapsed", elapsed),
	}
	msg := "query executed"
	switch level {
	case logger.LogLevelError:
		msg = "query failed"
		fields = append(fields, logger.Error(err))
	case logger.LogLevelWarn:
		msg = "slow query"
	}
	GetLogger().WithContext(ctx).Log(level, msg, fields...)
}

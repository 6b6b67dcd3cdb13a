package api

import (
	"sync"

	"github.com/tphakala/imageclassifier/internal/logger"
)

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("api")
	})
	return serviceLogger
}

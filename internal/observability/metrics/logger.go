package metrics

import (
	"sync"

	"github.com/tphakala/imageclassifier/internal/logger"
)

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the metrics package logger
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("metrics")
	})
	return serviceLogger
}

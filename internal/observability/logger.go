package observability

import (
	"fmt"
	"sync"

	"github.com/tphakala/imageclassifier/internal/logger"
)

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the observability package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("observability")
	})
	return serviceLogger
}

// promErrorLogger routes promhttp errors into the structured logger.
type promErrorLogger struct{}

func (promErrorLogger) Println(v ...any) {
	GetLogger().Error("metrics handler error", logger.String("error", fmt.Sprint(v...)))
}

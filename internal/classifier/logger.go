// Package classifier runs images through the supported pretrained models and
// aggregates their top predictions for observers.
package classifier

import (
	"sync"

	"github.com/tphakala/imageclassifier/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the classifier package logger scoped to the classifier module.
// Uses sync.Once to ensure the logger is only initialized once.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("classifier")
	})
	return serviceLogger
}

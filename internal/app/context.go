// Package app wires configuration, logging, telemetry, metrics and the
// classifier together for the command line entry points.
package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/tphakala/imageclassifier/internal/buildinfo"
	"github.com/tphakala/imageclassifier/internal/classifier"
	"github.com/tphakala/imageclassifier/internal/conf"
	"github.com/tphakala/imageclassifier/internal/errors"
	"github.com/tphakala/imageclassifier/internal/logger"
	"github.com/tphakala/imageclassifier/internal/observability"
)

// Context holds the state shared by every command.
type Context struct {
	Build *buildinfo.Context

	// Populated from global flags.
	ConfigFile string
	Debug      bool
	Quiet      bool

	// Populated by Initialize.
	Settings *conf.Settings
	Metrics  *observability.Metrics

	centralLogger *logger.CentralLogger
}

// New returns an uninitialized context for build.
func New(build *buildinfo.Context) *Context {
	return &Context{Build: build}
}

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the app package logger
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("app")
	})
	return serviceLogger
}

// Initialize loads settings and sets up logging, telemetry and metrics.
func (c *Context) Initialize() error {
	settings, err := conf.Load(c.ConfigFile)
	if err != nil {
		return err
	}
	if c.Debug {
		settings.Debug = true
	}
	if settings.Debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = string(logger.LogLevelDebug)
		}
	}
	settings.Version = c.Build.GetVersion()

	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(cl)
	c.centralLogger = cl

	log := GetLogger()
	if settings.Sentry.Enabled {
		if err := errors.InitSentry(settings.Sentry.DSN, c.Build.GetVersion()); err != nil {
			log.Warn("error telemetry disabled", logger.Error(err))
		}
	}

	if settings.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		c.Metrics = m
	}

	c.Settings = settings
	log.Debug("initialized",
		logger.String("version", c.Build.GetVersion()),
		logger.String("config_file", settings.ConfigFile),
		logger.Bool("metrics", c.Metrics != nil))
	return nil
}

// NewDispatcher loads every model and returns a dispatcher together with a
// cleanup function that stops it and releases the models. Any model that
// fails to load is fatal and no dispatcher is returned.
func (c *Context) NewDispatcher() (*classifier.Dispatcher, func(), error) {
	log := GetLogger()

	reg, err := classifier.NewRegistry(c.Settings)
	if err != nil {
		if c.Metrics != nil {
			for _, m := range classifier.AllModelTypes() {
				c.Metrics.Classifier.SetModelLoaded(m.String(), false)
			}
		}
		return nil, nil, err
	}

	opts := []classifier.Option{classifier.WithTimeout(c.Settings.Classifier.Timeout)}
	if c.Metrics != nil {
		for _, m := range reg.Models() {
			c.Metrics.Classifier.SetModelLoaded(m.String(), true)
		}
		opts = append(opts, classifier.WithMetrics(c.Metrics.Classifier))
	}

	d := classifier.NewDispatcher(reg, opts...)
	cleanup := func() {
		d.Close()
		if err := reg.Close(); err != nil {
			log.Warn("failed to release models", logger.Error(err))
		}
	}
	return d, cleanup, nil
}

// Close flushes telemetry and closes log outputs.
func (c *Context) Close() {
	errors.FlushSentry(2 * time.Second)
	if c.centralLogger != nil {
		_ = c.centralLogger.Close()
	}
}

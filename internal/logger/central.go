package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	// LoadLocation must work on hosts without tzdata.
	_ "time/tzdata"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	global   *CentralLogger
	globalMu sync.Mutex
)

// SetGlobal installs cl as the logger returned by Global.
func SetGlobal(cl *CentralLogger) {
	globalMu.Lock()
	global = cl
	globalMu.Unlock()
}

// Global returns the installed logger, or an info-level console logger if
// SetGlobal has not been called yet.
func Global() *CentralLogger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = &CentralLogger{
			defaultLevel: slog.LevelInfo,
			timezone:     time.Local,
			handler:      newTextHandler(os.Stdout, slog.LevelInfo),
		}
	}
	return global
}

// CentralLogger owns the output handlers and per-module level overrides.
type CentralLogger struct {
	mu           sync.RWMutex
	handler      slog.Handler
	file         *lumberjack.Logger
	timezone     *time.Location
	defaultLevel slog.Level
	moduleLevels map[string]slog.Level
}

// NewCentralLogger builds console and file outputs from cfg.
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, errors.New("logging config cannot be nil")
	}
	applyConfigDefaults(cfg)

	tz := time.Local
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %s: %w", cfg.Timezone, err)
		}
		tz = loc
	}

	cl := &CentralLogger{
		timezone:     tz,
		defaultLevel: parseLogLevel(cfg.DefaultLevel),
		moduleLevels: make(map[string]slog.Level, len(cfg.ModuleLevels)),
	}
	for module, level := range cfg.ModuleLevels {
		cl.moduleLevels[module] = parseLogLevel(level)
	}

	var outputs []slog.Handler
	if cfg.Console.Enabled {
		outputs = append(outputs, newTextHandler(os.Stdout, parseLogLevel(cfg.Console.Level)))
	}
	if fo := cfg.FileOutput; fo.Enabled {
		if fo.Path == "" {
			return nil, errors.New("log file path is empty")
		}
		if err := os.MkdirAll(filepath.Dir(fo.Path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		cl.file = &lumberjack.Logger{
			Filename:   fo.Path,
			MaxSize:    fo.MaxSize,
			MaxAge:     fo.MaxAge,
			MaxBackups: fo.MaxRotatedFiles,
			Compress:   fo.Compress,
			LocalTime:  tz != time.UTC,
		}
		outputs = append(outputs, newJSONHandler(cl.file, parseLogLevel(fo.Level), tz))
	}

	switch len(outputs) {
	case 0:
		cl.handler = newTextHandler(os.Stdout, cl.defaultLevel)
	case 1:
		cl.handler = outputs[0]
	default:
		cl.handler = slog.NewMultiHandler(outputs...)
	}
	return cl, nil
}

// NewSlogLogger returns an unscoped logger writing JSON to w.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	if tz == nil {
		tz = time.UTC
	}
	lvl := parseLogLevel(string(level))
	return &moduleLogger{
		logger: slog.New(newJSONHandler(w, lvl, tz)),
		level:  lvl,
	}
}

// Module returns a logger tagged with name and filtered at that module's level.
func (cl *CentralLogger) Module(name string) Logger {
	if cl == nil {
		return nil
	}
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	level, ok := cl.moduleLevels[name]
	if !ok {
		level = cl.defaultLevel
	}
	return &moduleLogger{
		module: name,
		logger: slog.New(cl.handler),
		level:  level,
	}
}

// Rotate starts a new log file. It does nothing without file output.
func (cl *CentralLogger) Rotate() error {
	if cl == nil {
		return nil
	}
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	if cl.file == nil {
		return nil
	}
	return cl.file.Rotate()
}

// Close closes the log file, if any.
func (cl *CentralLogger) Close() error {
	if cl == nil {
		return nil
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.file == nil {
		return nil
	}
	err := cl.file.Close()
	cl.file = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

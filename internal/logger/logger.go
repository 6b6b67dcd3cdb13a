// Package logger wraps log/slog with module-scoped loggers and typed fields.
//
//	log := logger.Global().Module("classifier")
//	log.Info("model ready", logger.String("model", "ResNet50"), logger.Int("threads", 4))
//
// Console output is text without timestamps. File output is JSON, rotated by
// lumberjack. String values are passed through the redactor before writing.
package logger

import (
	"context"
	"time"
)

// LogLevel is a level name as it appears in configuration.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Logger is implemented by module loggers. A nil *moduleLogger discards
// everything, so zero-value holders never panic.
type Logger interface {
	Module(name string) Logger
	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Log(level LogLevel, msg string, fields ...Field)

	Flush() error
}

// Field is a key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field          { return Field{key, value} }
func Int(key string, value int) Field         { return Field{key, value} }
func Int64(key string, value int64) Field     { return Field{key, value} }
func Uint64(key string, value uint64) Field   { return Field{key, value} }
func Bool(key string, value bool) Field       { return Field{key, value} }
func Any(key string, value any) Field         { return Field{key, value} }
func Float32(key string, value float32) Field { return Field{key, value} }

// Duration is written as a rounded human-readable string such as "1.5s".
func Duration(key string, value time.Duration) Field { return Field{key, value} }

// Error always uses the key "error".
func Error(err error) Field {
	if err == nil {
		return Field{"error", nil}
	}
	return Field{"error", err.Error()}
}

type traceIDKey struct{}

// WithTraceID stores a trace id that WithContext attaches to entries.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the id set by WithTraceID, or "".
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

package logger

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"time"
)

// levelTrace sits below slog.LevelDebug.
const levelTrace = slog.Level(-8)

func parseLogLevel(level string) slog.Level {
	switch LogLevel(level) {
	case LogLevelTrace:
		return levelTrace
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type moduleLogger struct {
	module string
	logger *slog.Logger
	level  slog.Level
	fields []Field
}

func (m *moduleLogger) derive(module string, extra []Field) *moduleLogger {
	return &moduleLogger{
		module: module,
		logger: m.logger,
		level:  m.level,
		fields: slices.Concat(m.fields, extra),
	}
}

// Module nests name under the current module as "parent.name".
func (m *moduleLogger) Module(name string) Logger {
	if m == nil {
		return nil
	}
	if m.module != "" {
		name = m.module + "." + name
	}
	return m.derive(name, nil)
}

func (m *moduleLogger) With(fields ...Field) Logger {
	if m == nil {
		return nil
	}
	return m.derive(m.module, fields)
}

// WithContext adds a trace_id field when ctx carries one.
func (m *moduleLogger) WithContext(ctx context.Context) Logger {
	if m == nil {
		return nil
	}
	if id := TraceIDFromContext(ctx); id != "" {
		return m.derive(m.module, []Field{String("trace_id", id)})
	}
	return m
}

func (m *moduleLogger) Trace(msg string, fields ...Field) { m.emit(levelTrace, msg, fields) }
func (m *moduleLogger) Debug(msg string, fields ...Field) { m.emit(slog.LevelDebug, msg, fields) }
func (m *moduleLogger) Info(msg string, fields ...Field)  { m.emit(slog.LevelInfo, msg, fields) }
func (m *moduleLogger) Warn(msg string, fields ...Field)  { m.emit(slog.LevelWarn, msg, fields) }
func (m *moduleLogger) Error(msg string, fields ...Field) { m.emit(slog.LevelError, msg, fields) }

func (m *moduleLogger) Log(level LogLevel, msg string, fields ...Field) {
	m.emit(parseLogLevel(string(level)), msg, fields)
}

// Flush is a no-op. Both outputs write through.
func (m *moduleLogger) Flush() error { return nil }

func (m *moduleLogger) emit(level slog.Level, msg string, fields []Field) {
	if m == nil || level < m.level {
		return
	}
	attrs := make([]slog.Attr, 0, 1+len(m.fields)+len(fields))
	if m.module != "" {
		attrs = append(attrs, slog.String("module", m.module))
	}
	for _, f := range m.fields {
		attrs = append(attrs, toAttr(f))
	}
	for _, f := range fields {
		attrs = append(attrs, toAttr(f))
	}
	m.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// toAttr converts a field, redacting secrets and rounding floats to three
// decimals.
func toAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		if v != "" && isSensitiveKey(f.Key) {
			return slog.String(f.Key, "[REDACTED]")
		}
		return slog.String(f.Key, RedactSensitiveData(v))
	case float32:
		return slog.Float64(f.Key, math.Round(float64(v)*1000)/1000)
	case float64:
		return slog.Float64(f.Key, math.Round(v*1000)/1000)
	case time.Duration:
		return slog.String(f.Key, v.Round(time.Millisecond).String())
	default:
		return slog.Any(f.Key, v)
	}
}

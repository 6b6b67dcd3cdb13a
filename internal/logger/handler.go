package logger

import (
	"io"
	"log/slog"
	"time"
)

// renameTrace prints levelTrace as TRACE instead of DEBUG-4.
func renameTrace(a slog.Attr) slog.Attr {
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= levelTrace {
		return slog.String(slog.LevelKey, "TRACE")
	}
	return a
}

// newTextHandler writes console lines without a time attribute.
func newTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch {
			case len(groups) > 0:
				return a
			case a.Key == slog.TimeKey:
				return slog.Attr{}
			case a.Key == slog.LevelKey:
				return renameTrace(a)
			}
			return a
		},
	})
}

// newJSONHandler writes JSON lines with RFC3339 timestamps in tz.
func newJSONHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch {
			case len(groups) > 0:
				return a
			case a.Key == slog.TimeKey:
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.In(tz).Format(time.RFC3339))
				}
			case a.Key == slog.LevelKey:
				return renameTrace(a)
			}
			return a
		},
	})
}

// Package zlog adapts github.com/rs/zerolog to stateos.Logger, for
// programs that already standardize on zerolog and want kernel
// diagnostics folded into the same structured stream instead of the
// root package's dependency-free DefaultLogger.
package zlog

import (
	"github.com/EmreBlky/StateOS"
	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger as a stateos.Logger.
type Logger struct {
	Z zerolog.Logger
}

// New wraps z as a stateos.Logger.
func New(z zerolog.Logger) *Logger {
	return &Logger{Z: z}
}

// IsEnabled reports whether level would actually produce output,
// checked by the scheduler before it builds a LogEntry.
func (l *Logger) IsEnabled(level stateos.LogLevel) bool {
	return l.Z.GetLevel() <= zerologLevel(level)
}

// Log writes entry as a zerolog event at the mapped level.
func (l *Logger) Log(entry stateos.LogEntry) {
	evt := l.Z.WithLevel(zerologLevel(entry.Level))
	if entry.TaskID != 0 {
		evt = evt.Uint64("task", entry.TaskID)
	}
	if entry.Category != "" {
		evt = evt.Str("category", entry.Category)
	}
	if !entry.Timestamp.IsZero() {
		evt = evt.Time("ts", entry.Timestamp)
	}
	for k, v := range entry.Fields {
		evt = evt.Interface(k, v)
	}
	if entry.Err != nil {
		evt = evt.Err(entry.Err)
	}
	evt.Msg(entry.Message)
}

// zerologLevel maps stateos's four severities onto zerolog's, the same
// kind of fixed mapping a logiface-style zerolog adapter uses for its
// much larger level set.
func zerologLevel(level stateos.LogLevel) zerolog.Level {
	switch level {
	case stateos.LevelDebug:
		return zerolog.DebugLevel
	case stateos.LevelInfo:
		return zerolog.InfoLevel
	case stateos.LevelWarn:
		return zerolog.WarnLevel
	case stateos.LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.NoLevel
	}
}

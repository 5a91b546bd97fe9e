package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides structured logging backed by zerolog
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a new logger tagged with a component name.
// Level comes from LOG_LEVEL (debug/info/warn/error), defaulting to info.
func NewLogger(component string) *Logger {
	return NewLoggerTo(component, os.Stdout)
}

// NewLoggerTo creates a logger writing to the given sink (used in tests)
func NewLoggerTo(component string, out io.Writer) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL"))); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}

	zl := zerolog.New(out).Level(level).With().
		Timestamp().
		Str("component", component).
		Logger()

	return &Logger{zl: zl}
}

// Info logs informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.emit(l.zl.Info(), msg, keysAndValues...)
}

// Warn logs warning message
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.emit(l.zl.Warn(), msg, keysAndValues...)
}

// Error logs error message
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.emit(l.zl.Error(), msg, keysAndValues...)
}

// Debug logs debug message
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.emit(l.zl.Debug(), msg, keysAndValues...)
}

// emit attaches key-value pairs to a zerolog event and sends it
func (l *Logger) emit(ev *zerolog.Event, msg string, keysAndValues ...interface{}) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, keysAndValues[i+1])
	}
	ev.Msg(msg)
}

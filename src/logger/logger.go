package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	base   zerolog.Logger
	logger zerolog.Logger
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance writing to stdout.
// level accepts DEBUG, INFO, WARNING, ERROR (case-insensitive); anything
// else falls back to INFO.
func NewLogger(level string, name string) *Logger {
	out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	return NewLoggerWithWriter(out, level, name)
}

// -----------------------------------------------------------------------------

// NewLoggerWithWriter creates a Logger writing to w.
func NewLoggerWithWriter(w io.Writer, level string, name string) *Logger {
	base := zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
	return &Logger{
		name:   name,
		base:   base,
		logger: base.With().Str("component", name).Logger(),
	}
}

// -----------------------------------------------------------------------------

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{name: "nop", base: zerolog.Nop(), logger: zerolog.Nop()}
}

// -----------------------------------------------------------------------------

// Named returns a child logger sharing the same sink and level.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		name:   name,
		base:   l.base,
		logger: l.base.With().Str("component", name).Logger(),
	}
}

// -----------------------------------------------------------------------------

// ParseLevel maps the configuration log level onto zerolog levels.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARNING", "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logger.Debug().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.logger.Warn().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.logger.Info().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.Error().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.logger.WithLevel(zerolog.FatalLevel).Msg(fmt.Sprintf(format, args...))
	os.Exit(1)
}

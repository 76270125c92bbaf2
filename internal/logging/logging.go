// Package logging provides leveled, structured logging for plasmashop.
//
// Loggers write logfmt lines through go-kit/log:
//
//	ts=2024-05-01T10:11:12.345Z level=info prefix=plasmashop component=document msg="loaded" path=/x.fni
//
// Fields are attached with WithField/WithComponent and inherited by derived
// loggers; extra key/value pairs may be passed to each call.
package logging

import (
	"io"
	"os"
	"strings"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LogLevelDebug is for detailed debugging information.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is for general informational messages.
	LogLevelInfo
	// LogLevelWarn is for warning messages.
	LogLevelWarn
	// LogLevelError is for error messages.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string into a LogLevel.
// Unknown strings yield LogLevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// ValidLogLevel returns true if s names a log level.
func ValidLogLevel(s string) bool {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func (l LogLevel) filter() level.Option {
	switch l {
	case LogLevelDebug:
		return level.AllowDebug()
	case LogLevelWarn:
		return level.AllowWarn()
	case LogLevelError:
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

// Logger provides structured logging.
type Logger struct {
	base kitlog.Logger
}

// Config configures the logger.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Prefix is attached to every line as the prefix field.
	Prefix string
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LogLevelInfo,
		Output: os.Stderr,
		Prefix: "plasmashop",
	}
}

// New creates a new logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	l := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(cfg.Output))
	l = level.NewFilter(l, cfg.Level.filter())
	l = kitlog.With(l, "ts", kitlog.DefaultTimestampUTC)
	if cfg.Prefix != "" {
		l = kitlog.With(l, "prefix", cfg.Prefix)
	}
	return &Logger{base: l}
}

// Nop returns a logger that discards all output.
func Nop() *Logger {
	return &Logger{base: kitlog.NewNopLogger()}
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// WithField returns a new logger with the given field added.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{base: kitlog.With(l.base, key, value)}
}

// WithFields returns a new logger with the given fields added.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	kv := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &Logger{base: kitlog.With(l.base, kv...)}
}

// WithComponent returns a new logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

// Debug logs a debug message with optional key/value pairs.
func (l *Logger) Debug(msg string, keyvals ...any) {
	l.log(level.Debug(l.base), msg, keyvals)
}

// Info logs an info message with optional key/value pairs.
func (l *Logger) Info(msg string, keyvals ...any) {
	l.log(level.Info(l.base), msg, keyvals)
}

// Warn logs a warning message with optional key/value pairs.
func (l *Logger) Warn(msg string, keyvals ...any) {
	l.log(level.Warn(l.base), msg, keyvals)
}

// Error logs an error message with optional key/value pairs.
func (l *Logger) Error(msg string, keyvals ...any) {
	l.log(level.Error(l.base), msg, keyvals)
}

func (l *Logger) log(leveled kitlog.Logger, msg string, keyvals []any) {
	kv := make([]any, 0, len(keyvals)+2)
	kv = append(kv, "msg", msg)
	kv = append(kv, keyvals...)
	_ = leveled.Log(kv...)
}

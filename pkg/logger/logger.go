// Package logger provides the logging capability for doorman.
//
// The server configuration selects one of four sinks (stderr, a log file,
// syslog, or none) and one of three levels (error, info, debug). The package
// keeps a process-wide singleton so call sites stay terse; code that wants
// dependency injection can obtain the underlying *slog.Logger with [Get].
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

// Sink selects where log output goes, per the LogFile configuration
// directive.
type Sink int

// Sink variants.
const (
	SinkStderr Sink = iota // log to standard error
	SinkFile               // log to a file path
	SinkSyslog             // log to the system log
	SinkNone               // discard all output
)

// Options configures Initialize.
type Options struct {
	// Sink selects the output destination.
	Sink Sink

	// Path is the log file path when Sink is SinkFile.
	Path string

	// Level is the minimum level to emit.
	Level slog.Level
}

// singleton is the package-level logger created by Initialize.
// Accessed atomically.
var singleton atomic.Pointer[slog.Logger]

func init() {
	// Set a default logger so callers that skip Initialize() don't panic.
	singleton.Store(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func get() *slog.Logger {
	return singleton.Load()
}

// Get returns the underlying *slog.Logger for injection into structs.
func Get() *slog.Logger {
	return get()
}

// Set replaces the singleton logger. This is intended for tests that need to
// capture log output; production code should use [Initialize] instead.
func Set(l *slog.Logger) {
	singleton.Store(l)
}

// Initialize creates the configured logger and installs it as the singleton.
func Initialize(opts Options) error {
	handler, err := newHandler(opts)
	if err != nil {
		return err
	}
	singleton.Store(slog.New(handler))
	return nil
}

// ParseLevel maps a LogLevel directive value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "", "info":
		return slog.LevelInfo, nil
	case "error":
		return slog.LevelError, nil
	case "debug":
		return slog.LevelDebug, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// Debug logs a message at debug level using the singleton logger.
func Debug(msg string) {
	get().Debug(msg)
}

// Debugf logs a formatted message at debug level using the singleton logger.
func Debugf(msg string, args ...any) {
	get().Debug(fmt.Sprintf(msg, args...))
}

// Debugw logs a message at debug level with additional key-value pairs.
func Debugw(msg string, keysAndValues ...any) {
	get().Debug(msg, keysAndValues...)
}

// Info logs a message at info level using the singleton logger.
func Info(msg string) {
	get().Info(msg)
}

// Infof logs a formatted message at info level using the singleton logger.
func Infof(msg string, args ...any) {
	get().Info(fmt.Sprintf(msg, args...))
}

// Infow logs a message at info level with additional key-value pairs.
func Infow(msg string, keysAndValues ...any) {
	get().Info(msg, keysAndValues...)
}

// Warn logs a message at warning level using the singleton logger.
func Warn(msg string) {
	get().Warn(msg)
}

// Warnf logs a formatted message at warning level using the singleton logger.
func Warnf(msg string, args ...any) {
	get().Warn(fmt.Sprintf(msg, args...))
}

// Warnw logs a message at warning level with additional key-value pairs.
func Warnw(msg string, keysAndValues ...any) {
	get().Warn(msg, keysAndValues...)
}

// Error logs a message at error level using the singleton logger.
func Error(msg string) {
	get().Error(msg)
}

// Errorf logs a formatted message at error level using the singleton logger.
func Errorf(msg string, args ...any) {
	get().Error(fmt.Sprintf(msg, args...))
}

// Errorw logs a message at error level with additional key-value pairs.
func Errorw(msg string, keysAndValues ...any) {
	get().Error(msg, keysAndValues...)
}

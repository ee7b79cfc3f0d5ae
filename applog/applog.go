// Package applog provides general-purpose application logging.
//
// Logs are written to ~/.aibridge/logs/app.log through zerolog.
// Covers: app start/stop, config changes, relay calls, remote sessions.
// Until Init is called every function is a no-op, so libraries and tests
// never touch the user's home directory.
package applog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	mu      sync.RWMutex
	logger  = zerolog.Nop()
	logFile *os.File
	logDir  string
)

// DefaultDir returns ~/.aibridge/logs.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home directory")
	}
	return filepath.Join(homeDir, ".aibridge", "logs"), nil
}

// Init opens app.log in the default directory at the given level.
func Init(level string) error {
	dir, err := DefaultDir()
	if err != nil {
		return err
	}
	return InitDir(dir, level)
}

// InitDir opens app.log inside dir. Calling it again replaces the sink.
func InitDir(dir string, level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrapf(err, "create log dir %s", dir)
	}
	f, err := os.OpenFile(filepath.Join(dir, "app.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return errors.Wrap(err, "open app log")
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	logDir = dir
	logger = New(f, lvl)
	return nil
}

// New builds the logger format used throughout aibridge.
func New(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// ParseLevel accepts zerolog level names; empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, errors.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}

// Logger returns the application logger (a no-op logger before Init).
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Dir returns the active log directory, or "" before Init.
func Dir() string {
	mu.RLock()
	defer mu.RUnlock()
	return logDir
}

// OpenFile opens an additional append-only log file next to app.log.
// It returns nil, nil before Init.
func OpenFile(name string) (*os.File, error) {
	dir := Dir()
	if dir == "" {
		return nil, nil
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	return f, nil
}

// Info logs a general info message.
func Info(format string, args ...interface{}) {
	l := Logger()
	l.Info().Msg(fmt.Sprintf(format, args...))
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	l := Logger()
	l.Error().Msg(fmt.Sprintf(format, args...))
}

// Event logs a message under a category such as "config" or "remote".
func Event(category string, format string, args ...interface{}) {
	l := Logger()
	l.Info().Str("category", category).Msg(fmt.Sprintf(format, args...))
}

// Close flushes and closes the log file and resets to a no-op logger.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logger = zerolog.Nop()
	logDir = ""
}

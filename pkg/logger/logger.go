package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultLevel keeps a normal invocation quiet on stderr; callers parse stdout only.
const DefaultLevel = "warn"

var defaultLogger *logrus.Logger

func init() {
	defaultLogger = logrus.New()

	// Check if we're in test mode
	isTest := os.Getenv("GO_ENV") == "test"

	// Set log level from environment or default to warn
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		if isTest {
			logLevel = "silent"
		} else {
			logLevel = DefaultLevel
		}
	}

	// stdout carries the response envelope, so logs never go there
	defaultLogger.SetOutput(os.Stderr)

	if logLevel == "silent" {
		defaultLogger.SetOutput(io.Discard)
	} else {
		level, err := logrus.ParseLevel(strings.ToLower(logLevel))
		if err != nil {
			level = logrus.WarnLevel
		}
		defaultLogger.SetLevel(level)
	}

	defaultLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
}

// GetLogger returns the default logger instance
func GetLogger() *logrus.Logger {
	return defaultLogger
}

// WithName creates a child logger with a name field
func WithName(name string) *logrus.Entry {
	return defaultLogger.WithField("name", name)
}

// WithFields creates a logger with additional fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return defaultLogger.WithFields(fields)
}

// SetLevel sets the logging level
func SetLevel(level logrus.Level) {
	defaultLogger.SetLevel(level)
}

// IsLevelEnabled checks if a log level is enabled
func IsLevelEnabled(level logrus.Level) bool {
	return defaultLogger.IsLevelEnabled(level)
}

// ConfigureFromString configures the logger from a string level
// This is useful for applying configuration from config files
func ConfigureFromString(levelStr string) error {
	// Check if we're in test mode - test mode takes precedence
	if os.Getenv("GO_ENV") == "test" {
		defaultLogger.SetOutput(io.Discard)
		return nil
	}

	if levelStr == "silent" {
		defaultLogger.SetOutput(io.Discard)
		return nil
	}

	level, err := logrus.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		return err
	}
	defaultLogger.SetLevel(level)
	return nil
}

// ConfigureOutput mirrors log output into the given file in addition to stderr.
// The returned closer must be called before the process exits.
func ConfigureOutput(logFile string) (io.Closer, error) {
	if logFile == "" || os.Getenv("GO_ENV") == "test" {
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	defaultLogger.SetOutput(io.MultiWriter(os.Stderr, f))
	return f, nil
}

package logger

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the structured logging surface shared by every component.
// keysAndValues are alternating string keys and arbitrary values.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Fatal(msg string, keysAndValues ...interface{})

	// With returns a child logger that always carries the given pairs.
	With(keysAndValues ...interface{}) Logger

	// Sync flushes buffered entries. Call it once before the process exits.
	Sync() error
}

// Environment represents the deployment environment
type Environment string

const (
	Dev  Environment = "dev"
	Test Environment = "test"
	Prod Environment = "prod"
)

// Config holds the configuration for logger initialization
type Config struct {
	Environment Environment
	LogLevel    string
	LogFile     string
	MaxSize     int  // maximum size in megabytes before rotation
	MaxBackups  int  // maximum number of old log files to retain
	MaxAge      int  // maximum number of days to retain old log files
	Compress    bool // whether to compress rotated log files

	// Output receives console entries. Defaults to os.Stdout.
	Output io.Writer
}

// console reports whether entries on Output are rendered for humans.
func (c Config) console() bool {
	return c.Environment == Dev || c.Environment == ""
}

func (c Config) output() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stdout
}

// rotatingFile is the lumberjack sink for LogFile. Dev builds never write
// files; nil means no file sink.
func (c Config) rotatingFile() io.Writer {
	if c.LogFile == "" || c.console() {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

// eachPair walks alternating key/value arguments. A non-string key is
// formatted; a dangling key is reported with an empty value.
func eachPair(keysAndValues []interface{}, fn func(key string, value interface{})) {
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		if i+1 == len(keysAndValues) {
			fn(key, nil)
			return
		}
		fn(key, keysAndValues[i+1])
	}
}

// nopLogger drops everything.
type nopLogger struct{}

// Nop returns a logger that discards all entries.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
func (n nopLogger) With(...interface{}) Logger { return n }
func (nopLogger) Sync() error                  { return nil }

// OrDefault returns l, or Default when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return Default
	}
	return l
}

package logger

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger builds a zerolog logger with the same sinks as
// NewZapLogger: a pretty console in dev, JSON elsewhere and in the file.
func NewZerologLogger(config Config) (*ZerologLogger, error) {
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil || config.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	out := config.output()
	if config.console() {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	writers := []io.Writer{out}
	if file := config.rotatingFile(); file != nil {
		writers = append(writers, file)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
	return &ZerologLogger{logger: logger}, nil
}

func (z *ZerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	z.emit(z.logger.Debug(), msg, keysAndValues)
}

func (z *ZerologLogger) Info(msg string, keysAndValues ...interface{}) {
	z.emit(z.logger.Info(), msg, keysAndValues)
}

func (z *ZerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	z.emit(z.logger.Warn(), msg, keysAndValues)
}

func (z *ZerologLogger) Error(msg string, keysAndValues ...interface{}) {
	z.emit(z.logger.Error(), msg, keysAndValues)
}

func (z *ZerologLogger) Fatal(msg string, keysAndValues ...interface{}) {
	z.emit(z.logger.Fatal(), msg, keysAndValues)
}

func (z *ZerologLogger) With(keysAndValues ...interface{}) Logger {
	ctx := z.logger.With()
	eachPair(keysAndValues, func(key string, value interface{}) {
		ctx = ctx.Interface(key, value)
	})
	return &ZerologLogger{logger: ctx.Logger()}
}

// Sync is a no-op: zerolog writes through.
func (z *ZerologLogger) Sync() error { return nil }

// emit attributes the entry to the frame that called the level method.
func (z *ZerologLogger) emit(e *zerolog.Event, msg string, keysAndValues []interface{}) {
	if e == nil {
		return
	}
	eachPair(keysAndValues, func(key string, value interface{}) {
		e = e.Interface(key, value)
	})
	e.CallerSkipFrame(2).Msg(msg)
}

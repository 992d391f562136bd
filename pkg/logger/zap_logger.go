package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements Logger on top of a zap core tee.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger builds a zap logger. Output gets colored console entries in
// dev and JSON otherwise; the rotating file, when configured, always gets
// JSON.
func NewZapLogger(config Config) (*ZapLogger, error) {
	level, err := zapcore.ParseLevel(config.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	jsonConfig := zap.NewProductionEncoderConfig()
	jsonConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	jsonEncoder := zapcore.NewJSONEncoder(jsonConfig)

	outEncoder := jsonEncoder
	if config.console() {
		consoleConfig := zap.NewDevelopmentEncoderConfig()
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		outEncoder = zapcore.NewConsoleEncoder(consoleConfig)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(outEncoder, zapcore.AddSync(config.output()), level),
	}
	if file := config.rotatingFile(); file != nil {
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(file), level))
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if config.console() {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return &ZapLogger{logger: zap.New(zapcore.NewTee(cores...), opts...)}, nil
}

func (z *ZapLogger) Debug(msg string, keysAndValues ...interface{}) {
	z.logger.Debug(msg, zapFields(keysAndValues)...)
}

func (z *ZapLogger) Info(msg string, keysAndValues ...interface{}) {
	z.logger.Info(msg, zapFields(keysAndValues)...)
}

func (z *ZapLogger) Warn(msg string, keysAndValues ...interface{}) {
	z.logger.Warn(msg, zapFields(keysAndValues)...)
}

func (z *ZapLogger) Error(msg string, keysAndValues ...interface{}) {
	z.logger.Error(msg, zapFields(keysAndValues)...)
}

func (z *ZapLogger) Fatal(msg string, keysAndValues ...interface{}) {
	z.logger.Fatal(msg, zapFields(keysAndValues)...)
}

func (z *ZapLogger) With(keysAndValues ...interface{}) Logger {
	return &ZapLogger{logger: z.logger.With(zapFields(keysAndValues)...)}
}

func (z *ZapLogger) Sync() error {
	return z.logger.Sync()
}

func zapFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, (len(keysAndValues)+1)/2)
	eachPair(keysAndValues, func(key string, value interface{}) {
		fields = append(fields, zap.Any(key, value))
	})
	return fields
}

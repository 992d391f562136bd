package logger

import "fmt"

// LoggerType selects the logging backend.
type LoggerType string

const (
	Zap     LoggerType = "zap"
	Zerolog LoggerType = "zerolog"
)

// Default is the process-wide logger used when a component is given none.
var Default Logger = MustNew(Zap, DefaultConfig())

func MustNew(loggerType LoggerType, config Config) Logger {
	logger, err := New(loggerType, config)
	if err != nil {
		panic(err)
	}
	return logger
}

// New builds a logger of the given backend. An empty type means zap.
func New(loggerType LoggerType, config Config) (Logger, error) {
	switch loggerType {
	case Zerolog:
		return NewZerologLogger(config)
	case Zap, "":
		return NewZapLogger(config)
	default:
		return nil, fmt.Errorf("unknown logger type: %q", loggerType)
	}
}

// DefaultConfig is an info-level dev console with the rotation policy used
// by the service configs.
func DefaultConfig() Config {
	return Config{
		Environment: Dev,
		LogLevel:    "info",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      30,
		Compress:    true,
	}
}

// NewDevelopment is a debug-level dev console logger.
func NewDevelopment(loggerType LoggerType) (Logger, error) {
	config := DefaultConfig()
	config.LogLevel = "debug"
	return New(loggerType, config)
}

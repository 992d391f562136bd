package config

import (
	"fmt"
	"time"

	"github.com/echoface/adslot/pkg/logger"
)

// BaseConfig holds settings shared by every service binary.
type BaseConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring" yaml:"monitoring"`
}

// LoggingConfig selects the logger backend and its rotation policy.
type LoggingConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend"` // zap | zerolog
	Level      string `mapstructure:"level" yaml:"level"`
	FilePath   string `mapstructure:"file_path" yaml:"file_path"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// MonitoringConfig holds the metrics endpoint settings.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus" yaml:"prometheus"`
}

// PrometheusConfig Prometheus配置
type PrometheusConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// DefaultBaseConfig returns the defaults used when no file overrides them.
func DefaultBaseConfig() *BaseConfig {
	return &BaseConfig{
		Host:            "localhost",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Logging: LoggingConfig{
			Backend:    string(logger.Zap),
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
		Monitoring: MonitoringConfig{
			Prometheus: PrometheusConfig{
				Enabled:   true,
				Endpoint:  "/metrics",
				Namespace: "adslot",
			},
		},
	}
}

// GetAddress returns host:port, filling zero values with defaults.
func (c *BaseConfig) GetAddress() string {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewLogger builds the logger described by the logging section for runType.
func (c *BaseConfig) NewLogger(runType string) (logger.Logger, error) {
	lc := logger.DefaultConfig()
	lc.Environment = logger.Environment(runType)
	if c.Logging.Level != "" {
		lc.LogLevel = c.Logging.Level
	}
	lc.LogFile = c.Logging.FilePath
	if c.Logging.MaxSize > 0 {
		lc.MaxSize = c.Logging.MaxSize
	}
	if c.Logging.MaxBackups > 0 {
		lc.MaxBackups = c.Logging.MaxBackups
	}
	if c.Logging.MaxAge > 0 {
		lc.MaxAge = c.Logging.MaxAge
	}
	lc.Compress = c.Logging.Compress
	return logger.New(logger.LoggerType(c.Logging.Backend), lc)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ErrConfigNotFound is returned when no config file exists for the run type.
var ErrConfigNotFound = errors.New("config file not found")

// Loader reads conf/<RUN_TYPE>.yaml into a config struct.
type Loader struct {
	ServiceName string
	// ConfigDir overrides the directory lookup when set.
	ConfigDir string
}

// NewLoader creates a loader whose env overrides use serviceName as prefix,
// e.g. SLOTSERVER_PORT overrides port.
func NewLoader(serviceName string) *Loader {
	return &Loader{
		ServiceName: serviceName,
	}
}

// Load reads the config file for the current run type and unmarshals it
// into configStruct. Fields absent from the file keep the values already
// present in configStruct, so callers can pass a struct seeded with defaults.
func (l *Loader) Load(configStruct interface{}) (string, error) {
	runType := GetRunType()
	if runType != "test" && runType != "prod" && runType != "dev" {
		return "", fmt.Errorf("invalid RUN_TYPE: %s, must be 'test', 'prod', or 'dev'", runType)
	}

	configFile := filepath.Join(l.getConfigDir(), fmt.Sprintf("%s.yaml", runType))
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return configFile, fmt.Errorf("%w: %s", ErrConfigNotFound, configFile)
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(l.ServiceName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return configFile, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	if err := v.Unmarshal(configStruct); err != nil {
		return configFile, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return configFile, nil
}

// getConfigDir resolves the config directory, in order: explicit ConfigDir,
// $CONFIG_PATH/conf, conf/ next to the executable, ./conf.
func (l *Loader) getConfigDir() string {
	if l.ConfigDir != "" {
		return l.ConfigDir
	}

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return filepath.Join(configPath, "conf")
	}

	if exePath, err := os.Executable(); err == nil {
		confPath := filepath.Join(filepath.Dir(exePath), "conf")
		if _, err := os.Stat(confPath); err == nil {
			return confPath
		}
	}

	return "conf"
}

// GetRunType returns RUN_TYPE, defaulting to "test".
func GetRunType() string {
	runType := os.Getenv("RUN_TYPE")
	if runType == "" {
		return "test"
	}
	return runType
}

// IsProduction reports whether RUN_TYPE is prod.
func IsProduction() bool {
	return GetRunType() == "prod"
}

// IsTest reports whether RUN_TYPE is test.
func IsTest() bool {
	return GetRunType() == "test"
}

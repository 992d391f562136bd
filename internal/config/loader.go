package config

import (
	"fmt"

	pkgconfig "github.com/echoface/adslot/pkg/config"
)

// LoadConfig reads conf/{RUN_TYPE}.yaml on top of NewDefaultConfig. Env
// vars prefixed with serviceName override file values.
func LoadConfig(serviceName string) (*ServerConfig, error) {
	return load(pkgconfig.NewLoader(serviceName))
}

// LoadConfigFrom is LoadConfig with an explicit config directory.
func LoadConfigFrom(serviceName, dir string) (*ServerConfig, error) {
	l := pkgconfig.NewLoader(serviceName)
	l.ConfigDir = dir
	return load(l)
}

func load(l *pkgconfig.Loader) (*ServerConfig, error) {
	cfg := NewDefaultConfig()
	file, err := l.Load(cfg)
	if err != nil {
		return nil, err
	}
	cfg.RunType = pkgconfig.GetRunType()
	cfg.ConfigFile = file

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", file, err)
	}
	return cfg, nil
}

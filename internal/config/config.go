package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/echoface/adslot/internal/adsource"
	"github.com/echoface/adslot/internal/catalog"
	"github.com/echoface/adslot/internal/mediation"
	"github.com/echoface/adslot/internal/tracking"
	pkgconfig "github.com/echoface/adslot/pkg/config"
)

// ServerConfig is the slot server configuration.
type ServerConfig struct {
	pkgconfig.BaseConfig `mapstructure:",squash" yaml:",inline"`

	AdServer adsource.Config `mapstructure:"ad_server" yaml:"ad_server"`
	Tracking tracking.Config `mapstructure:"tracking" yaml:"tracking"`
	Health   HealthConfig    `mapstructure:"health" yaml:"health"`
	Catalog  CatalogConfig   `mapstructure:"catalog" yaml:"catalog"`
	Slots    SlotConfig      `mapstructure:"slots" yaml:"slots"`

	// set by the loader
	RunType    string `mapstructure:"-" yaml:"-"`
	ConfigFile string `mapstructure:"-" yaml:"-"`
}

// HealthConfig tunes the network health checker shared by all slots.
type HealthConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold" yaml:"success_threshold"`
	StaleAfter       time.Duration `mapstructure:"stale_after" yaml:"stale_after"`
}

// CatalogConfig lists the mediated networks. Definitions found in S3 take
// precedence over static ones of the same type.
type CatalogConfig struct {
	S3       catalog.S3Config            `mapstructure:"s3" yaml:"s3"`
	Networks []catalog.NetworkDefinition `mapstructure:"networks" yaml:"networks"`
}

// SlotConfig holds the defaults applied to newly created slots.
type SlotConfig struct {
	MaxSlots          int    `mapstructure:"max_slots" yaml:"max_slots"`
	Testing           bool   `mapstructure:"testing" yaml:"testing"`
	LocationAwareness string `mapstructure:"location_awareness" yaml:"location_awareness"`
	LocationPrecision int    `mapstructure:"location_precision" yaml:"location_precision"`
}

func NewDefaultConfig() *ServerConfig {
	base := pkgconfig.DefaultBaseConfig()
	return &ServerConfig{
		BaseConfig: *base,
		AdServer:   adsource.DefaultConfig(),
		Tracking:   tracking.DefaultConfig(),
		Health: HealthConfig{
			FailureThreshold: 3,
			SuccessThreshold: 1,
			StaleAfter:       10 * time.Minute,
		},
		Catalog: CatalogConfig{
			S3: catalog.S3Config{
				Region:  "us-east-1",
				Prefix:  "networks/",
				Timeout: 10 * time.Second,
			},
		},
		Slots: SlotConfig{
			MaxSlots:          1024,
			LocationAwareness: mediation.LocationNormal.String(),
			LocationPrecision: mediation.DefaultLocationPrecision,
		},
	}
}

// Validate reports the first setting the server cannot start with.
func (c *ServerConfig) Validate() error {
	if c.AdServer.Endpoint == "" {
		return errors.New("ad_server.endpoint is required")
	}
	if c.Slots.MaxSlots <= 0 {
		return fmt.Errorf("slots.max_slots must be positive, got %d", c.Slots.MaxSlots)
	}
	if _, err := mediation.ParseLocationAwareness(c.Slots.LocationAwareness); err != nil {
		return fmt.Errorf("slots.location_awareness: %w", err)
	}
	if c.Catalog.S3.Enabled && c.Catalog.S3.BucketName == "" {
		return errors.New("catalog.s3.bucket_name is required when s3 is enabled")
	}
	for i, def := range c.Catalog.Networks {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("catalog.networks[%d]: %w", i, err)
		}
	}
	return nil
}

// SlotMetadata returns the metadata a new slot starts with.
func (c *ServerConfig) SlotMetadata(adUnitID string) mediation.SlotMetadata {
	awareness, _ := mediation.ParseLocationAwareness(c.Slots.LocationAwareness)
	return mediation.SlotMetadata{
		AdUnitID:          adUnitID,
		LocationAwareness: awareness,
		LocationPrecision: c.Slots.LocationPrecision,
		Testing:           c.Slots.Testing,
	}
}

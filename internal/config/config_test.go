package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoface/adslot/internal/catalog"
	"github.com/echoface/adslot/internal/mediation"
)

func TestLoadConfigFrom(t *testing.T) {
	t.Setenv("RUN_TYPE", "test")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.yaml"), []byte(`
port: 9191
ad_server:
  endpoint: http://ads.local/m/ad
  timeout: 750ms
  retry:
    max_retries: 1
tracking:
  max_concurrency: 2
catalog:
  networks:
    - type: network-B
      endpoint: http://b.local/creative
      ttl: 10m
      enabled: true
slots:
  testing: true
  location_awareness: truncated
`), 0o644))

	cfg, err := LoadConfigFrom("adslot_unittest", dir)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.RunType)
	assert.Equal(t, filepath.Join(dir, "test.yaml"), cfg.ConfigFile)
	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, "http://ads.local/m/ad", cfg.AdServer.Endpoint)
	assert.Equal(t, 750*time.Millisecond, cfg.AdServer.Timeout)
	assert.Equal(t, 1, cfg.AdServer.Retry.MaxRetries)
	assert.Equal(t, 2, cfg.Tracking.MaxConcurrency)
	assert.Equal(t, []catalog.NetworkDefinition{{
		Type:     "network-B",
		Endpoint: "http://b.local/creative",
		TTL:      "10m",
		Enabled:  true,
	}}, cfg.Catalog.Networks)

	// defaults survive for keys the file omits
	def := NewDefaultConfig()
	assert.Equal(t, def.AdServer.Breaker, cfg.AdServer.Breaker)
	assert.Equal(t, def.Tracking.BatchSize, cfg.Tracking.BatchSize)
	assert.Equal(t, def.Slots.MaxSlots, cfg.Slots.MaxSlots)

	meta := cfg.SlotMetadata("unit-1")
	assert.Equal(t, "unit-1", meta.AdUnitID)
	assert.True(t, meta.Testing)
	assert.Equal(t, mediation.LocationTruncated, meta.LocationAwareness)
	assert.Equal(t, mediation.DefaultLocationPrecision, meta.LocationPrecision)
}

func TestLoadConfigFrom_Invalid(t *testing.T) {
	t.Setenv("RUN_TYPE", "test")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.yaml"), []byte(`
slots:
  location_awareness: everywhere
`), 0o644))

	_, err := LoadConfigFrom("adslot_unittest", dir)
	assert.ErrorContains(t, err, "slots.location_awareness")
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		errMsg string
	}{
		{"defaults", func(*ServerConfig) {}, ""},
		{"no endpoint", func(c *ServerConfig) { c.AdServer.Endpoint = "" }, "ad_server.endpoint"},
		{"no slots", func(c *ServerConfig) { c.Slots.MaxSlots = 0 }, "slots.max_slots"},
		{"s3 without bucket", func(c *ServerConfig) { c.Catalog.S3.Enabled = true }, "bucket_name"},
		{"bad network", func(c *ServerConfig) {
			c.Catalog.Networks = []catalog.NetworkDefinition{{Type: "x"}}
		}, "catalog.networks[0]"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

// Package catalog loads the network adapter catalogue: which HTTP networks
// exist and how to reach them.
package catalog

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/echoface/adslot/internal/adapters/network"
	"github.com/echoface/adslot/internal/mediation"
	"github.com/echoface/adslot/pkg/jsonx"
)

// NetworkDefinition describes one network adapter type.
type NetworkDefinition struct {
	Type        string `json:"type" mapstructure:"type" yaml:"type"`
	Endpoint    string `json:"endpoint" mapstructure:"endpoint" yaml:"endpoint"`
	PlacementID string `json:"placement_id,omitempty" mapstructure:"placement_id" yaml:"placement_id"`
	TTL         string `json:"ttl,omitempty" mapstructure:"ttl" yaml:"ttl"`
	Enabled     bool   `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
}

// Validate checks the fields a network adapter cannot do without.
func (d NetworkDefinition) Validate() error {
	if d.Type == "" {
		return fmt.Errorf("network definition: type is required")
	}
	if d.Endpoint == "" {
		return fmt.Errorf("network %q: endpoint is required", d.Type)
	}
	if d.TTL != "" {
		if _, err := time.ParseDuration(d.TTL); err != nil {
			return fmt.Errorf("network %q: invalid ttl %q: %w", d.Type, d.TTL, err)
		}
	}
	return nil
}

// Params are the adapter defaults this definition provides.
func (d NetworkDefinition) Params() mediation.Params {
	p := mediation.Params{
		network.ParamNetwork:  d.Type,
		network.ParamEndpoint: d.Endpoint,
	}
	if d.PlacementID != "" {
		p[network.ParamPlacementID] = d.PlacementID
	}
	if d.TTL != "" {
		p[network.ParamTTL] = d.TTL
	}
	return p
}

// DecodeDefinitions decodes one definition or a JSON array of them.
func DecodeDefinitions(data []byte) ([]NetworkDefinition, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var defs []NetworkDefinition
	if data[0] == '[' {
		if err := jsonx.Unmarshal(data, &defs); err != nil {
			return nil, fmt.Errorf("decode network definitions: %w", err)
		}
	} else {
		var def NetworkDefinition
		if err := jsonx.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("decode network definition: %w", err)
		}
		defs = append(defs, def)
	}

	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

// Register binds every enabled definition in reg to a network adapter
// factory using client. It returns the registered types.
func Register(reg *mediation.Registry, defs []NetworkDefinition, client *http.Client) ([]string, error) {
	var registered []string
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		if err := def.Validate(); err != nil {
			return registered, err
		}
		if err := reg.Register(def.Type, network.NewFactory(client, def.Params())); err != nil {
			return registered, fmt.Errorf("register network %q: %w", def.Type, err)
		}
		registered = append(registered, def.Type)
	}
	return registered, nil
}

package slotserver

import (
	"context"
	"fmt"

	"github.com/echoface/adslot/internal/adapters/customevent"
	"github.com/echoface/adslot/internal/catalog"
)

// RegisterAdapters fills the adapter registry: the custom event adapter,
// then one network adapter per enabled catalogue definition. Definitions
// read from S3 override static ones of the same type.
func (ac *AppContext) RegisterAdapters(ctx context.Context, events *customevent.EventRegistry) error {
	if events == nil {
		events = customevent.NewEventRegistry()
	}
	if err := customevent.Register(ac.Registry, events); err != nil {
		return err
	}

	defs := ac.Config.Catalog.Networks
	if s3 := ac.Config.Catalog.S3; s3.Enabled {
		loader, err := catalog.NewS3Loader(s3, ac.Logger.With("component", "catalog"))
		if err != nil {
			return fmt.Errorf("failed to create catalogue loader: %w", err)
		}
		remote, err := loader.LoadAll(ctx)
		if err != nil {
			return err
		}
		defs = mergeDefinitions(remote, defs)
	}

	registered, err := catalog.Register(ac.Registry, defs, ac.HTTPClient)
	if err != nil {
		return err
	}
	ac.SetNetworks(registered)
	ac.Logger.Info("adapters registered",
		"types", ac.Registry.Types(),
		"custom_events", events.ClassNames())
	return nil
}

func mergeDefinitions(primary, fallback []catalog.NetworkDefinition) []catalog.NetworkDefinition {
	seen := make(map[string]bool, len(primary))
	merged := make([]catalog.NetworkDefinition, 0, len(primary)+len(fallback))
	for _, def := range primary {
		seen[def.Type] = true
		merged = append(merged, def)
	}
	for _, def := range fallback {
		if !seen[def.Type] {
			merged = append(merged, def)
		}
	}
	return merged
}

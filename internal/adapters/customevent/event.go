// Package customevent adapts app-provided custom events, looked up by class
// name, to the mediation adapter contract.
package customevent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/echoface/adslot/internal/mediation"
)

// ErrUnknownEvent is returned for class names nobody registered.
var ErrUnknownEvent = errors.New("custom event not registered")

type (
	// Event is one custom integration. Load must eventually call exactly one
	// of DidLoad or DidFail unless Invalidate comes first.
	Event interface {
		Load(ctx context.Context, host mediation.Host, classData string, listener EventListener)
		Show()
		Invalidate()
	}

	// EventListener receives an event's outcomes.
	EventListener interface {
		DidLoad()
		DidFail(err error)
		DidClick()
		DidExpire()
	}

	EventFactory func() Event
)

// EventRegistry maps class names to event factories.
type EventRegistry struct {
	mu      sync.RWMutex
	factory map[string]EventFactory
}

// NewEventRegistry returns a registry holding the built-in events.
func NewEventRegistry() *EventRegistry {
	r := &EventRegistry{factory: make(map[string]EventFactory)}
	r.factory[StaticClassName] = NewStaticEvent
	return r
}

// RegisterEvent binds className to factory.
func (r *EventRegistry) RegisterEvent(className string, factory EventFactory) error {
	if className == "" || factory == nil {
		return fmt.Errorf("custom event %q: class name and factory are required", className)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factory[className]; exists {
		return fmt.Errorf("custom event %q already registered", className)
	}
	r.factory[className] = factory
	return nil
}

// NewEvent instantiates className.
func (r *EventRegistry) NewEvent(className string) (Event, error) {
	r.mu.RLock()
	factory, exists := r.factory[className]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, className)
	}
	return factory(), nil
}

// ClassNames returns the registered class names, sorted.
func (r *EventRegistry) ClassNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factory))
	for name := range r.factory {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

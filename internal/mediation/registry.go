package mediation

import (
	"fmt"
	"sort"
	"sync"

	"github.com/echoface/adslot/pkg/utils"
)

// Registry maps adapter type tokens to factories. It is populated at
// process start and read afterwards.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register binds typeToken to factory. Tokens are registered once.
func (r *Registry) Register(typeToken string, factory Factory) error {
	if typeToken == "" {
		return fmt.Errorf("adapter type token cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("cannot register nil factory for %q", typeToken)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[typeToken]; exists {
		return fmt.Errorf("adapter type %q is already registered", typeToken)
	}
	r.factories[typeToken] = factory
	return nil
}

// MustRegister is Register for init-time wiring; it panics on error.
func (r *Registry) MustRegister(typeToken string, factory Factory) {
	utils.PanicIfErr(r.Register(typeToken, factory), "register adapter %q", typeToken)
}

// Create returns a new adapter for typeToken, or ErrAdapterNotFound.
func (r *Registry) Create(typeToken string) (Adapter, error) {
	r.mu.RLock()
	factory, exists := r.factories[typeToken]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrAdapterNotFound, typeToken)
	}
	adapter := factory()
	if adapter == nil {
		return nil, fmt.Errorf("%w: factory for %q returned nil", ErrAdapterNotFound, typeToken)
	}
	return adapter, nil
}

// Has reports whether typeToken is registered.
func (r *Registry) Has(typeToken string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[typeToken]
	return exists
}

// Types returns the registered tokens, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

var (
	defaultRegistry *Registry
	registryOnce    sync.Once
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	registryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Register binds typeToken in the default registry.
func Register(typeToken string, factory Factory) error {
	return DefaultRegistry().Register(typeToken, factory)
}

// Create instantiates typeToken from the default registry.
func Create(typeToken string) (Adapter, error) {
	return DefaultRegistry().Create(typeToken)
}

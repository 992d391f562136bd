package mediation

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndCreate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("network-B", func() Adapter { return &MockAdapter{} }))

	a1, err := r.Create("network-B")
	require.NoError(t, err)
	a2, err := r.Create("network-B")
	require.NoError(t, err)
	assert.NotSame(t, a1, a2, "every Create must return a fresh instance")

	assert.True(t, r.Has("network-B"))
	assert.False(t, r.Has("network-A"))
}

func TestRegistry_CreateUnknown(t *testing.T) {
	r := NewRegistry()
	a, err := r.Create("network-A")
	assert.Nil(t, a)
	assert.True(t, errors.Is(err, ErrAdapterNotFound))
	assert.Contains(t, err.Error(), "network-A")
}

func TestRegistry_RegisterRejects(t *testing.T) {
	r := NewRegistry()
	factory := func() Adapter { return &MockAdapter{} }

	assert.Error(t, r.Register("", factory))
	assert.Error(t, r.Register("x", nil))
	require.NoError(t, r.Register("x", factory))
	assert.Error(t, r.Register("x", factory))
	assert.Panics(t, func() { r.MustRegister("x", factory) })
}

func TestRegistry_NilFactoryResult(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("broken", func() Adapter { return nil })

	_, err := r.Create("broken")
	assert.ErrorIs(t, err, ErrAdapterNotFound)
}

func TestRegistry_Types(t *testing.T) {
	r := NewRegistry()
	for _, tok := range []string{"mraid", "custom_event", "admob"} {
		r.MustRegister(tok, func() Adapter { return &MockAdapter{} })
	}
	assert.Equal(t, []string{"admob", "custom_event", "mraid"}, r.Types())
}

func TestRegistry_ConcurrentCreate(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("network-B", func() Adapter { return &MockAdapter{} })

	var wg sync.WaitGroup
	for n := 0; n < 16; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Create("network-B")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestDefaultRegistry(t *testing.T) {
	assert.Same(t, DefaultRegistry(), DefaultRegistry())

	token := "default-registry-test"
	require.NoError(t, Register(token, func() Adapter { return &MockAdapter{} }))
	a, err := Create(token)
	require.NoError(t, err)
	assert.NotNil(t, a)
}

package customevent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoface/adslot/internal/mediation"
	"github.com/echoface/adslot/pkg/logger"
)

type mockHost struct {
	mu        sync.Mutex
	displayed []mediation.Content
}

func (h *mockHost) SlotID() string                   { return "slot-1" }
func (h *mockHost) Metadata() mediation.SlotMetadata { return mediation.SlotMetadata{} }
func (h *mockHost) Context() context.Context         { return context.Background() }
func (h *mockHost) Logger() logger.Logger            { return logger.Nop() }

func (h *mockHost) Display(c mediation.Content) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.displayed = append(h.displayed, c)
}

type mockListener struct {
	mu     sync.Mutex
	events []string
}

func (l *mockListener) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *mockListener) OnLoaded(mediation.Adapter)  { l.add("loaded") }
func (l *mockListener) OnFailed(mediation.Adapter)  { l.add("failed") }
func (l *mockListener) OnClicked(mediation.Adapter) { l.add("clicked") }
func (l *mockListener) OnExpired(mediation.Adapter) { l.add("expired") }

func (l *mockListener) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// manualEvent lets tests decide when an event resolves.
type manualEvent struct {
	listener    EventListener
	shown       int
	invalidated int
}

func (e *manualEvent) Load(_ context.Context, _ mediation.Host, _ string, l EventListener) {
	e.listener = l
}
func (e *manualEvent) Show()       { e.shown++ }
func (e *manualEvent) Invalidate() { e.invalidated++ }

func newAdapter(t *testing.T, events *EventRegistry, className, classData string) (mediation.Adapter, *mockHost, *mockListener) {
	t.Helper()
	reg := mediation.NewRegistry()
	require.NoError(t, Register(reg, events))
	a, err := reg.Create(mediation.CustomEventType)
	require.NoError(t, err)

	host, l := &mockHost{}, &mockListener{}
	h := mediation.CustomEventHandoff(className, classData)
	require.NoError(t, a.Init(host, h.Params, l))
	return a, host, l
}

func TestStaticEvent_LoadShowClick(t *testing.T) {
	a, host, l := newAdapter(t, NewEventRegistry(), StaticClassName, `{"markup":"<i>hi</i>","clickthrough_url":"http://adv"}`)

	a.LoadInterstitial()
	assert.Equal(t, []string{"loaded"}, l.Events())

	a.ShowInterstitial()
	require.Len(t, host.displayed, 1)
	assert.Equal(t, "<i>hi</i>", host.displayed[0].Markup)
	assert.Equal(t, StaticClassName, host.displayed[0].Network)

	a.(*Adapter).Click()
	assert.Equal(t, []string{"loaded", "clicked"}, l.Events())
}

func TestStaticEvent_BadClassData(t *testing.T) {
	for name, data := range map[string]string{
		"not json":  "{",
		"no markup": `{}`,
		"bad ttl":   `{"markup":"x","ttl":"later"}`,
	} {
		data := data
		t.Run(name, func(t *testing.T) {
			a, _, l := newAdapter(t, NewEventRegistry(), StaticClassName, data)
			a.LoadInterstitial()
			assert.Equal(t, []string{"failed"}, l.Events())
		})
	}
}

func TestStaticEvent_Expires(t *testing.T) {
	a, _, l := newAdapter(t, NewEventRegistry(), StaticClassName, `{"markup":"x","ttl":"10ms"}`)
	a.LoadInterstitial()

	assert.Eventually(t, func() bool {
		ev := l.Events()
		return len(ev) == 2 && ev[1] == "expired"
	}, time.Second, 5*time.Millisecond)
	a.Invalidate()
}

func TestAdapter_UnknownClassFails(t *testing.T) {
	a, _, l := newAdapter(t, NewEventRegistry(), "com.example.Missing", "")
	a.LoadInterstitial()
	assert.Equal(t, []string{"failed"}, l.Events())
}

func TestAdapter_InitRequiresClassName(t *testing.T) {
	a := NewFactory(NewEventRegistry())()
	err := a.Init(&mockHost{}, mediation.Params{}, &mockListener{})
	assert.Error(t, err)
}

func TestAdapter_InvalidateSuppressesEvent(t *testing.T) {
	events := NewEventRegistry()
	ev := &manualEvent{}
	require.NoError(t, events.RegisterEvent("manual", func() Event { return ev }))

	a, _, l := newAdapter(t, events, "manual", "")
	a.LoadInterstitial()
	require.NotNil(t, ev.listener)

	a.Invalidate()
	a.Invalidate()
	ev.listener.DidLoad()
	ev.listener.DidFail(errors.New("late"))
	a.ShowInterstitial()

	assert.Empty(t, l.Events())
	assert.Equal(t, 1, ev.invalidated)
	assert.Equal(t, 0, ev.shown)
}

func TestAdapter_ClickBeforeLoadIgnored(t *testing.T) {
	events := NewEventRegistry()
	ev := &manualEvent{}
	require.NoError(t, events.RegisterEvent("manual", func() Event { return ev }))

	a, _, l := newAdapter(t, events, "manual", "")
	a.LoadInterstitial()
	ev.listener.DidClick()
	ev.listener.DidLoad()
	ev.listener.DidClick()
	a.ShowInterstitial()

	assert.Equal(t, []string{"loaded", "clicked"}, l.Events())
	assert.Equal(t, 1, ev.shown)
}

func TestEventRegistry(t *testing.T) {
	events := NewEventRegistry()
	assert.Equal(t, []string{StaticClassName}, events.ClassNames())

	assert.Error(t, events.RegisterEvent(StaticClassName, NewStaticEvent))
	assert.Error(t, events.RegisterEvent("", NewStaticEvent))

	_, err := events.NewEvent("nope")
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

package customevent

import (
	"context"
	"fmt"
	"sync"

	"github.com/echoface/adslot/internal/mediation"
	"github.com/echoface/adslot/pkg/logger"
)

// NewFactory returns a mediation factory whose adapters resolve events from
// events.
func NewFactory(events *EventRegistry) mediation.Factory {
	return func() mediation.Adapter {
		return &Adapter{events: events}
	}
}

// Register installs the custom event adapter in reg under
// mediation.CustomEventType.
func Register(reg *mediation.Registry, events *EventRegistry) error {
	return reg.Register(mediation.CustomEventType, NewFactory(events))
}

// Adapter bridges one custom event to the mediation adapter contract.
type Adapter struct {
	events *EventRegistry

	mu          sync.Mutex
	host        mediation.Host
	listener    mediation.AdapterListener
	log         logger.Logger
	className   string
	classData   string
	event       Event
	loaded      bool
	cancel      context.CancelFunc
	invalidated bool
}

func (a *Adapter) Init(host mediation.Host, params mediation.Params, listener mediation.AdapterListener) error {
	className := params.Get(mediation.ParamClassName)
	if className == "" {
		return fmt.Errorf("custom event: %s is required", mediation.ParamClassName)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.host = host
	a.listener = listener
	a.log = logger.OrDefault(host.Logger()).With("adapter", "custom_event", "class_name", className)
	a.className = className
	a.classData = params.Get(mediation.ParamClassData)
	return nil
}

// LoadInterstitial instantiates the event and starts it. An unknown class
// fails the load.
func (a *Adapter) LoadInterstitial() {
	a.mu.Lock()
	if a.invalidated || a.event != nil || a.host == nil {
		a.mu.Unlock()
		return
	}
	event, err := a.events.NewEvent(a.className)
	if err != nil {
		listener := a.listener
		a.mu.Unlock()
		a.log.Warn("couldn't find custom event", "error", err)
		listener.OnFailed(a)
		return
	}
	ctx, cancel := context.WithCancel(a.host.Context())
	a.event = event
	a.cancel = cancel
	host, classData := a.host, a.classData
	a.mu.Unlock()

	event.Load(ctx, host, classData, bridge{a})
}

func (a *Adapter) ShowInterstitial() {
	a.mu.Lock()
	event := a.event
	ready := a.loaded && !a.invalidated
	a.mu.Unlock()

	if ready {
		event.Show()
	}
}

// Click reports a click on the shown event.
func (a *Adapter) Click() {
	bridge{a}.DidClick()
}

func (a *Adapter) Invalidate() {
	a.mu.Lock()
	if a.invalidated {
		a.mu.Unlock()
		return
	}
	a.invalidated = true
	event := a.event
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()

	if event != nil {
		event.Invalidate()
	}
}

// deliver runs fn with the listener unless the adapter was invalidated.
func (a *Adapter) deliver(fn func(l mediation.AdapterListener), update func()) {
	a.mu.Lock()
	if a.invalidated || a.listener == nil {
		a.mu.Unlock()
		return
	}
	if update != nil {
		update()
	}
	listener := a.listener
	a.mu.Unlock()

	fn(listener)
}

// bridge turns event outcomes into adapter callbacks.
type bridge struct {
	a *Adapter
}

func (b bridge) DidLoad() {
	b.a.deliver(func(l mediation.AdapterListener) { l.OnLoaded(b.a) }, func() { b.a.loaded = true })
}

func (b bridge) DidFail(err error) {
	b.a.log.Info("custom event failed", "error", err)
	b.a.deliver(func(l mediation.AdapterListener) { l.OnFailed(b.a) }, func() { b.a.loaded = false })
}

func (b bridge) DidClick() {
	b.a.mu.Lock()
	loaded := b.a.loaded
	b.a.mu.Unlock()
	if !loaded {
		return
	}
	b.a.deliver(func(l mediation.AdapterListener) { l.OnClicked(b.a) }, nil)
}

func (b bridge) DidExpire() {
	b.a.deliver(func(l mediation.AdapterListener) { l.OnExpired(b.a) }, func() { b.a.loaded = false })
}

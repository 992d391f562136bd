package mediation

import (
	"context"
	"sync"

	"github.com/echoface/adslot/internal/metrics"
	"github.com/echoface/adslot/pkg/logger"
	"github.com/echoface/adslot/pkg/utils"
)

const (
	outcomeLoaded = "loaded"
	outcomeFailed = "failed"
)

// Interstitial drives a single interstitial slot: it asks the serving
// source for an ad, loads mediated adapters one at a time and tracks which
// source, if any, currently holds a presentable ad.
//
// Public methods are meant to be called by one owner; adapter and source
// callbacks may arrive on any goroutine. mu guards the state tuple
// {state, content, adapter, scope, generation, resolved} as a unit, and no
// collaborator is ever called while it is held. Listener outcomes are checked
// against the generation they resolved in immediately before delivery, so an
// outcome racing a newer Load or a Destroy on the owner goroutine is dropped.
type Interstitial struct {
	slotID    string
	source    AdSource
	registry  *Registry
	presenter PresentationHost
	log       logger.Logger
	metrics   *metrics.InterstitialMetrics

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	content     *Content
	adapter     Adapter
	adapterType string
	scope       *adapterScope
	generation  uint64
	resolved    bool
	destroyed   bool
	listener    Listener
	lastErr     error
}

// Option configures an Interstitial.
type Option func(*Interstitial)

// WithRegistry sets the adapter registry. Defaults to DefaultRegistry().
func WithRegistry(r *Registry) Option {
	return func(i *Interstitial) { i.registry = r }
}

// WithPresenter sets the presentation host.
func WithPresenter(p PresentationHost) Option {
	return func(i *Interstitial) { i.presenter = p }
}

func WithLogger(l logger.Logger) Option {
	return func(i *Interstitial) { i.log = l }
}

func WithMetrics(m *metrics.InterstitialMetrics) Option {
	return func(i *Interstitial) { i.metrics = m }
}

// WithContext sets the parent of the context handed to adapters.
func WithContext(ctx context.Context) Option {
	return func(i *Interstitial) { i.ctx = ctx }
}

// NewInterstitial binds a slot to its serving source.
func NewInterstitial(slotID string, source AdSource, opts ...Option) *Interstitial {
	utils.PanicIf(source == nil, "interstitial %q: nil ad source", slotID)

	i := &Interstitial{
		slotID: slotID,
		source: source,
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.registry == nil {
		i.registry = DefaultRegistry()
	}
	i.log = logger.OrDefault(i.log).With("slot_id", slotID)
	if i.presenter == nil {
		i.presenter = adapterPresenter{log: i.log}
	}
	i.ctx, i.cancel = context.WithCancel(i.ctx)
	i.metrics.SlotCreated()
	return i
}

// Load invalidates whatever the slot holds and starts a new load attempt.
func (i *Interstitial) Load() {
	i.begin("load", i.source.BeginLoad)
}

// ForceRefresh is Load, but also makes the source abandon an in-flight fetch.
func (i *Interstitial) ForceRefresh() {
	i.begin("force_refresh", i.source.BeginForceRefresh)
}

func (i *Interstitial) begin(mode string, start func()) {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		i.log.Warn("interstitial used after destroy", "op", mode)
		return
	}
	wasReady := i.state.IsReady()
	stale := i.detachLocked()
	i.generation++
	i.resolved = false
	i.lastErr = nil
	session := &sourceSession{owner: i, generation: i.generation}
	i.mu.Unlock()

	i.metrics.ReadyChanged(wasReady, false)
	i.metrics.RecordLoad(mode)
	if stale != nil {
		stale.invalidate()
	}

	i.source.SetCallbacks(nil)
	i.source.SetCallbacks(session)
	i.log.Debug("load attempt started", "mode", mode, "generation", session.generation)
	start()
}

// IsReady reports whether Show would present an ad.
func (i *Interstitial) IsReady() bool {
	return i.State().IsReady()
}

// State returns the current readiness state.
func (i *Interstitial) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Show presents the ready ad. It returns false, without error, when nothing
// is ready or the slot was destroyed.
func (i *Interstitial) Show() bool {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return false
	}
	state := i.state
	adapter := i.adapter
	adapterType := i.adapterType
	var content Content
	if i.content != nil {
		content = *i.content
	}
	i.mu.Unlock()

	switch state {
	case StateFirstPartyReady:
		i.metrics.RecordShow(SourceFirstParty.String())
		i.presenter.PresentInlineContent(i.slotID, content, i.source.Metadata())
		return true
	case StateNativeReady:
		i.metrics.RecordShow(adapterType)
		i.presenter.PresentViaAdapter(i.slotID, adapter)
		return true
	default:
		return false
	}
}

// Destroy tears the slot down. It is idempotent; afterwards Show returns
// false, every other operation is a no-op and no listener callback fires.
func (i *Interstitial) Destroy() {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return
	}
	i.destroyed = true
	wasReady := i.state.IsReady()
	stale := i.detachLocked()
	i.generation++
	i.listener = nil
	i.mu.Unlock()

	i.metrics.ReadyChanged(wasReady, false)
	if stale != nil {
		stale.invalidate()
	}
	i.source.SetCallbacks(nil)
	i.source.Destroy()
	i.cancel()
	i.metrics.SlotDestroyed()
	i.log.Debug("interstitial destroyed")
}

// Destroyed reports whether Destroy has been called.
func (i *Interstitial) Destroyed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.destroyed
}

// SetListener installs the caller listener; nil removes it.
func (i *Interstitial) SetListener(l Listener) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return
	}
	i.listener = l
}

// CompareAndSwapListener installs next only if old is still the listener.
// old must be a comparable value, such as a pointer.
func (i *Interstitial) CompareAndSwapListener(old, next Listener) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed || i.listener != old {
		return false
	}
	i.listener = next
	return true
}

func (i *Interstitial) Listener() Listener {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.listener
}

// LastError returns the most recent failure of the current load attempt as
// an *Error, or nil.
func (i *Interstitial) LastError() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastErr
}

// detachLocked clears readiness and the live adapter, returning its scope
// so the caller can invalidate it once mu is released.
func (i *Interstitial) detachLocked() *adapterScope {
	stale := i.scope
	i.state = StateNotReady
	i.content = nil
	i.adapter = nil
	i.adapterType = ""
	i.scope = nil
	return stale
}

// resolveLocked marks the attempt as resolved. It reports false if the
// attempt already had its outcome.
func (i *Interstitial) resolveLocked() bool {
	if i.resolved {
		return false
	}
	i.resolved = true
	return true
}

// deliver hands the outcome of attempt gen to the current listener, unless
// the slot was reloaded or destroyed since the outcome resolved.
func (i *Interstitial) deliver(gen uint64, outcome string) {
	i.mu.Lock()
	current := !i.destroyed && gen == i.generation
	l := i.listener
	i.mu.Unlock()
	if !current {
		i.dropStale("interstitial_" + outcome)
		return
	}
	i.metrics.RecordOutcome(outcome)
	if l == nil {
		return
	}
	switch outcome {
	case outcomeLoaded:
		l.OnInterstitialLoaded()
	case outcomeFailed:
		l.OnInterstitialFailed()
	}
}

func (i *Interstitial) sessionCurrentLocked(s *sourceSession) bool {
	return !i.destroyed && s.generation == i.generation
}

func (i *Interstitial) scopeLiveLocked(s *adapterScope, a Adapter) bool {
	if i.destroyed || i.scope != s {
		return false
	}
	return a == nil || a == s.adapter
}

func (i *Interstitial) dropStale(callback string) {
	i.metrics.RecordStale(callback)
	i.log.Debug("dropped stale callback", "callback", callback)
}

func (i *Interstitial) contentReady(s *sourceSession, content Content) {
	i.mu.Lock()
	if !i.sessionCurrentLocked(s) {
		i.mu.Unlock()
		i.dropStale("on_content_ready")
		return
	}
	wasReady := i.state.IsReady()
	stale := i.detachLocked()
	i.state = StateFirstPartyReady
	i.content = &content
	notify := i.resolveLocked()
	gen := i.generation
	i.mu.Unlock()

	i.metrics.ReadyChanged(wasReady, true)
	if stale != nil {
		stale.invalidate()
	}
	i.log.Info("first-party interstitial ready", "ad_unit_id", content.AdUnitID)
	if notify {
		i.deliver(gen, outcomeLoaded)
	}
}

func (i *Interstitial) allSourcesExhausted(s *sourceSession) {
	i.mu.Lock()
	if !i.sessionCurrentLocked(s) {
		i.mu.Unlock()
		i.dropStale("on_all_sources_exhausted")
		return
	}
	wasReady := i.state.IsReady()
	stale := i.detachLocked()
	i.lastErr = &Error{Kind: KindExhausted}
	notify := i.resolveLocked()
	gen := i.generation
	i.mu.Unlock()

	i.metrics.ReadyChanged(wasReady, false)
	if stale != nil {
		stale.invalidate()
	}
	i.metrics.RecordFailure(KindExhausted.String())
	i.log.Info("interstitial failed to load, all sources exhausted")
	if notify {
		i.deliver(gen, outcomeFailed)
	}
}

func (i *Interstitial) mediationHandoff(s *sourceSession, h Handoff) {
	token := h.TypeToken()
	adapter, err := i.registry.Create(token)

	i.mu.Lock()
	if !i.sessionCurrentLocked(s) {
		i.mu.Unlock()
		if err == nil {
			adapter.Invalidate()
		}
		i.dropStale("on_mediation_handoff")
		return
	}
	wasReady := i.state.IsReady()
	stale := i.detachLocked()
	var scope *adapterScope
	if err != nil {
		i.lastErr = &Error{Kind: KindNoAdapter, AdapterType: token, Err: err}
	} else {
		scope = &adapterScope{owner: i, adapter: adapter, adapterType: token}
		i.adapter = adapter
		i.adapterType = token
		i.scope = scope
	}
	i.mu.Unlock()

	i.metrics.ReadyChanged(wasReady, false)
	i.metrics.RecordHandoff(token)
	if stale != nil {
		stale.invalidate()
	}

	if err != nil {
		i.metrics.RecordFailure(KindNoAdapter.String())
		i.log.Info("couldn't load adapter, trying next ad", "adapter_type", token, "error", err)
		i.source.AdapterFailed()
		return
	}

	i.log.Info("loading adapter for interstitial", "adapter_type", token, "kind", h.Kind.String())
	var initErr error
	if !scope.call(func(a Adapter) { initErr = a.Init(i, h.Params, scope) }) {
		return
	}
	if initErr != nil {
		i.adapterInitFailed(scope, initErr)
		return
	}
	scope.call(func(a Adapter) { a.LoadInterstitial() })
}

func (i *Interstitial) adapterInitFailed(s *adapterScope, cause error) {
	i.mu.Lock()
	if !i.scopeLiveLocked(s, nil) {
		i.mu.Unlock()
		s.invalidate()
		return
	}
	i.detachLocked()
	i.lastErr = &Error{Kind: KindAdapterInit, AdapterType: s.adapterType, Err: cause}
	i.mu.Unlock()

	s.invalidate()
	i.metrics.RecordFailure(KindAdapterInit.String())
	i.log.Warn("adapter init failed, trying next ad", "adapter_type", s.adapterType, "error", cause)
	i.source.AdapterFailed()
}

func (i *Interstitial) adapterLoaded(s *adapterScope, a Adapter) {
	i.mu.Lock()
	if !i.scopeLiveLocked(s, a) {
		i.mu.Unlock()
		i.dropStale("on_loaded")
		return
	}
	if i.state == StateNativeReady {
		i.mu.Unlock()
		i.log.Debug("duplicate loaded callback ignored", "adapter_type", s.adapterType)
		return
	}
	wasReady := i.state.IsReady()
	i.state = StateNativeReady
	i.content = nil
	notify := i.resolveLocked()
	gen := i.generation
	i.mu.Unlock()

	i.metrics.ReadyChanged(wasReady, true)
	i.metrics.RecordAdapterEvent(s.adapterType, "loaded")
	i.log.Info("native interstitial ready", "adapter_type", s.adapterType)
	i.source.TrackImpression()
	if notify {
		i.deliver(gen, outcomeLoaded)
	}
}

func (i *Interstitial) adapterFailed(s *adapterScope, a Adapter) {
	i.mu.Lock()
	if !i.scopeLiveLocked(s, a) {
		i.mu.Unlock()
		i.dropStale("on_failed")
		return
	}
	wasReady := i.state.IsReady()
	i.detachLocked()
	i.lastErr = &Error{Kind: KindAdapterFailed, AdapterType: s.adapterType}
	i.mu.Unlock()

	i.metrics.ReadyChanged(wasReady, false)
	s.invalidate()
	i.metrics.RecordAdapterEvent(s.adapterType, "failed")
	i.metrics.RecordFailure(KindAdapterFailed.String())
	i.log.Info("adapter failed to load, trying next ad", "adapter_type", s.adapterType)
	i.source.AdapterFailed()
}

func (i *Interstitial) adapterClicked(s *adapterScope, a Adapter) {
	i.mu.Lock()
	live := i.scopeLiveLocked(s, a)
	i.mu.Unlock()
	if !live {
		i.dropStale("on_clicked")
		return
	}

	i.metrics.RecordAdapterEvent(s.adapterType, "clicked")
	i.source.RegisterClick()
}

func (i *Interstitial) adapterExpired(s *adapterScope, a Adapter) {
	i.mu.Lock()
	if !i.scopeLiveLocked(s, a) {
		i.mu.Unlock()
		i.dropStale("on_expired")
		return
	}
	if i.state != StateNativeReady {
		i.mu.Unlock()
		i.log.Debug("expiry ignored, adapter was not ready", "adapter_type", s.adapterType)
		return
	}
	i.detachLocked()
	i.mu.Unlock()

	i.metrics.ReadyChanged(true, false)
	s.invalidate()
	i.metrics.RecordAdapterEvent(s.adapterType, "expired")
	i.log.Info("native interstitial expired", "adapter_type", s.adapterType)
}

// Host implementation handed to adapters.

func (i *Interstitial) SlotID() string { return i.slotID }

func (i *Interstitial) Metadata() SlotMetadata { return i.source.Metadata() }

func (i *Interstitial) Context() context.Context { return i.ctx }

func (i *Interstitial) Logger() logger.Logger { return i.log }

func (i *Interstitial) Display(content Content) {
	d, ok := i.presenter.(CreativeDisplayer)
	if !ok {
		i.log.Warn("presentation host cannot display adapter creatives", "network", content.Network)
		return
	}
	d.DisplayCreative(i.slotID, content)
}

// Pass-through slot settings.

func (i *Interstitial) updateMetadata(fn func(*SlotMetadata)) {
	meta := i.source.Metadata()
	fn(&meta)
	i.source.SetMetadata(meta)
}

func (i *Interstitial) SetKeywords(keywords string) {
	i.updateMetadata(func(m *SlotMetadata) { m.Keywords = keywords })
}

func (i *Interstitial) Keywords() string { return i.source.Metadata().Keywords }

func (i *Interstitial) SetLocationAwareness(awareness LocationAwareness) {
	i.updateMetadata(func(m *SlotMetadata) { m.LocationAwareness = awareness })
}

func (i *Interstitial) LocationAwareness() LocationAwareness {
	return i.source.Metadata().LocationAwareness
}

func (i *Interstitial) SetLocationPrecision(precision int) {
	i.updateMetadata(func(m *SlotMetadata) { m.LocationPrecision = precision })
}

func (i *Interstitial) LocationPrecision() int { return i.source.Metadata().LocationPrecision }

func (i *Interstitial) SetTesting(testing bool) {
	i.updateMetadata(func(m *SlotMetadata) { m.Testing = testing })
}

func (i *Interstitial) Testing() bool { return i.source.Metadata().Testing }

func (i *Interstitial) SetLocalExtras(extras map[string]any) {
	i.updateMetadata(func(m *SlotMetadata) { m.LocalExtras = extras })
}

func (i *Interstitial) LocalExtras() map[string]any { return i.source.Metadata().LocalExtras }

// adapterPresenter is used when no presentation host is configured: native
// ads are shown by their adapter, inline content cannot be shown.
type adapterPresenter struct {
	log logger.Logger
}

func (p adapterPresenter) PresentInlineContent(slotID string, content Content, _ SlotMetadata) {
	p.log.Warn("no presentation host for inline content", "ad_unit_id", content.AdUnitID)
}

func (p adapterPresenter) PresentViaAdapter(_ string, a Adapter) {
	a.ShowInterstitial()
}

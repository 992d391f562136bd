package mediation

import (
	"errors"
	"sync"
)

// MockSource records every call the controller makes on its ad source.
type MockSource struct {
	mu        sync.Mutex
	callbacks SourceCallbacks
	meta      SlotMetadata

	loads          int
	forceRefreshes int
	adapterFails   int
	impressions    int
	clicks         int
	destroyed      int
	detaches       int

	// onImpression, when set, runs inside TrackImpression.
	onImpression func()
}

func NewMockSource() *MockSource {
	return &MockSource{meta: SlotMetadata{AdUnitID: "unit-1", LocationPrecision: DefaultLocationPrecision}}
}

func (s *MockSource) SetCallbacks(cb SourceCallbacks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb == nil {
		s.detaches++
	}
	s.callbacks = cb
}

func (s *MockSource) Callbacks() SourceCallbacks {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callbacks
}

func (s *MockSource) BeginLoad()         { s.inc(&s.loads) }
func (s *MockSource) BeginForceRefresh() { s.inc(&s.forceRefreshes) }
func (s *MockSource) AdapterFailed()     { s.inc(&s.adapterFails) }
func (s *MockSource) RegisterClick()     { s.inc(&s.clicks) }
func (s *MockSource) Destroy()           { s.inc(&s.destroyed) }

func (s *MockSource) TrackImpression() {
	s.mu.Lock()
	s.impressions++
	hook := s.onImpression
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (s *MockSource) Metadata() SlotMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta.Clone()
}

func (s *MockSource) SetMetadata(meta SlotMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = meta
}

func (s *MockSource) inc(n *int) {
	s.mu.Lock()
	*n++
	s.mu.Unlock()
}

func (s *MockSource) count(n *int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *n
}

// MockAdapter lets a test drive adapter callbacks by hand.
type MockAdapter struct {
	mu          sync.Mutex
	host        Host
	params      Params
	listener    AdapterListener
	initErr     error
	inits       int
	loads       int
	shows       int
	invalidated int

	// onInit, onLoad and onInvalidate, when set, run synchronously inside
	// the matching call.
	onInit       func(a *MockAdapter)
	onLoad       func(a *MockAdapter)
	onInvalidate func()
}

func (a *MockAdapter) Init(host Host, params Params, listener AdapterListener) error {
	a.mu.Lock()
	a.inits++
	a.host = host
	a.params = params
	a.listener = listener
	onInit, err := a.onInit, a.initErr
	a.mu.Unlock()
	if onInit != nil {
		onInit(a)
	}
	return err
}

func (a *MockAdapter) LoadInterstitial() {
	a.mu.Lock()
	a.loads++
	onLoad := a.onLoad
	a.mu.Unlock()
	if onLoad != nil {
		onLoad(a)
	}
}

func (a *MockAdapter) ShowInterstitial() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shows++
}

func (a *MockAdapter) Invalidate() {
	a.mu.Lock()
	a.invalidated++
	hook := a.onInvalidate
	a.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (a *MockAdapter) Inits() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inits
}

func (a *MockAdapter) Listener() AdapterListener {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listener
}

func (a *MockAdapter) Invalidations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.invalidated
}

func (a *MockAdapter) Loads() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loads
}

func (a *MockAdapter) Shows() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shows
}

func (a *MockAdapter) Loaded()  { a.Listener().OnLoaded(a) }
func (a *MockAdapter) Failed()  { a.Listener().OnFailed(a) }
func (a *MockAdapter) Clicked() { a.Listener().OnClicked(a) }
func (a *MockAdapter) Expired() { a.Listener().OnExpired(a) }

// adapterQueue hands out pre-built adapters in order.
type adapterQueue struct {
	mu       sync.Mutex
	adapters []*MockAdapter
	created  []*MockAdapter
}

func (q *adapterQueue) factory() Adapter {
	q.mu.Lock()
	defer q.mu.Unlock()
	var a *MockAdapter
	if len(q.adapters) > 0 {
		a, q.adapters = q.adapters[0], q.adapters[1:]
	} else {
		a = &MockAdapter{}
	}
	q.created = append(q.created, a)
	return a
}

func (q *adapterQueue) last() *MockAdapter {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.created) == 0 {
		return nil
	}
	return q.created[len(q.created)-1]
}

// MockPresenter records presentations.
type MockPresenter struct {
	mu       sync.Mutex
	inline   []Content
	adapters []Adapter
	creative []Content
}

func (p *MockPresenter) PresentInlineContent(_ string, content Content, _ SlotMetadata) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inline = append(p.inline, content)
}

func (p *MockPresenter) PresentViaAdapter(_ string, a Adapter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adapters = append(p.adapters, a)
}

func (p *MockPresenter) DisplayCreative(_ string, content Content) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creative = append(p.creative, content)
}

// MockListener counts outcome notifications.
type MockListener struct {
	mu     sync.Mutex
	loaded int
	failed int
}

func (l *MockListener) OnInterstitialLoaded() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded++
}

func (l *MockListener) OnInterstitialFailed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed++
}

func (l *MockListener) Counts() (loaded, failed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded, l.failed
}

var errInit = errors.New("missing placement")

package mediation

import "sync"

// adapterScope is the listener handed to exactly one adapter instance. Its
// callbacks count only while the controller still holds this scope as live.
//
// The scope also owns the adapter's teardown: Invalidate reaches the adapter
// at most once, never before an in-progress Init or LoadInterstitial call
// returns, and no Init or LoadInterstitial call starts after it.
type adapterScope struct {
	owner       *Interstitial
	adapter     Adapter
	adapterType string

	mu          sync.Mutex
	busy        bool
	invalidated bool
}

func (s *adapterScope) OnLoaded(a Adapter)  { s.owner.adapterLoaded(s, a) }
func (s *adapterScope) OnFailed(a Adapter)  { s.owner.adapterFailed(s, a) }
func (s *adapterScope) OnClicked(a Adapter) { s.owner.adapterClicked(s, a) }
func (s *adapterScope) OnExpired(a Adapter) { s.owner.adapterExpired(s, a) }

// call runs fn against the adapter unless it was already invalidated. An
// invalidation requested while fn runs is applied when fn returns.
func (s *adapterScope) call(fn func(Adapter)) bool {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return false
	}
	s.busy = true
	s.mu.Unlock()

	fn(s.adapter)

	s.mu.Lock()
	s.busy = false
	deferred := s.invalidated
	s.mu.Unlock()
	if deferred {
		s.adapter.Invalidate()
	}
	return true
}

func (s *adapterScope) invalidate() {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return
	}
	s.invalidated = true
	busy := s.busy
	s.mu.Unlock()
	if !busy {
		s.adapter.Invalidate()
	}
}

// sourceSession binds source callbacks to the load attempt that installed
// them. Outcomes of an older attempt are dropped.
type sourceSession struct {
	owner      *Interstitial
	generation uint64
}

func (s *sourceSession) OnContentReady(content Content) { s.owner.contentReady(s, content) }

func (s *sourceSession) OnMediationHandoff(handoff Handoff) {
	s.owner.mediationHandoff(s, handoff)
}

func (s *sourceSession) OnAllSourcesExhausted() { s.owner.allSourcesExhausted(s) }

// Package autoshow keeps the legacy "show as soon as it loads" behavior as a
// thin layer over the public Interstitial API.
package autoshow

import (
	"sync"

	"github.com/echoface/adslot/internal/mediation"
)

// Load starts a load on slot and shows the ad as soon as it is ready. The
// slot's listener still receives both outcomes and is restored once the
// attempt resolves.
//
// Deprecated: call Load, wait for OnInterstitialLoaded and call Show.
func Load(slot *mediation.Interstitial) {
	next := slot.Listener()
	if pending, ok := next.(*showOnLoad); ok {
		next = pending.next
	}
	slot.SetListener(&showOnLoad{slot: slot, next: next})
	slot.Load()
}

type showOnLoad struct {
	slot *mediation.Interstitial
	next mediation.Listener
	once sync.Once
}

func (s *showOnLoad) OnInterstitialLoaded() {
	s.restore()
	if s.next != nil {
		s.next.OnInterstitialLoaded()
	}
	s.slot.Show()
}

func (s *showOnLoad) OnInterstitialFailed() {
	s.restore()
	if s.next != nil {
		s.next.OnInterstitialFailed()
	}
}

func (s *showOnLoad) restore() {
	s.once.Do(func() {
		s.slot.CompareAndSwapListener(s, s.next)
	})
}

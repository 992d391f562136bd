package mediation

import (
	"context"

	"github.com/echoface/adslot/pkg/logger"
)

type (
	// Adapter loads and shows one interstitial for one load/show cycle.
	//
	// Init is called exactly once, before LoadInterstitial. LoadInterstitial
	// starts an asynchronous attempt that must end in exactly one of
	// listener.OnLoaded or listener.OnFailed, unless Invalidate comes first.
	// ShowInterstitial is only meaningful between OnLoaded and Invalidate and
	// must be ignored otherwise. Invalidate is idempotent, releases resources,
	// and no callback may be delivered once it has returned. An instance that
	// is dropped before Init still receives Invalidate. The controller never
	// runs Invalidate concurrently with Init or LoadInterstitial.
	Adapter interface {
		Init(host Host, params Params, listener AdapterListener) error
		LoadInterstitial()
		ShowInterstitial()
		Invalidate()
	}

	// AdapterListener receives adapter callbacks. Callbacks may arrive on any
	// goroutine.
	AdapterListener interface {
		OnLoaded(a Adapter)
		OnFailed(a Adapter)
		OnClicked(a Adapter)
		OnExpired(a Adapter)
	}

	// Host is the slot as seen by an adapter.
	Host interface {
		SlotID() string
		Metadata() SlotMetadata
		// Context is canceled when the slot is destroyed.
		Context() context.Context
		Logger() logger.Logger
		// Display presents a creative the adapter rendered itself.
		Display(content Content)
	}

	// Factory produces a fresh adapter instance.
	Factory func() Adapter
)

type (
	// SourceCallbacks are the serving source's outcomes for one load attempt.
	SourceCallbacks interface {
		OnContentReady(content Content)
		OnMediationHandoff(handoff Handoff)
		OnAllSourcesExhausted()
	}

	// AdSource fetches ads for a slot and runs its own waterfall. It reports
	// through the callbacks installed with SetCallbacks; nil detaches them.
	AdSource interface {
		SetCallbacks(cb SourceCallbacks)
		BeginLoad()
		BeginForceRefresh()
		// AdapterFailed asks the source to try its next candidate.
		AdapterFailed()
		TrackImpression()
		RegisterClick()
		Metadata() SlotMetadata
		SetMetadata(meta SlotMetadata)
		Destroy()
	}
)

type (
	// PresentationHost physically displays a ready ad.
	PresentationHost interface {
		PresentInlineContent(slotID string, content Content, meta SlotMetadata)
		PresentViaAdapter(slotID string, a Adapter)
	}

	// CreativeDisplayer is implemented by presentation hosts that can display
	// creatives handed over by adapters through Host.Display.
	CreativeDisplayer interface {
		DisplayCreative(slotID string, content Content)
	}
)

// Listener is the caller's view of a slot. Exactly one method fires for
// every load attempt that resolves.
type Listener interface {
	OnInterstitialLoaded()
	OnInterstitialFailed()
}

// ListenerFuncs adapts plain functions to Listener; nil fields are skipped.
type ListenerFuncs struct {
	Loaded func()
	Failed func()
}

func (f ListenerFuncs) OnInterstitialLoaded() {
	if f.Loaded != nil {
		f.Loaded()
	}
}

func (f ListenerFuncs) OnInterstitialFailed() {
	if f.Failed != nil {
		f.Failed()
	}
}

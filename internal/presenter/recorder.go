// Package presenter provides presentation hosts for interstitial slots.
package presenter

import (
	"sync"
	"time"

	"github.com/echoface/adslot/internal/mediation"
	"github.com/echoface/adslot/internal/tracking"
)

// Presentation sources.
const (
	SourceInline   = "first_party"
	SourceAdapter  = "adapter"
	SourceCreative = "creative"
)

// Presentation is one display recorded by a Recorder.
type Presentation struct {
	SlotID  string            `json:"slot_id"`
	Source  string            `json:"source"`
	Network string            `json:"network,omitempty"`
	Content mediation.Content `json:"content"`
	At      time.Time         `json:"at"`
}

// Clicker is implemented by adapters that can report clicks on their
// displayed creative.
type Clicker interface {
	Click()
}

// Beaconer fires tracking URLs.
type Beaconer interface {
	Fire(kind tracking.Kind, url string)
}

// Recorder is a headless PresentationHost: it keeps what each slot shows so
// clients can fetch it, and routes clicks back to whoever showed it.
type Recorder struct {
	beacons Beaconer
	now     func() time.Time

	mu            sync.Mutex
	presentations []Presentation
	adapters      map[string]mediation.Adapter
	inline        map[string]mediation.Content
}

var (
	_ mediation.PresentationHost  = (*Recorder)(nil)
	_ mediation.CreativeDisplayer = (*Recorder)(nil)
)

// NewRecorder creates a Recorder. beacons may be nil.
func NewRecorder(beacons Beaconer) *Recorder {
	return &Recorder{
		beacons:  beacons,
		now:      time.Now,
		adapters: make(map[string]mediation.Adapter),
		inline:   make(map[string]mediation.Content),
	}
}

func (r *Recorder) PresentInlineContent(slotID string, content mediation.Content, _ mediation.SlotMetadata) {
	r.mu.Lock()
	r.record(slotID, SourceInline, content)
	r.inline[slotID] = content
	delete(r.adapters, slotID)
	r.mu.Unlock()

	r.fire(tracking.KindImpression, content.ImpressionURL)
}

// PresentViaAdapter asks the adapter to show itself; what it displays
// arrives through DisplayCreative.
func (r *Recorder) PresentViaAdapter(slotID string, a mediation.Adapter) {
	r.mu.Lock()
	r.record(slotID, SourceAdapter, mediation.Content{})
	r.adapters[slotID] = a
	delete(r.inline, slotID)
	r.mu.Unlock()

	a.ShowInterstitial()
}

func (r *Recorder) DisplayCreative(slotID string, content mediation.Content) {
	r.mu.Lock()
	r.record(slotID, SourceCreative, content)
	r.mu.Unlock()

	r.fire(tracking.KindImpression, content.ImpressionURL)
}

// Click reports a click on what slotID currently shows. It returns false
// when nothing is shown.
func (r *Recorder) Click(slotID string) bool {
	r.mu.Lock()
	a, hasAdapter := r.adapters[slotID]
	content, hasInline := r.inline[slotID]
	r.mu.Unlock()

	switch {
	case hasAdapter:
		if c, ok := a.(Clicker); ok {
			c.Click()
		}
		return true
	case hasInline:
		r.fire(tracking.KindClick, content.ClickURL)
		return true
	default:
		return false
	}
}

// Presentations returns what slotID displayed, oldest first. An empty
// slotID returns every slot's presentations.
func (r *Recorder) Presentations(slotID string) []Presentation {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Presentation
	for _, p := range r.presentations {
		if slotID == "" || p.SlotID == slotID {
			out = append(out, p)
		}
	}
	return out
}

// Last returns the most recent presentation of slotID.
func (r *Recorder) Last(slotID string) (Presentation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.presentations) - 1; i >= 0; i-- {
		if r.presentations[i].SlotID == slotID {
			return r.presentations[i], true
		}
	}
	return Presentation{}, false
}

// Forget drops everything recorded for slotID.
func (r *Recorder) Forget(slotID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.adapters, slotID)
	delete(r.inline, slotID)
	kept := r.presentations[:0]
	for _, p := range r.presentations {
		if p.SlotID != slotID {
			kept = append(kept, p)
		}
	}
	r.presentations = kept
}

// record must be called with mu held.
func (r *Recorder) record(slotID, source string, content mediation.Content) {
	r.presentations = append(r.presentations, Presentation{
		SlotID:  slotID,
		Source:  source,
		Network: content.Network,
		Content: content,
		At:      r.now(),
	})
}

func (r *Recorder) fire(kind tracking.Kind, url string) {
	if r.beacons == nil || url == "" {
		return
	}
	r.beacons.Fire(kind, url)
}

package presenter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoface/adslot/internal/mediation"
	"github.com/echoface/adslot/internal/tracking"
	"github.com/echoface/adslot/pkg/logger"
)

type beaconLog struct {
	mu    sync.Mutex
	fired []string
}

func (b *beaconLog) Fire(kind tracking.Kind, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fired = append(b.fired, string(kind)+" "+url)
}

// MockAdapter displays a fixed creative through the recorder when shown.
type MockAdapter struct {
	host    mediation.CreativeDisplayer
	slotID  string
	shows   int
	clicked int
}

func (a *MockAdapter) Init(mediation.Host, mediation.Params, mediation.AdapterListener) error {
	return nil
}
func (a *MockAdapter) LoadInterstitial() {}
func (a *MockAdapter) Invalidate()       {}
func (a *MockAdapter) Click()            { a.clicked++ }

func (a *MockAdapter) ShowInterstitial() {
	a.shows++
	a.host.DisplayCreative(a.slotID, mediation.Content{
		Network:       "network-B",
		Markup:        "<b>net</b>",
		ImpressionURL: "http://t/net-imp",
	})
}

func TestRecorder_Inline(t *testing.T) {
	beacons := &beaconLog{}
	r := NewRecorder(beacons)

	content := mediation.Content{Markup: "<p>1p</p>", ImpressionURL: "http://t/imp", ClickURL: "http://t/click"}
	r.PresentInlineContent("slot-1", content, mediation.SlotMetadata{})

	last, ok := r.Last("slot-1")
	require.True(t, ok)
	assert.Equal(t, SourceInline, last.Source)
	assert.Equal(t, content, last.Content)
	assert.False(t, last.At.IsZero())

	assert.True(t, r.Click("slot-1"))
	assert.False(t, r.Click("slot-2"))
	assert.Equal(t, []string{"impression http://t/imp", "click http://t/click"}, beacons.fired)
}

func TestRecorder_ViaAdapter(t *testing.T) {
	beacons := &beaconLog{}
	r := NewRecorder(beacons)
	a := &MockAdapter{host: r, slotID: "slot-1"}

	r.PresentViaAdapter("slot-1", a)

	assert.Equal(t, 1, a.shows)
	got := r.Presentations("slot-1")
	require.Len(t, got, 2)
	assert.Equal(t, SourceAdapter, got[0].Source)
	assert.Equal(t, SourceCreative, got[1].Source)
	assert.Equal(t, "network-B", got[1].Network)
	assert.Equal(t, []string{"impression http://t/net-imp"}, beacons.fired)

	assert.True(t, r.Click("slot-1"))
	assert.Equal(t, 1, a.clicked)
}

func TestRecorder_Forget(t *testing.T) {
	r := NewRecorder(nil)
	r.PresentInlineContent("a", mediation.Content{Markup: "x"}, mediation.SlotMetadata{})
	r.PresentInlineContent("b", mediation.Content{Markup: "y"}, mediation.SlotMetadata{})

	r.Forget("a")
	assert.Empty(t, r.Presentations("a"))
	assert.Len(t, r.Presentations(""), 1)
	assert.False(t, r.Click("a"))
}

func TestLogPresenter_Delegates(t *testing.T) {
	r := NewRecorder(nil)
	p := NewLogPresenter(r, logger.Nop())
	a := &MockAdapter{host: p, slotID: "slot-1"}

	p.PresentInlineContent("slot-1", mediation.Content{Markup: "x"}, mediation.SlotMetadata{Keywords: "k"})
	p.PresentViaAdapter("slot-1", a)

	assert.Len(t, r.Presentations("slot-1"), 3)
}

type inlineOnly struct {
	inline int
}

func (h *inlineOnly) PresentInlineContent(string, mediation.Content, mediation.SlotMetadata) {
	h.inline++
}
func (h *inlineOnly) PresentViaAdapter(string, mediation.Adapter) {}

func TestLogPresenter_DropsCreativeWithoutDisplayer(t *testing.T) {
	p := NewLogPresenter(&inlineOnly{}, logger.Nop())
	assert.NotPanics(t, func() { p.DisplayCreative("slot-1", mediation.Content{}) })
}

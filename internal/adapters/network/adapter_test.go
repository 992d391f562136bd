package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/echoface/adslot/internal/mediation"
	"github.com/echoface/adslot/pkg/jsonx"
	"github.com/echoface/adslot/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockHost struct {
	ctx       context.Context
	mu        sync.Mutex
	displayed []mediation.Content
}

func (h *mockHost) SlotID() string                   { return "slot-1" }
func (h *mockHost) Metadata() mediation.SlotMetadata { return mediation.SlotMetadata{Testing: true} }
func (h *mockHost) Context() context.Context         { return h.ctx }
func (h *mockHost) Logger() logger.Logger            { return logger.Nop() }

func (h *mockHost) Display(c mediation.Content) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.displayed = append(h.displayed, c)
}

type mockListener struct {
	events chan string
}

func newListener() *mockListener { return &mockListener{events: make(chan string, 8)} }

func (l *mockListener) OnLoaded(mediation.Adapter)  { l.events <- "loaded" }
func (l *mockListener) OnFailed(mediation.Adapter)  { l.events <- "failed" }
func (l *mockListener) OnClicked(mediation.Adapter) { l.events <- "clicked" }
func (l *mockListener) OnExpired(mediation.Adapter) { l.events <- "expired" }

func (l *mockListener) next(t *testing.T) string {
	t.Helper()
	select {
	case e := <-l.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for adapter callback")
		return ""
	}
}

func creativeServer(t *testing.T, status int, creative Creative) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "p-1", r.URL.Query().Get(ParamPlacementID))
		assert.Equal(t, "slot-1", r.URL.Query().Get("slot"))
		assert.Equal(t, "1", r.URL.Query().Get("test"))
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write(jsonx.JSON(creative))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAdapter(t *testing.T, srv *httptest.Server, params mediation.Params) (*Adapter, *mockHost, *mockListener) {
	t.Helper()
	defaults := mediation.Params{ParamEndpoint: srv.URL + "/creative", ParamNetwork: "network-B"}
	a := NewFactory(srv.Client(), defaults)().(*Adapter)
	host := &mockHost{ctx: context.Background()}
	l := newListener()
	require.NoError(t, a.Init(host, params, l))
	t.Cleanup(func() {
		a.Invalidate()
		a.Wait()
	})
	return a, host, l
}

func TestAdapter_LoadShowClick(t *testing.T) {
	srv := creativeServer(t, http.StatusOK, Creative{Markup: "<b>ad</b>", ClickthroughURL: "http://advertiser"})
	a, host, l := newAdapter(t, srv, mediation.Params{ParamPlacementID: "p-1"})

	a.LoadInterstitial()
	require.Equal(t, "loaded", l.next(t))

	a.ShowInterstitial()
	require.Len(t, host.displayed, 1)
	assert.Equal(t, "<b>ad</b>", host.displayed[0].Markup)
	assert.Equal(t, "network-B", host.displayed[0].Network)

	a.Click()
	assert.Equal(t, "clicked", l.next(t))
}

func TestAdapter_NoFill(t *testing.T) {
	srv := creativeServer(t, http.StatusNoContent, Creative{})
	a, _, l := newAdapter(t, srv, mediation.Params{ParamPlacementID: "p-1"})

	a.LoadInterstitial()
	assert.Equal(t, "failed", l.next(t))

	// show before loaded is ignored
	assert.NotPanics(t, a.ShowInterstitial)
}

func TestAdapter_EmptyMarkupIsNoFill(t *testing.T) {
	srv := creativeServer(t, http.StatusOK, Creative{})
	a, _, l := newAdapter(t, srv, mediation.Params{ParamPlacementID: "p-1"})

	a.LoadInterstitial()
	assert.Equal(t, "failed", l.next(t))
}

func TestAdapter_OversizedCreativeFails(t *testing.T) {
	srv := creativeServer(t, http.StatusOK, Creative{Markup: strings.Repeat("x", MaxCreativeBytes)})
	a, _, l := newAdapter(t, srv, mediation.Params{ParamPlacementID: "p-1"})

	a.LoadInterstitial()
	assert.Equal(t, "failed", l.next(t))
}

func TestAdapter_Expires(t *testing.T) {
	srv := creativeServer(t, http.StatusOK, Creative{Markup: "x"})
	a, _, l := newAdapter(t, srv, mediation.Params{ParamPlacementID: "p-1", ParamTTL: "20ms"})

	a.LoadInterstitial()
	require.Equal(t, "loaded", l.next(t))
	assert.Equal(t, "expired", l.next(t))
}

func TestAdapter_InvalidateSuppressesCallbacks(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		_, _ = w.Write(jsonx.JSON(Creative{Markup: "late"}))
	}))
	defer srv.Close()
	defer close(release)

	a, host, l := newAdapter(t, srv, mediation.Params{ParamPlacementID: "p-1"})
	a.LoadInterstitial()
	a.Invalidate()
	a.Invalidate()
	a.Wait()

	a.ShowInterstitial()
	a.Click()
	assert.Empty(t, l.events)
	assert.Empty(t, host.displayed)
}

func TestAdapter_InvalidateStopsExpiry(t *testing.T) {
	srv := creativeServer(t, http.StatusOK, Creative{Markup: "x"})
	a, _, l := newAdapter(t, srv, mediation.Params{ParamPlacementID: "p-1", ParamTTL: "30ms"})

	a.LoadInterstitial()
	require.Equal(t, "loaded", l.next(t))
	a.Invalidate()

	select {
	case e := <-l.events:
		t.Fatalf("unexpected %s after invalidate", e)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestAdapter_HostContextCancels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	a := NewFactory(srv.Client(), nil)().(*Adapter)
	l := newListener()
	require.NoError(t, a.Init(&mockHost{ctx: ctx}, mediation.Params{
		ParamEndpoint:    srv.URL,
		ParamPlacementID: "p-1",
	}, l))

	a.LoadInterstitial()
	cancel()
	assert.Equal(t, "failed", l.next(t))
	a.Invalidate()
	a.Wait()
}

func TestAdapter_InitValidation(t *testing.T) {
	host := &mockHost{ctx: context.Background()}
	a := NewFactory(nil, nil)()

	err := a.Init(host, mediation.Params{}, newListener())
	assert.ErrorIs(t, err, ErrMissingParam)

	err = a.Init(host, mediation.Params{ParamEndpoint: "http://x"}, newListener())
	assert.ErrorIs(t, err, ErrMissingParam)

	err = a.Init(host, mediation.Params{ParamEndpoint: "http://x", ParamPlacementID: "p", ParamTTL: "soon"}, newListener())
	assert.ErrorContains(t, err, "invalid ttl")

	assert.NoError(t, a.Init(host, mediation.Params{ParamEndpoint: "http://x", ParamPlacementID: "p"}, newListener()))
	assert.Equal(t, DefaultTTL, a.(*Adapter).ttl)
}

// Package network implements a generic HTTP network adapter: it fetches a
// creative from a network endpoint, holds it for a TTL and displays it
// through the slot host.
package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/echoface/adslot/internal/mediation"
	"github.com/echoface/adslot/pkg/jsonx"
	"github.com/echoface/adslot/pkg/logger"
)

// Parameter keys.
const (
	ParamEndpoint    = "endpoint"
	ParamPlacementID = "placement_id"
	ParamTTL         = "ttl"
	ParamNetwork     = "network"
)

const DefaultTTL = 30 * time.Minute

// MaxCreativeBytes caps the size of a creative response body.
const MaxCreativeBytes = 512 << 10

var (
	ErrNoFill       = errors.New("network returned no fill")
	ErrMissingParam = errors.New("missing adapter parameter")
)

// Creative is a network's fill.
type Creative struct {
	Markup          string `json:"markup"`
	ClickthroughURL string `json:"clickthrough_url,omitempty"`
	ImpressionURL   string `json:"impression_url,omitempty"`
}

// NewFactory returns a factory for adapters using client. defaults fill in
// parameters a hand-off leaves out.
func NewFactory(client *http.Client, defaults mediation.Params) mediation.Factory {
	if client == nil {
		client = http.DefaultClient
	}
	return func() mediation.Adapter {
		return &Adapter{client: client, defaults: defaults}
	}
}

// Adapter is a mediation.Adapter for one HTTP network.
//
// Callbacks are checked against invalidation right before delivery, so at
// most one callback can race an Invalidate and the controller drops it.
type Adapter struct {
	client   *http.Client
	defaults mediation.Params

	mu          sync.Mutex
	host        mediation.Host
	listener    mediation.AdapterListener
	log         logger.Logger
	network     string
	endpoint    string
	placementID string
	ttl         time.Duration
	loading     bool
	creative    *Creative
	cancel      context.CancelFunc
	expiry      *time.Timer
	invalidated bool

	inflight sync.WaitGroup
}

func (a *Adapter) Init(host mediation.Host, params mediation.Params, listener mediation.AdapterListener) error {
	endpoint := a.param(params, ParamEndpoint)
	if endpoint == "" {
		return fmt.Errorf("%w: %s", ErrMissingParam, ParamEndpoint)
	}
	if _, err := url.Parse(endpoint); err != nil {
		return fmt.Errorf("invalid %s: %w", ParamEndpoint, err)
	}
	placementID := a.param(params, ParamPlacementID)
	if placementID == "" {
		return fmt.Errorf("%w: %s", ErrMissingParam, ParamPlacementID)
	}
	ttl := DefaultTTL
	if raw := a.param(params, ParamTTL); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid %s %q", ParamTTL, raw)
		}
		ttl = d
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.host = host
	a.listener = listener
	a.log = logger.OrDefault(host.Logger()).With("adapter", "network", "placement_id", placementID)
	a.network = a.param(params, ParamNetwork)
	a.endpoint = endpoint
	a.placementID = placementID
	a.ttl = ttl
	return nil
}

func (a *Adapter) param(params mediation.Params, key string) string {
	if v := params.Get(key); v != "" {
		return v
	}
	return a.defaults.Get(key)
}

// LoadInterstitial fetches the creative on its own goroutine.
func (a *Adapter) LoadInterstitial() {
	a.mu.Lock()
	if a.invalidated || a.loading || a.host == nil {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(a.host.Context())
	a.cancel = cancel
	a.loading = true
	a.inflight.Add(1)
	a.mu.Unlock()

	go a.load(ctx)
}

func (a *Adapter) load(ctx context.Context) {
	defer a.inflight.Done()

	creative, err := a.fetch(ctx)

	a.mu.Lock()
	a.loading = false
	if a.invalidated {
		a.mu.Unlock()
		return
	}
	listener := a.listener
	if err != nil {
		a.mu.Unlock()
		a.log.Info("network load failed", "error", err)
		listener.OnFailed(a)
		return
	}
	a.creative = creative
	a.expiry = time.AfterFunc(a.ttl, a.expire)
	a.mu.Unlock()

	a.log.Debug("network creative loaded", "ttl", a.ttl.String())
	listener.OnLoaded(a)
}

func (a *Adapter) fetch(ctx context.Context) (*Creative, error) {
	u, err := url.Parse(a.endpoint)
	if err != nil {
		return nil, err
	}
	meta := a.host.Metadata()
	q := u.Query()
	q.Set(ParamPlacementID, a.placementID)
	q.Set("slot", a.host.SlotID())
	if meta.Testing {
		q.Set("test", "1")
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, ErrNoFill
	default:
		return nil, fmt.Errorf("network returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxCreativeBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read creative: %w", err)
	}
	if len(body) > MaxCreativeBytes {
		return nil, fmt.Errorf("creative exceeds %d bytes", MaxCreativeBytes)
	}
	var creative Creative
	if err := jsonx.Unmarshal(body, &creative); err != nil {
		return nil, fmt.Errorf("decode creative: %w", err)
	}
	if creative.Markup == "" {
		return nil, ErrNoFill
	}
	return &creative, nil
}

func (a *Adapter) expire() {
	a.mu.Lock()
	if a.invalidated || a.creative == nil {
		a.mu.Unlock()
		return
	}
	listener := a.listener
	a.mu.Unlock()

	a.log.Info("network creative expired", "ttl", a.ttl.String())
	listener.OnExpired(a)
}

// ShowInterstitial hands the loaded creative to the host for display.
func (a *Adapter) ShowInterstitial() {
	a.mu.Lock()
	if a.invalidated || a.creative == nil {
		a.mu.Unlock()
		return
	}
	host := a.host
	content := mediation.Content{
		AdUnitID:        a.placementID,
		Network:         a.network,
		Markup:          a.creative.Markup,
		ClickthroughURL: a.creative.ClickthroughURL,
		ImpressionURL:   a.creative.ImpressionURL,
	}
	a.mu.Unlock()

	host.Display(content)
}

// Click reports a click on the displayed creative.
func (a *Adapter) Click() {
	a.mu.Lock()
	if a.invalidated || a.creative == nil {
		a.mu.Unlock()
		return
	}
	listener := a.listener
	a.mu.Unlock()

	listener.OnClicked(a)
}

func (a *Adapter) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.invalidated {
		return
	}
	a.invalidated = true
	if a.cancel != nil {
		a.cancel()
	}
	if a.expiry != nil {
		a.expiry.Stop()
	}
	a.creative = nil
}

// Wait blocks until an in-flight fetch has returned.
func (a *Adapter) Wait() {
	a.inflight.Wait()
}

// Package adsource implements the serving source of an interstitial slot: it
// fetches a waterfall from the ad server and walks it candidate by
// candidate on the slot's behalf.
package adsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/echoface/adslot/internal/health"
	"github.com/echoface/adslot/internal/mediation"
	"github.com/echoface/adslot/internal/metrics"
	"github.com/echoface/adslot/internal/tracking"
	"github.com/echoface/adslot/pkg/jsonx"
	"github.com/echoface/adslot/pkg/logger"
	"github.com/echoface/adslot/pkg/retry"
)

var (
	// ErrCircuitOpen is returned when the ad server circuit breaker rejects
	// a fetch.
	ErrCircuitOpen = errors.New("ad server circuit breaker open")

	errAdapterFailed = errors.New("adapter failed to load")
)

// MaxResponseBytes caps the size of a waterfall response body.
const MaxResponseBytes = 1 << 20

// Config describes the ad server a WaterfallSource fetches from.
type Config struct {
	Endpoint string               `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration        `mapstructure:"timeout" yaml:"timeout"`
	Retry    retry.RetryConfig    `mapstructure:"retry" yaml:"retry"`
	Breaker  health.BreakerConfig `mapstructure:"breaker" yaml:"breaker"`
}

func DefaultConfig() Config {
	return Config{
		Endpoint: "http://localhost:8081/m/ad",
		Timeout:  3 * time.Second,
		Retry:    *retry.DefaultRetryConfig(),
		Breaker:  health.DefaultBreakerConfig(),
	}
}

// Beaconer fires tracking URLs.
type Beaconer interface {
	Fire(kind tracking.Kind, url string)
}

// Option configures a WaterfallSource.
type Option func(*WaterfallSource)

func WithHTTPClient(c *http.Client) Option {
	return func(s *WaterfallSource) { s.client = c }
}

// WithHealthChecker shares network health across sources.
func WithHealthChecker(hc *health.Checker) Option {
	return func(s *WaterfallSource) { s.health = hc }
}

// WithCircuitBreaker shares the ad server breaker across sources.
func WithCircuitBreaker(cb *health.CircuitBreaker) Option {
	return func(s *WaterfallSource) { s.breaker = cb }
}

func WithBeaconer(b Beaconer) Option {
	return func(s *WaterfallSource) { s.beacons = b }
}

func WithLogger(l logger.Logger) Option {
	return func(s *WaterfallSource) { s.log = l }
}

func WithMetrics(m *metrics.WaterfallMetrics) Option {
	return func(s *WaterfallSource) { s.metrics = m }
}

// WaterfallSource is a mediation.AdSource backed by an HTTP ad server.
//
// Callbacks are delivered on the fetch goroutine, or synchronously from
// AdapterFailed, and never while mu is held.
type WaterfallSource struct {
	cfg     Config
	client  *http.Client
	health  *health.Checker
	breaker *health.CircuitBreaker
	beacons Beaconer
	log     logger.Logger
	metrics *metrics.WaterfallMetrics

	ctx     context.Context
	stop    context.CancelFunc
	fetches sync.WaitGroup

	mu         sync.Mutex
	callbacks  mediation.SourceCallbacks
	meta       mediation.SlotMetadata
	loading    bool
	cancel     context.CancelFunc
	fetchID    uint64
	adUnitID   string
	candidates []Candidate
	cursor     int
	current    *Candidate
	destroyed  bool
}

var _ mediation.AdSource = (*WaterfallSource)(nil)

// NewWaterfallSource creates a source for the ad unit in meta.
func NewWaterfallSource(cfg Config, meta mediation.SlotMetadata, opts ...Option) *WaterfallSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if meta.LocationPrecision == 0 {
		meta.LocationPrecision = mediation.DefaultLocationPrecision
	}

	s := &WaterfallSource{
		cfg:    cfg,
		meta:   meta.Clone(),
		cursor: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}
	if s.health == nil {
		s.health = health.NewChecker(3, 1)
	}
	if s.breaker == nil {
		s.breaker = health.NewCircuitBreaker(cfg.Breaker)
	}
	s.log = logger.OrDefault(s.log).With("component", "waterfall", "ad_unit_id", meta.AdUnitID)
	s.ctx, s.stop = context.WithCancel(context.Background())
	return s
}

func (s *WaterfallSource) SetCallbacks(cb mediation.SourceCallbacks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = cb
}

// BeginLoad starts a fetch unless one is already in flight.
func (s *WaterfallSource) BeginLoad() {
	s.begin(false)
}

// BeginForceRefresh abandons any in-flight fetch and starts a new one.
func (s *WaterfallSource) BeginForceRefresh() {
	s.begin(true)
}

func (s *WaterfallSource) begin(force bool) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	if s.loading && !force {
		s.mu.Unlock()
		s.log.Debug("fetch already in flight, ignoring load")
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.fetchID++
	id := s.fetchID
	s.loading = true
	s.candidates = nil
	s.cursor = -1
	s.current = nil
	meta := s.meta.Clone()
	s.fetches.Add(1)
	s.mu.Unlock()

	go s.fetch(ctx, cancel, id, meta)
}

func (s *WaterfallSource) fetch(ctx context.Context, cancel context.CancelFunc, id uint64, meta mediation.SlotMetadata) {
	defer s.fetches.Done()
	defer cancel()

	resp, err := s.request(ctx, meta)

	s.mu.Lock()
	if id != s.fetchID || s.destroyed {
		s.mu.Unlock()
		return
	}
	s.loading = false
	s.cancel = nil
	cb := s.callbacks
	if err == nil {
		s.adUnitID = resp.AdUnitID
		if s.adUnitID == "" {
			s.adUnitID = meta.AdUnitID
		}
		s.candidates = resp.Candidates
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("waterfall fetch failed", "error", err)
		if cb != nil {
			cb.OnAllSourcesExhausted()
		}
		return
	}
	s.log.Debug("waterfall fetched", "candidates", len(resp.Candidates))
	s.advance(id)
}

// advance serves the next usable candidate of fetch id, or reports the
// waterfall exhausted.
func (s *WaterfallSource) advance(id uint64) {
	for {
		s.mu.Lock()
		if id != s.fetchID || s.destroyed || s.loading {
			s.mu.Unlock()
			return
		}
		cb := s.callbacks
		s.cursor++
		if s.cursor >= len(s.candidates) {
			s.current = nil
			s.mu.Unlock()
			s.log.Info("waterfall exhausted")
			if cb != nil {
				cb.OnAllSourcesExhausted()
			}
			return
		}
		c := s.candidates[s.cursor]
		adUnitID := s.adUnitID

		if key := c.HealthKey(); key != "" && !s.health.IsHealthy(key) {
			s.mu.Unlock()
			s.metrics.RecordSkip(key)
			s.log.Debug("skipping unhealthy network", "network", key)
			continue
		}
		content, handoff, ok := c.outcome(adUnitID)
		if !ok {
			pos := s.cursor
			s.mu.Unlock()
			s.log.Warn("skipping malformed candidate", "kind", string(c.Kind), "position", pos)
			continue
		}
		s.current = &c
		s.mu.Unlock()

		if content != nil {
			s.metrics.RecordCandidate(string(KindHTML))
			if cb != nil {
				cb.OnContentReady(*content)
			}
			return
		}
		s.metrics.RecordCandidate(handoff.Kind.String())
		if cb != nil {
			cb.OnMediationHandoff(*handoff)
		}
		return
	}
}

// AdapterFailed fires the current candidate's failure beacon and moves on.
func (s *WaterfallSource) AdapterFailed() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	cur := s.current
	id := s.fetchID
	s.mu.Unlock()

	if cur != nil {
		s.fire(tracking.KindFail, cur.FailURL)
		if key := cur.HealthKey(); key != "" {
			s.health.Update(key, false, errAdapterFailed)
		}
	}
	s.advance(id)
}

// TrackImpression fires the current candidate's impression beacon.
func (s *WaterfallSource) TrackImpression() {
	cur := s.currentCandidate()
	if cur == nil {
		return
	}
	s.fire(tracking.KindImpression, cur.ImpressionURL)
	if key := cur.HealthKey(); key != "" {
		s.health.Update(key, true, nil)
	}
}

// RegisterClick fires the current candidate's click beacon.
func (s *WaterfallSource) RegisterClick() {
	if cur := s.currentCandidate(); cur != nil {
		s.fire(tracking.KindClick, cur.ClickURL)
	}
}

func (s *WaterfallSource) currentCandidate() *Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}
	return s.current
}

func (s *WaterfallSource) fire(kind tracking.Kind, u string) {
	if s.beacons == nil || u == "" {
		return
	}
	s.beacons.Fire(kind, u)
}

func (s *WaterfallSource) Metadata() mediation.SlotMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta.Clone()
}

func (s *WaterfallSource) SetMetadata(meta mediation.SlotMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = meta.Clone()
}

// Destroy cancels in-flight work and detaches callbacks. It does not wait
// for the fetch goroutine; see Wait.
func (s *WaterfallSource) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.callbacks = nil
	s.candidates = nil
	s.current = nil
	s.mu.Unlock()

	s.stop()
}

// Wait blocks until background fetches have returned.
func (s *WaterfallSource) Wait() {
	s.fetches.Wait()
}

// Loading reports whether a fetch is in flight.
func (s *WaterfallSource) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *WaterfallSource) request(ctx context.Context, meta mediation.SlotMetadata) (*Response, error) {
	if !s.breaker.Allow() {
		s.metrics.RecordFetch("rejected", 0)
		return nil, ErrCircuitOpen
	}

	u, err := s.requestURL(meta)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := retry.Retry(ctx, func(ctx context.Context) (*Response, error) {
		return s.fetchOnce(ctx, u)
	}, &s.cfg.Retry)
	latency := time.Since(start).Seconds()

	switch {
	case errors.Is(err, context.Canceled):
		// superseded by a refresh or destroy, says nothing about the server
		s.metrics.RecordFetch("canceled", latency)
	case err != nil:
		s.breaker.RecordFailure()
		s.metrics.RecordFetch("error", latency)
	default:
		s.breaker.RecordSuccess()
		s.metrics.RecordFetch("ok", latency)
	}
	s.metrics.UpdateCircuitBreaker(s.breaker.State() == health.StateOpen)
	return resp, err
}

func (s *WaterfallSource) requestURL(meta mediation.SlotMetadata) (string, error) {
	base, err := url.Parse(s.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse ad server endpoint: %w", err)
	}
	q := base.Query()
	q.Set("id", meta.AdUnitID)
	q.Set("req", uuid.NewString())
	if meta.Keywords != "" {
		q.Set("q", meta.Keywords)
	}
	if meta.Testing {
		q.Set("test", "1")
	}
	if meta.LocationAwareness != mediation.LocationNormal {
		q.Set("loc", meta.LocationAwareness.String())
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (s *WaterfallSource) fetchOnce(parent context.Context, u string) (*Response, error) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, retry.Errorf(retry.ProtocolError, "build waterfall request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := s.client.Do(req)
	if err != nil {
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &retry.RetryableError{
				Type:    retry.TimeoutError,
				Message: fmt.Sprintf("waterfall request timed out after %s", s.cfg.Timeout),
			}
		}
		return nil, retry.Errorf(retry.NetworkError, "waterfall request: %w", err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusNoContent:
		return &Response{}, nil
	case httpResp.StatusCode >= http.StatusInternalServerError:
		return nil, retry.Errorf(retry.NetworkError, "ad server returned status %d", httpResp.StatusCode)
	case httpResp.StatusCode != http.StatusOK:
		return nil, retry.Errorf(retry.ProtocolError, "ad server returned status %d", httpResp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, retry.Errorf(retry.NetworkError, "read waterfall: %w", err)
	}
	if len(body) > MaxResponseBytes {
		return nil, retry.Errorf(retry.ProtocolError, "waterfall response exceeds %d bytes", MaxResponseBytes)
	}
	var resp Response
	if err := jsonx.Unmarshal(body, &resp); err != nil {
		return nil, retry.Errorf(retry.ProtocolError, "decode waterfall: %w", err)
	}
	return &resp, nil
}

// Package tracking fires impression, click and failure beacons.
package tracking

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/echoface/adslot/internal/metrics"
	"github.com/echoface/adslot/pkg/concurrent"
	"github.com/echoface/adslot/pkg/logger"
)

// Kind labels a beacon.
type Kind string

const (
	KindImpression Kind = "impression"
	KindClick      Kind = "click"
	KindFail       Kind = "fail"
)

// Beacon is one tracking URL to hit.
type Beacon struct {
	Kind Kind
	URL  string
}

// Config tunes beacon delivery.
type Config struct {
	BatchSize      int           `mapstructure:"batch_size" yaml:"batch_size"`
	MaxConcurrency int           `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		BatchSize:      16,
		MaxConcurrency: 8,
		Timeout:        5 * time.Second,
	}
}

// Tracker queues beacons and delivers them in batches. Beacons are fired
// once; delivery failures are counted and logged, never retried.
type Tracker struct {
	client  *http.Client
	timeout time.Duration
	log     logger.Logger
	metrics *metrics.TrackingMetrics

	ctrl      *concurrent.ConcurrencyController
	processor *concurrent.BatchProcessor[Beacon]

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

func NewTracker(cfg Config, client *http.Client, log logger.Logger, m *metrics.TrackingMetrics) *Tracker {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if client == nil {
		client = http.DefaultClient
	}

	t := &Tracker{
		client:  client,
		timeout: cfg.Timeout,
		log:     logger.OrDefault(log).With("component", "tracker"),
		metrics: m,
		ctrl:    concurrent.NewConcurrencyController(cfg.MaxConcurrency),
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.processor = concurrent.NewBatchProcessor(cfg.BatchSize, t.send)
	return t
}

// Fire queues a beacon. Empty URLs and beacons fired after Close are
// ignored.
func (t *Tracker) Fire(kind Kind, url string) {
	if url == "" || t.closed.Load() {
		return
	}
	t.processor.Add(Beacon{Kind: kind, URL: url})
}

// Flush dispatches queued beacons and waits until every batch is delivered.
func (t *Tracker) Flush() {
	t.processor.Flush()
	t.processor.Wait()
}

// Close flushes and stops accepting beacons.
func (t *Tracker) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	t.Flush()
	t.cancel()
}

func (t *Tracker) send(batch []Beacon) {
	tasks := make([]concurrent.Task[Beacon], 0, len(batch))
	for _, b := range batch {
		b := b
		tasks = append(tasks, func(ctx context.Context) (Beacon, error) {
			return b, t.hit(ctx, b)
		})
	}

	results, err := concurrent.ExecuteWithTimeout(t.ctrl, t.ctx, tasks, t.timeout)
	if err != nil {
		t.log.Warn("beacon batch timed out", "batch", len(batch), "delivered", len(results))
	}
	for _, r := range results {
		kind := string(r.Value.Kind)
		if kind == "" {
			kind = "unknown"
		}
		if r.Error != nil {
			t.metrics.RecordBeacon(kind, "error")
			t.log.Debug("beacon failed", "kind", kind, "url", r.Value.URL, "error", r.Error)
			continue
		}
		t.metrics.RecordBeacon(kind, "ok")
	}
}

func (t *Tracker) hit(ctx context.Context, b Beacon) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.URL, nil)
	if err != nil {
		return fmt.Errorf("build beacon request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("beacon returned status %d", resp.StatusCode)
	}
	return nil
}

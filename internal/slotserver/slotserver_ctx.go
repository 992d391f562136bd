package slotserver

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/echoface/adslot/internal/adsource"
	"github.com/echoface/adslot/internal/config"
	"github.com/echoface/adslot/internal/health"
	"github.com/echoface/adslot/internal/mediation"
	"github.com/echoface/adslot/internal/metrics"
	"github.com/echoface/adslot/internal/presenter"
	"github.com/echoface/adslot/internal/tracking"
	"github.com/echoface/adslot/pkg/logger"
)

// AppContext represents the global application context for the slot server
type AppContext struct {
	Config *config.ServerConfig

	HTTPServer *http.Server
	Router     *gin.Engine

	MetricsRegistry    *prometheus.Registry
	InterstitialMetric *metrics.InterstitialMetrics
	WaterfallMetric    *metrics.WaterfallMetrics

	// Registry maps handoff type tokens to adapter factories. It is filled
	// once at startup, before the server accepts requests.
	Registry *mediation.Registry

	Recorder  *presenter.Recorder
	Presenter mediation.PresentationHost
	Tracker   *tracking.Tracker
	Health    *health.Checker
	Breaker   *health.CircuitBreaker

	Slots *SlotManager

	// HTTP client for the ad server, networks and beacons
	HTTPClient *http.Client

	// Context for graceful shutdown, parent of every slot context
	ShutdownCtx    context.Context
	ShutdownCancel context.CancelFunc

	Logger logger.Logger

	maintenance sync.WaitGroup

	mu        sync.RWMutex
	isHealthy bool
	networks  []string
}

// NewAppContext creates and initializes a new application context
func NewAppContext(cfg *config.ServerConfig, log logger.Logger) *AppContext {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	log = logger.OrDefault(log)

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	router := gin.New()
	router.Use(gin.Recovery())

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	httpServer := &http.Server{
		Addr:         cfg.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ns := cfg.Monitoring.Prometheus.Namespace

	tracker := tracking.NewTracker(cfg.Tracking, httpClient, log.With("component", "tracking"),
		metrics.NewTrackingMetrics(reg, ns))
	recorder := presenter.NewRecorder(tracker)

	ac := &AppContext{
		Config:             cfg,
		HTTPServer:         httpServer,
		Router:             router,
		MetricsRegistry:    reg,
		InterstitialMetric: metrics.NewInterstitialMetrics(reg, ns),
		WaterfallMetric:    metrics.NewWaterfallMetrics(reg, ns),
		Registry:           mediation.NewRegistry(),
		Recorder:           recorder,
		Presenter:          presenter.NewLogPresenter(recorder, log.With("component", "presenter")),
		Tracker:            tracker,
		Health:             health.NewChecker(cfg.Health.FailureThreshold, cfg.Health.SuccessThreshold),
		Breaker:            health.NewCircuitBreaker(cfg.AdServer.Breaker),
		HTTPClient:         httpClient,
		ShutdownCtx:        shutdownCtx,
		ShutdownCancel:     shutdownCancel,
		Logger:             log,
		isHealthy:          true,
	}
	ac.Slots = NewSlotManager(cfg.Slots.MaxSlots, ac.NewInterstitial, log.With("component", "slots"))
	return ac
}

// NewInterstitial builds a slot backed by the configured ad server.
func (ac *AppContext) NewInterstitial(slotID string, meta mediation.SlotMetadata) *mediation.Interstitial {
	slotLog := ac.Logger.With("slot_id", slotID)
	source := adsource.NewWaterfallSource(ac.Config.AdServer, meta,
		adsource.WithHTTPClient(ac.HTTPClient),
		adsource.WithHealthChecker(ac.Health),
		adsource.WithCircuitBreaker(ac.Breaker),
		adsource.WithBeaconer(ac.Tracker),
		adsource.WithLogger(slotLog),
		adsource.WithMetrics(ac.WaterfallMetric),
	)
	return mediation.NewInterstitial(slotID, source,
		mediation.WithRegistry(ac.Registry),
		mediation.WithPresenter(ac.Presenter),
		mediation.WithLogger(ac.Logger),
		mediation.WithMetrics(ac.InterstitialMetric),
		mediation.WithContext(ac.ShutdownCtx),
	)
}

// SetNetworks records the network types registered from the catalogue.
func (ac *AppContext) SetNetworks(types []string) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.networks = append([]string(nil), types...)
}

// Networks returns the network types registered from the catalogue.
func (ac *AppContext) Networks() []string {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return append([]string(nil), ac.networks...)
}

// SetHealthStatus sets the overall health status of the application
func (ac *AppContext) SetHealthStatus(healthy bool) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.isHealthy = healthy
}

// IsApplicationHealthy returns the overall health status
func (ac *AppContext) IsApplicationHealthy() bool {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.isHealthy
}

// StartMaintenance periodically forgets stale network health so networks
// skipped for failing get another chance. It stops on shutdown.
func (ac *AppContext) StartMaintenance() {
	interval := ac.Config.Health.StaleAfter
	if interval <= 0 {
		return
	}
	ac.maintenance.Add(1)
	go func() {
		defer ac.maintenance.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ac.ShutdownCtx.Done():
				return
			case <-ticker.C:
				ac.Health.CleanupStale(interval)
			}
		}
	}()
}

// Run serves HTTP until Shutdown is called.
func (ac *AppContext) Run() error {
	ac.Logger.Info("slot server listening", "addr", ac.HTTPServer.Addr)
	if err := ac.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, destroys every slot and flushes
// pending beacons.
func (ac *AppContext) Shutdown(ctx context.Context) error {
	ac.Logger.Info("initiating graceful shutdown")
	ac.SetHealthStatus(false)

	err := ac.HTTPServer.Shutdown(ctx)
	ac.Slots.DestroyAll()
	ac.ShutdownCancel()
	ac.maintenance.Wait()
	ac.Tracker.Close()
	ac.HTTPClient.CloseIdleConnections()

	ac.Logger.Info("graceful shutdown completed")
	return err
}

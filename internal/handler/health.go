package handler

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/echoface/adslot/internal/health"
	"github.com/echoface/adslot/internal/slotserver"
)

// Version is set at build time with -ldflags "-X ...handler.Version=...".
var Version = "v1.0.0-dev"

// HealthHandler handles health check requests
type HealthHandler struct {
	appCtx    *slotserver.AppContext
	startTime time.Time

	healthCheckTotal    prometheus.Counter
	healthCheckDuration prometheus.Histogram
	lastHealthCheckTime prometheus.Gauge
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Uptime     string                     `json:"uptime"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
	Checks     map[string]bool            `json:"checks,omitempty"`
	Networks   map[string]health.Status   `json:"networks,omitempty"`
}

// ComponentStatus represents the status of a component
type ComponentStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

func NewHealthHandler(appCtx *slotserver.AppContext, registry prometheus.Registerer) *HealthHandler {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &HealthHandler{
		appCtx:    appCtx,
		startTime: time.Now(),
		healthCheckTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "health_check_requests_total",
			Help: "Total number of health check requests",
		}),
		healthCheckDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "health_check_duration_seconds",
			Help:    "Duration of health checks",
			Buckets: prometheus.DefBuckets,
		}),
		lastHealthCheckTime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "health_check_last_time_seconds",
			Help: "Unix timestamp of the last health check",
		}),
	}
}

// HealthCheck handles the main health check endpoint
func (hh *HealthHandler) HealthCheck(c *gin.Context) {
	start := time.Now()
	defer func() {
		hh.healthCheckDuration.Observe(time.Since(start).Seconds())
		hh.lastHealthCheckTime.SetToCurrentTime()
		hh.healthCheckTotal.Inc()
	}()

	checks := map[string]bool{
		"application": hh.appCtx.IsApplicationHealthy(),
		"ad_server":   hh.checkAdServer(),
		"memory":      hh.checkMemory(),
	}

	status, httpStatus := "healthy", http.StatusOK
	for _, ok := range checks {
		if !ok {
			status, httpStatus = "unhealthy", http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Uptime:     time.Since(hh.startTime).String(),
		Version:    Version,
		Components: hh.getComponentStatus(),
		Checks:     checks,
		Networks:   hh.appCtx.Health.All(),
	})
}

// LivenessProbe handles Kubernetes liveness probe
func (hh *HealthHandler) LivenessProbe(c *gin.Context) {
	if hh.appCtx.IsApplicationHealthy() {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
		})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"status":    "dead",
		"timestamp": time.Now(),
	})
}

// ReadinessProbe handles Kubernetes readiness probe
func (hh *HealthHandler) ReadinessProbe(c *gin.Context) {
	checks := map[string]bool{
		"config_loaded":   hh.appCtx.Config != nil,
		"adapters_ready":  len(hh.appCtx.Registry.Types()) > 0,
		"accepting_slots": hh.appCtx.IsApplicationHealthy(),
	}

	status, responseStatus := http.StatusOK, "ready"
	for _, ok := range checks {
		if !ok {
			status, responseStatus = http.StatusServiceUnavailable, "not_ready"
			break
		}
	}

	c.JSON(status, gin.H{
		"status":    responseStatus,
		"timestamp": time.Now(),
		"checks":    checks,
		"adapters":  hh.appCtx.Registry.Types(),
		"networks":  hh.appCtx.Networks(),
	})
}

func (hh *HealthHandler) getComponentStatus() map[string]ComponentStatus {
	now := time.Now()
	breaker := hh.appCtx.Breaker.State()

	unhealthy := 0
	for _, st := range hh.appCtx.Health.All() {
		if !st.Healthy {
			unhealthy++
		}
	}
	networks := ComponentStatus{Status: "healthy", LastCheck: now}
	if unhealthy > 0 {
		networks.Status = "degraded"
		networks.Message = fmt.Sprintf("%d unhealthy networks skipped", unhealthy)
	}

	return map[string]ComponentStatus{
		"ad_server": {
			Status:    hh.getStatusString(breaker != health.StateOpen),
			Message:   "circuit " + breaker.String(),
			LastCheck: now,
		},
		"networks": networks,
		"slots": {
			Status:    "healthy",
			Message:   fmt.Sprintf("%d slots hosted", hh.appCtx.Slots.Len()),
			LastCheck: now,
		},
		"memory": {
			Status:    hh.getStatusString(hh.checkMemory()),
			LastCheck: now,
		},
	}
}

func (hh *HealthHandler) checkAdServer() bool {
	return hh.appCtx.Breaker.State() != health.StateOpen
}

func (hh *HealthHandler) checkMemory() bool {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc <= m.Sys*9/10
}

func (hh *HealthHandler) getStatusString(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}

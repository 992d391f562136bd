package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/echoface/adslot/internal/middleware"
	"github.com/echoface/adslot/internal/slotserver"
)

// Setup installs middleware and every route on appCtx.Router.
func Setup(appCtx *slotserver.AppContext) {
	cfg := appCtx.Config
	r := appCtx.Router

	r.Use(middleware.RequestLogger(appCtx.Logger.With("component", "http")))
	if cfg.Monitoring.Prometheus.Enabled {
		httpMetrics := middleware.NewHTTPMetrics(appCtx.MetricsRegistry, cfg.Monitoring.Prometheus.Namespace)
		r.Use(middleware.PrometheusMetrics(httpMetrics))
	}

	healthHandler := NewHealthHandler(appCtx, appCtx.MetricsRegistry)
	slotHandler := NewSlotHandler(appCtx)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "adslot interstitial server is running",
			"version": Version,
			"healthy": appCtx.IsApplicationHealthy(),
		})
	})

	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/health/live", healthHandler.LivenessProbe)
	r.GET("/health/ready", healthHandler.ReadinessProbe)

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.HandlerFor(appCtx.MetricsRegistry, promhttp.HandlerOpts{
			Registry: appCtx.MetricsRegistry,
		})))
	}

	v1 := r.Group("/v1/slots")
	v1.POST("", slotHandler.Create)
	v1.GET("", slotHandler.List)
	v1.GET("/:id", slotHandler.Get)
	v1.DELETE("/:id", slotHandler.Delete)
	v1.POST("/:id/load", slotHandler.Load)
	v1.POST("/:id/refresh", slotHandler.Refresh)
	v1.POST("/:id/show", slotHandler.Show)
	v1.POST("/:id/click", slotHandler.Click)
	v1.PUT("/:id/settings", slotHandler.UpdateSettings)
}

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/echoface/adslot/internal/adapters/customevent"
	"github.com/echoface/adslot/internal/config"
	"github.com/echoface/adslot/internal/handler"
	"github.com/echoface/adslot/internal/slotserver"
	pkgconfig "github.com/echoface/adslot/pkg/config"
)

const serviceName = "slotserver"

func main() {
	// Load configuration based on RUN_TYPE
	cfg, err := config.LoadConfig(serviceName)
	if errors.Is(err, pkgconfig.ErrConfigNotFound) {
		log.Printf("%v, using defaults", err)
		cfg, err = config.NewDefaultConfig(), nil
		cfg.RunType = pkgconfig.GetRunType()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := cfg.NewLogger(cfg.RunType)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	logger = logger.With("service", serviceName)

	if pkgconfig.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	appCtx := slotserver.NewAppContext(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := appCtx.RegisterAdapters(ctx, customevent.NewEventRegistry()); err != nil {
		logger.Fatal("failed to register adapters", "error", err)
	}
	handler.Setup(appCtx)
	appCtx.StartMaintenance()

	logger.Info("slot server starting",
		"config", cfg.ConfigFile,
		"run_type", cfg.RunType,
		"ad_server", cfg.AdServer.Endpoint)

	errCh := make(chan error, 1)
	go func() { errCh <- appCtx.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("slot server stopped", "error", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := appCtx.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
	_ = logger.Sync()
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"fungiwatch/internal/cache"
	"fungiwatch/internal/catalog"
	"fungiwatch/internal/config"
	"fungiwatch/internal/fetchers"
	"fungiwatch/internal/logger"
	"fungiwatch/internal/mocks"
	"fungiwatch/internal/observability"
	"fungiwatch/internal/server"
	"fungiwatch/internal/storage"
	"fungiwatch/internal/syncer"
)

func main() {
	ctx := context.Background()

	// Optional .env for local development.
	godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}
	if level := logger.ParseLevel(cfg.LogLevel); level != -1 {
		logger.GetGlobalLogger().SetLevel(level)
	}

	logger.Info("Starting species observation tracker", logger.Fields{
		"port":        cfg.Port,
		"environment": cfg.Environment,
		"data_dir":    cfg.DataDir,
	})

	store, err := cache.NewFileStore(cfg.DataDir)
	if err != nil {
		logger.Fatal("Failed to initialize observation cache", err)
	}

	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	var fetcher syncer.Fetcher
	if cfg.MockupMode {
		logger.Info("Mockup mode enabled, serving synthetic observations")
		fetcher = mocks.NewMockFetcher(clock.Now())
	} else {
		fetcher = fetchers.NewObservationFetcher(fetchers.Options{
			BaseURL:   cfg.APIBaseURL,
			PlaceIDs:  cfg.PlaceIDs,
			PageSize:  cfg.PageSize,
			PageDelay: cfg.PageDelay,
			Timeout:   cfg.RequestTimeout,
			Clock:     clock,
			Metrics:   metrics,
		})
	}

	engine := syncer.New(store, fetcher, metrics)
	cat := catalog.New(cfg.SpeciesFile)

	storageClient, err := storage.NewClient(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize report storage", err)
	}

	srv := server.NewServer(cfg, engine, store, cat, storageClient, clock)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.SetupRoutes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // batch updates can take a while
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", err)
	}

	logger.Info("Server stopped")
}

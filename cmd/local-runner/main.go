package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"fungiwatch/internal/cache"
	"fungiwatch/internal/catalog"
	"fungiwatch/internal/config"
	"fungiwatch/internal/fetchers"
	"fungiwatch/internal/logger"
	"fungiwatch/internal/mocks"
	"fungiwatch/internal/observability"
	"fungiwatch/internal/reports"
	"fungiwatch/internal/storage"
	"fungiwatch/internal/syncer"
)

// One-shot runner: update every tracked species, then render and publish the
// consolidated report to the local reports directory. Useful for cron jobs
// and local testing without the HTTP server.
func main() {
	if err := run(); err != nil {
		logger.Error("Run failed", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if level := logger.ParseLevel(cfg.LogLevel); level != -1 {
		logger.GetGlobalLogger().SetLevel(level)
	}

	store, err := cache.NewFileStore(cfg.DataDir)
	if err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

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

	species, err := cat.Load()
	if err != nil {
		return err
	}
	if len(species) == 0 {
		logger.Warn("No species tracked, nothing to do", logger.Fields{"species_file": cfg.SpeciesFile})
		return nil
	}

	logger.Info("Updating tracked species", logger.Fields{"count": len(species)})
	statuses := engine.UpdateAll(ctx, species)
	for _, st := range statuses {
		logger.Info("Species update finished", logger.Fields{
			"species": st.Species.Name,
			"outcome": st.Outcome(),
			"new":     st.Result.New,
			"total":   st.Result.Total,
		})
	}

	// Publish the consolidated report locally.
	client, err := storage.NewLocalClient(cfg.LocalReportsDir)
	if err != nil {
		return err
	}
	defer client.Close()

	entries := make([]reports.ConsolidatedEntry, 0, len(species))
	for _, sp := range species {
		records, _, err := store.Load(sp.TaxonID)
		if err != nil {
			logger.Error("Failed to load cached records", err, logger.Fields{"species": sp.Name})
			continue
		}
		entries = append(entries, reports.ConsolidatedEntry{Species: sp, Records: records})
	}

	now := clock.Now()
	files, err := reports.NewGenerator().ConsolidatedReport(entries, now)
	if err != nil {
		return fmt.Errorf("failed to render consolidated report: %w", err)
	}

	folder, err := reports.NewPublisher(client).Publish(ctx, "all-species", files, now)
	if err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}

	logger.Info("Consolidated report written", logger.Fields{
		"path": cfg.LocalReportsDir + "/" + folder + "/" + storage.ReportFileName,
	})
	return nil
}

package storage

import (
	"context"

	"fungiwatch/internal/config"
	"fungiwatch/internal/logger"
)

// NewClient creates the appropriate storage client based on configuration.
// A configured GCS bucket wins; otherwise reports go to the local directory.
func NewClient(ctx context.Context, cfg *config.Config) (Client, error) {
	if cfg.GCSBucket != "" {
		logger.Info("Using GCS report storage", logger.Fields{"bucket": cfg.GCSBucket})
		return NewGCSClient(ctx, cfg.GCSBucket)
	}
	logger.Info("Using local report storage", logger.Fields{"dir": cfg.LocalReportsDir})
	return NewLocalClient(cfg.LocalReportsDir)
}

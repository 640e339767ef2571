package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the species observation service
type Config struct {
	// Server configuration
	Port string `env:"PORT,default=8982"`

	// Observation source configuration
	APIBaseURL     string        `env:"API_BASE_URL,default=https://api.inaturalist.org/v1"`
	PlaceIDs       []int         `env:"PLACE_IDS,default=10"`
	PageSize       int           `env:"PAGE_SIZE,default=200"`
	PageDelay      time.Duration `env:"PAGE_DELAY,default=500ms"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=15s"`

	// Local data layout
	DataDir     string `env:"DATA_DIR,default=./species_data"`
	SpeciesFile string `env:"SPECIES_FILE,default=./species.txt"`

	// Report storage (local directory or GCS bucket)
	LocalReportsDir string `env:"LOCAL_REPORTS_DIR,default=./reports"`
	GCSBucket       string `env:"GCS_BUCKET"`

	// Service configuration
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	MockupMode  bool   `env:"MOCKUP_MODE,default=false"`
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("PAGE_SIZE must be positive, got %d", cfg.PageSize)
	}
	return &cfg, nil
}

package server

import (
	"net/http"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fungiwatch/internal/cache"
	"fungiwatch/internal/catalog"
	"fungiwatch/internal/config"
	"fungiwatch/internal/logger"
	"fungiwatch/internal/reports"
	"fungiwatch/internal/storage"
	"fungiwatch/internal/syncer"
)

// Server wires the sync engine, species catalog, cache store, and report
// pipeline behind HTTP handlers.
type Server struct {
	Config    *config.Config
	Engine    *syncer.Engine
	Store     cache.Store
	Catalog   *catalog.Catalog
	Generator *reports.Generator
	Publisher *reports.Publisher
	Storage   storage.Client
	Clock     clockwork.Clock

	// Serializes update, refresh, and generate runs.
	runMutex sync.Mutex

	log *logger.Logger
}

// NewServer creates a server around already-constructed components.
func NewServer(cfg *config.Config, engine *syncer.Engine, store cache.Store, cat *catalog.Catalog, storageClient storage.Client, clock clockwork.Clock) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Server{
		Config:    cfg,
		Engine:    engine,
		Store:     store,
		Catalog:   cat,
		Generator: reports.NewGenerator(),
		Publisher: reports.NewPublisher(storageClient),
		Storage:   storageClient,
		Clock:     clock,
		log:       logger.GetGlobalLogger().WithComponent("server"),
	}
}

// SetupRoutes configures HTTP routes for the server
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/species", s.HandleSpecies)
	mux.HandleFunc("/update", s.HandleUpdate)
	mux.HandleFunc("/refresh", s.HandleRefresh)
	mux.HandleFunc("/generate", s.HandleGenerate)
	mux.HandleFunc("/reports", s.HandleListReports)
	mux.HandleFunc("/files/", s.HandleFileProxy)
	mux.HandleFunc("/cache/purge", s.HandleCachePurge)
	mux.Handle("/metrics", promhttp.Handler())

	// Catch-all last.
	mux.HandleFunc("/", s.HandleRoot)

	return mux
}

// Close cleans up server resources
func (s *Server) Close() error {
	if s.Storage != nil {
		return s.Storage.Close()
	}
	return nil
}

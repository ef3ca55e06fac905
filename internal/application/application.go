package application

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/flowpack/internal/api"
	"github.com/eugenenazirov/flowpack/internal/cache"
	"github.com/eugenenazirov/flowpack/internal/config"
	"github.com/eugenenazirov/flowpack/internal/flow"
	"github.com/eugenenazirov/flowpack/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage storage.Storage
	packer  *cache.Packer
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store := storage.NewMemoryStorage()
	settings := storage.DefaultSettings()
	settings.MaxWidth = cfg.MaxWidth
	settings.Spacing = cfg.Spacing
	if err := store.SetSettings(settings); err != nil {
		return nil, fmt.Errorf("failed to apply initial settings: %w", err)
	}

	packer, err := cache.NewPacker(flow.New(), cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	handler := api.NewHandler(packer, store,
		api.WithStats(packer),
		api.WithMaxItems(cfg.MaxItems),
		api.WithBatchConcurrency(cfg.BatchConcurrency),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		storage: store,
		packer:  packer,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, BuildRootHandler(apiRouter)),
	}, nil
}

// BuildRootHandler mounts the API under /api/ and answers everything else with 404.
func BuildRootHandler(apiHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/", http.NotFoundHandler())
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening",
			zap.String("addr", a.server.Addr),
			zap.Bool("cache_enabled", a.packer.Stats().Enabled),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/flowpack/internal/application"
	"github.com/eugenenazirov/flowpack/internal/config"
	"github.com/eugenenazirov/flowpack/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("flowpack-server", "Flow layout service - packs item sizes into wrapped rows")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	maxWidthFlag := kingpinApp.Flag("max-width", "Default container width (0 disables wrapping)").Default("-1").Float64()
	spacingFlag := kingpinApp.Flag("spacing", "Default gap between items and rows").Default("-1").Float64()
	cacheSizeFlag := kingpinApp.Flag("cache-size", "Number of layout results to cache (set 0 to disable)").Default("-1").Int()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	rateLimitRPSFlag := kingpinApp.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *maxWidthFlag >= 0 {
		overrides.MaxWidth = maxWidthFlag
	}

	if *spacingFlag >= 0 {
		overrides.Spacing = spacingFlag
	}

	if *cacheSizeFlag >= 0 {
		overrides.CacheSize = cacheSizeFlag
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Float64("max_width", cfg.MaxWidth),
		zap.Float64("spacing", cfg.Spacing),
		zap.Int("cache_size", cfg.CacheSize),
		zap.Int("max_items", cfg.MaxItems),
	)

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}

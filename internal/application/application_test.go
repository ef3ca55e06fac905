package application

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/flowpack/internal/config"
)

func TestNewInitializesDependencies(t *testing.T) {
	cfg := baseTestConfig(":8085")
	cfg.MaxWidth = 400
	cfg.Spacing = 4
	logger := zaptest.NewLogger(t)

	app, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	settings, err := app.storage.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings returned error: %v", err)
	}
	if settings.MaxWidth != 400 || settings.Spacing != 4 {
		t.Fatalf("expected configured layout defaults, got %+v", settings)
	}
	if !app.packer.Stats().Enabled {
		t.Fatalf("expected cache to be enabled for cache size %d", cfg.CacheSize)
	}
	if app.server == nil || app.router == nil || app.handler == nil {
		t.Fatalf("expected server, router, and handler to be initialized")
	}
	if app.Server() != app.server {
		t.Fatalf("Server accessor did not return underlying instance")
	}
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := baseTestConfig("9090")
	handler := http.NewServeMux()

	server := NewServer(cfg, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != cfg.ReadHeaderTimeout ||
		server.WriteTimeout != cfg.WriteTimeout ||
		server.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("server timeouts do not match configuration")
	}
}

func TestNewReturnsErrorForInvalidSettings(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.Spacing = -1

	if _, err := New(cfg, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for invalid settings")
	}
}

func TestServerServesLayoutRequests(t *testing.T) {
	app, err := New(baseTestConfig(":0"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	app.Server().Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func baseTestConfig(port string) config.Config {
	return config.Config{
		Port:                 port,
		MaxWidth:             320,
		Spacing:              8,
		MaxItems:             100,
		CacheSize:            16,
		BatchConcurrency:     2,
		ShutdownGracePeriod:  50 * time.Millisecond,
		ReadHeaderTimeout:    20 * time.Millisecond,
		WriteTimeout:         30 * time.Millisecond,
		IdleTimeout:          40 * time.Millisecond,
		EnableRequestLogging: false,
		RateLimitRPS:         0,
		RateLimitBurst:       0,
	}
}

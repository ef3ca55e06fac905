package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticLimiter struct {
	allow bool
}

func (s *staticLimiter) Allow(string) bool {
	return s.allow
}

func TestRateLimitMiddlewareBlocksWhenLimiterDenies(t *testing.T) {
	middleware := rateLimitMiddleware(&staticLimiter{allow: false}, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler should not execute when rate limited")
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	middleware.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestRateLimitMiddlewarePassesWhenLimiterAllows(t *testing.T) {
	var called bool
	middleware := rateLimitMiddleware(&staticLimiter{allow: true}, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	middleware.ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to execute when limiter allows")
	}
}

func TestNewTokenBucketLimiterUsesDefaults(t *testing.T) {
	limiter := newTokenBucketLimiter(0, 0)
	if limiter == nil {
		t.Fatalf("expected limiter instance")
	}
	if !limiter.Allow("client") {
		t.Fatalf("expected first request to be allowed")
	}
}

func TestTokenBucketLimiterTracksClientsSeparately(t *testing.T) {
	limiter := newTokenBucketLimiter(1, 1)

	if !limiter.Allow("10.0.0.1") {
		t.Fatalf("expected first request from client A to be allowed")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatalf("expected second request from client A to be limited")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatalf("expected client B to have its own bucket")
	}
}

func TestClientKeyStripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:53122"
	if got := clientKey(req); got != "203.0.113.7" {
		t.Fatalf("expected host only, got %s", got)
	}

	req.RemoteAddr = "pipe"
	if got := clientKey(req); got != "pipe" {
		t.Fatalf("expected raw address fallback, got %s", got)
	}
}

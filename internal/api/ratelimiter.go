package api

import (
	"net"
	"net/http"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the number of per-client buckets kept in memory.
const maxTrackedClients = 4096

type rateLimiter interface {
	Allow(client string) bool
}

// clientLimiter keeps one token bucket per client address. The least
// recently seen clients are evicted once maxTrackedClients is reached.
type clientLimiter struct {
	limit   rate.Limit
	burst   int
	buckets *lru.Cache[string, *rate.Limiter]
}

func newTokenBucketLimiter(ratePerSecond float64, burst int) rateLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	buckets, err := lru.New[string, *rate.Limiter](maxTrackedClients)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}

	return &clientLimiter{
		limit:   rate.Limit(ratePerSecond),
		burst:   burst,
		buckets: buckets,
	}
}

func (l *clientLimiter) Allow(client string) bool {
	if l == nil || l.buckets == nil {
		return true
	}
	limiter, ok := l.buckets.Get(client)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		if prev, exists, _ := l.buckets.PeekOrAdd(client, limiter); exists {
			limiter = prev
		}
	}
	return limiter.Allow()
}

// clientKey identifies the caller by remote host, ignoring the port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func rateLimitMiddleware(limiter rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter.Allow(clientKey(r)) {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded, please retry shortly")
	})
}

package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/allisson/onetime/internal/httputil"
)

// clientLimiter tracks a per-client token bucket and its last use so stale
// entries can be evicted.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter applies a per-client-IP token bucket. The retrieval endpoint is
// the sensitive one: ids carry 48 bits of entropy, and the limiter keeps
// blind probing for live ids impractical.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     rate.Limit
	burst   int
}

func newRateLimiter(ctx context.Context, requestsPerSecond float64, burst int) *rateLimiter {
	rl := &rateLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(requestsPerSecond),
		burst:   burst,
	}
	go rl.evictStale(ctx, time.Minute)
	return rl
}

// get returns the limiter for a client, creating it on first sight.
func (rl *rateLimiter) get(clientIP string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.clients[clientIP]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[clientIP] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// evictStale drops limiters idle for more than three minutes. It exits when
// the context is cancelled so the goroutine does not outlive the server.
func (rl *rateLimiter) evictStale(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-3 * time.Minute)
			for ip, entry := range rl.clients {
				if entry.lastSeen.Before(cutoff) {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// createRateLimitMiddleware creates a per-IP rate limiting middleware.
// Returns nil if rate limiting is disabled.
func createRateLimitMiddleware(
	ctx context.Context,
	enabled bool,
	requestsPerSecond float64,
	burst int,
	logger *slog.Logger,
) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	logger.Info("rate limiting enabled",
		slog.Float64("requests_per_second", requestsPerSecond),
		slog.Int("burst", burst))

	rl := newRateLimiter(ctx, requestsPerSecond, burst)
	return func(c *gin.Context) {
		if !rl.get(c.ClientIP()).Allow() {
			httputil.MakeJSONResponse(c.Writer, http.StatusTooManyRequests, httputil.ErrorResponse{
				Error:   "rate_limited",
				Message: "too many requests",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

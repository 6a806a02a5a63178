package httpapi

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/rolldown-labs/lottery-protocol/internal/logging"
)

// rateLimiter throttles the read API per client IP, grounded on the
// teacher's internal/middleware.RateLimiter (one rate.Limiter per key, gin
// wrapping http.Handler instead of the teacher's raw net/http chain). This
// surface has no authenticated user concept, so the key is always the
// remote address rather than the teacher's user-ID-or-IP fallback.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	log      *logging.Logger
}

func newRateLimiter(requestsPerSecond int, burst int, log *logging.Logger) *rateLimiter {
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		log:      log,
	}
}

func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// middleware returns the gin handler. After each allowed request, cleanup
// below resets the limiter map once it grows past a fixed watermark.
func (rl *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !rl.getLimiter(key).Allow() {
			rl.log.WithField("key", key).WithField("path", c.Request.URL.Path).Warn("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		rl.cleanup()
		c.Next()
	}
}

// cleanup bounds the limiter map's growth the same way the teacher's
// Cleanup does: reset wholesale past a size watermark rather than tracking
// per-key last-access time.
func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.limiters) > 10_000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}
}

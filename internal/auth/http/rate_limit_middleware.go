package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apperrors "github.com/allisson/identity/internal/errors"
	"github.com/allisson/identity/internal/httputil"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTimeout     = time.Hour
)

// rateLimiterStore holds keyed rate limiters with automatic cleanup.
type rateLimiterStore struct {
	limiters sync.Map // map[string]*rateLimiterEntry
	rps      float64
	burst    int
}

// rateLimiterEntry holds a rate limiter and last access time for cleanup.
type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
	mu         sync.Mutex
}

func newRateLimiterStore(ctx context.Context, rps float64, burst int) *rateLimiterStore {
	store := &rateLimiterStore{
		rps:   rps,
		burst: burst,
	}
	go store.cleanupStale(ctx, limiterCleanupInterval)
	return store
}

// IPRateLimitMiddleware enforces per-IP rate limiting on unauthenticated endpoints
// (login, two-factor verification, password reset and email checks) to slow down
// credential stuffing and code guessing.
//
// Uses c.ClientIP() which handles X-Forwarded-For and X-Real-IP according to the
// engine's trusted proxy settings. The cleanup goroutine stops when ctx is done.
//
// Returns:
//   - 429 Too Many Requests: Rate limit exceeded (includes Retry-After header)
//   - Continues: Request allowed within rate limit
func IPRateLimitMiddleware(ctx context.Context, rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	store := newRateLimiterStore(ctx, rps, burst)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !store.allow(c, clientIP) {
			logger.Debug("ip rate limit exceeded", slog.String("client_ip", clientIP))
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware enforces per-user rate limiting on authenticated requests.
//
// MUST be used after AuthenticationMiddleware (requires verified claims in context).
// Each token subject gets an independent token bucket.
func RateLimitMiddleware(ctx context.Context, rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	store := newRateLimiterStore(ctx, rps, burst)

	return func(c *gin.Context) {
		payload, ok := GetPayload(c.Request.Context())
		if !ok || payload == nil {
			logger.Error("rate limit middleware: no authenticated subject in context")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		subject := payload.Subject.String()
		if !store.allow(c, subject) {
			logger.Debug("rate limit exceeded", slog.String("subject", subject))
			return
		}
		c.Next()
	}
}

// allow consumes one token for key. When the bucket is empty it writes the 429
// response, aborts the chain and returns false.
func (s *rateLimiterStore) allow(c *gin.Context, key string) bool {
	limiter := s.getLimiter(key)
	if limiter.Allow() {
		return true
	}

	reservation := limiter.Reserve()
	retryAfter := int(reservation.Delay().Seconds())
	reservation.Cancel()
	if retryAfter < 1 {
		retryAfter = 1
	}

	c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":   "rate_limit_exceeded",
		"message": "Too many requests. Please retry after the specified delay.",
	})
	c.Abort()
	return false
}

// getLimiter retrieves or creates the rate limiter for a key.
func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	if val, ok := s.limiters.Load(key); ok {
		entry := val.(*rateLimiterEntry)
		entry.mu.Lock()
		entry.lastAccess = time.Now()
		entry.mu.Unlock()
		return entry.limiter
	}

	entry := &rateLimiterEntry{
		limiter:    rate.NewLimiter(rate.Limit(s.rps), s.burst),
		lastAccess: time.Now(),
	}
	actual, _ := s.limiters.LoadOrStore(key, entry)
	return actual.(*rateLimiterEntry).limiter
}

// cleanupStale removes rate limiters that haven't been accessed recently.
func (s *rateLimiterStore) cleanupStale(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.removeIdle(time.Now().Add(-limiterIdleTimeout))
		}
	}
}

// removeIdle drops limiters last used before threshold.
func (s *rateLimiterStore) removeIdle(threshold time.Time) {
	s.limiters.Range(func(key, value any) bool {
		entry := value.(*rateLimiterEntry)
		entry.mu.Lock()
		shouldDelete := entry.lastAccess.Before(threshold)
		entry.mu.Unlock()

		if shouldDelete {
			s.limiters.Delete(key)
		}
		return true
	})
}

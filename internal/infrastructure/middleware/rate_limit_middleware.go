package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"pairlink/pkg/config"
	apperrors "pairlink/pkg/errors"
	"pairlink/pkg/netaddr"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiterStore stores per-client rate limiters keyed by canonical IP.
type rateLimiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	rate      rate.Limit
	burstSize int
	lastSweep time.Time
}

func newRateLimiterStore(r rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters:  make(map[string]*clientLimiter),
		rate:      r,
		burstSize: burst,
		lastSweep: time.Now(),
	}
}

func (s *rateLimiterStore) getLimiter(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) > limiterIdleTTL {
		s.sweep(now)
	}

	entry, exists := s.limiters[key]
	if !exists {
		entry = &clientLimiter{limiter: rate.NewLimiter(s.rate, s.burstSize)}
		s.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// sweep drops limiters of clients idle for longer than limiterIdleTTL.
func (s *rateLimiterStore) sweep(now time.Time) {
	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(s.limiters, key)
		}
	}
	s.lastSweep = now
}

func (s *rateLimiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// NewHTTPRateLimitMiddleware returns Gin middleware that limits requests per
// client address. Proxy headers are trusted when deriving the address.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	rps := cfg.RateLimiting.HTTP.RequestsPerSecond
	burst := cfg.RateLimiting.HTTP.Burst

	store := newRateLimiterStore(rate.Limit(rps), burst)
	retryAfter := int(math.Ceil(1 / rps))

	var globalSem chan struct{}
	if cfg.RateLimiting.HTTP.MaxConcurrent > 0 {
		globalSem = make(chan struct{}, cfg.RateLimiting.HTTP.MaxConcurrent)
	}

	return func(c *gin.Context) {
		// Global concurrent requests throttling
		if globalSem != nil {
			select {
			case globalSem <- struct{}{}:
				defer func() { <-globalSem }()
			default:
				appErr := apperrors.NewServiceUnavailableError("too many concurrent requests")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"error":   string(appErr.Code),
					"message": appErr.Message,
				})
				return
			}
		}

		ip := netaddr.ClientIP(c.Request.Header, c.Request.RemoteAddr)
		if !store.getLimiter(ip, time.Now()).Allow() {
			appErr := apperrors.NewRateLimitError()
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
				"error":       string(appErr.Code),
				"message":     appErr.Message,
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}

package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/propertyhub/backoffice/internal/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds the request budget per client IP
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultRateLimitConfig returns the default booking request budget
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 20,          // 20 requests
		Window:      time.Minute, // per minute
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps a token bucket per key. Each bucket holds MaxRequests
// tokens and refills one every Window/MaxRequests.
type RateLimiter struct {
	config RateLimitConfig
	every  rate.Limit
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiter creates a limiter; a non-positive MaxRequests disables it
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	l := &RateLimiter{
		config:  config,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
	if config.MaxRequests > 0 {
		l.every = rate.Every(config.Window / time.Duration(config.MaxRequests))
	}
	return l
}

// Allow takes a token for key. When none is left it reports how long until
// the next one is available.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	if l.config.MaxRequests <= 0 {
		return true, 0
	}

	now := l.now()

	l.mu.Lock()
	client, ok := l.clients[key]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(l.every, l.config.MaxRequests)}
		l.clients[key] = client
	}
	client.lastSeen = now
	l.mu.Unlock()

	reservation := client.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, l.config.Window
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Cleanup drops keys not seen within the window; their buckets are full again
func (l *RateLimiter) Cleanup() int {
	cutoff := l.now().Add(-l.config.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, client := range l.clients {
		if !client.lastSeen.After(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// RateLimit rejects requests from a client IP over its budget with 429
func RateLimit(limiter *RateLimiter, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		ip := utils.ClientIP(c)
		ok, wait := limiter.Allow(ip)
		if !ok {
			seconds := int(math.Ceil(wait.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			logger.WithFields(logrus.Fields{
				"ip":   ip,
				"path": c.Request.URL.Path,
			}).Warn("Rate limit exceeded")

			c.Header("Retry-After", strconv.Itoa(seconds))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "RATE_LIMITED",
				"message": fmt.Sprintf("Too many requests. Please try again in %ds", seconds),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

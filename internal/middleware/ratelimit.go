package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"billflow/internal/config"
	"billflow/internal/utils"

	"github.com/gin-gonic/gin"
)

// RateLimiter implements token bucket rate limiting per client IP
type RateLimiter struct {
	mu       sync.Mutex
	tokens   map[string]*tokenBucket
	config   *config.RateLimitConfig
	now      func() time.Time
	stopOnce sync.Once
	stopChan chan struct{}
}

type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg *config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		tokens: make(map[string]*tokenBucket),
		config: cfg,
		now:    time.Now,
	}
	if !cfg.Enabled || cfg.CleanupInterval <= 0 {
		return rl
	}

	rl.stopChan = make(chan struct{})
	go rl.cleanup(cfg.CleanupInterval)
	return rl
}

// cleanup removes idle buckets periodically
func (rl *RateLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle(10 * time.Minute)
		case <-rl.stopChan:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, bucket := range rl.tokens {
		if now.Sub(bucket.lastRefill) > idle {
			delete(rl.tokens, key)
		}
	}
}

// Stop stops the rate limiter cleanup
func (rl *RateLimiter) Stop() {
	if rl == nil || rl.stopChan == nil {
		return
	}
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

// getBucket gets or creates a token bucket for the key
func (rl *RateLimiter) getBucket(key string) *tokenBucket {
	if bucket, exists := rl.tokens[key]; exists {
		return bucket
	}

	bucket := &tokenBucket{
		tokens:     float64(rl.config.Burst),
		maxTokens:  float64(rl.config.Burst),
		refillRate: float64(rl.config.RequestsPer) / rl.config.Window.Seconds(),
		lastRefill: rl.now(),
	}
	rl.tokens[key] = bucket
	return bucket
}

// refill adds tokens based on time elapsed
func (rl *RateLimiter) refill(bucket *tokenBucket) {
	now := rl.now()
	elapsed := now.Sub(bucket.lastRefill).Seconds()
	bucket.tokens = min(bucket.maxTokens, bucket.tokens+(elapsed*bucket.refillRate))
	bucket.lastRefill = now
}

// Take consumes a token for key. It returns the tokens left, and when the
// bucket is empty, how long until the next token.
func (rl *RateLimiter) Take(key string) (allowed bool, remaining int, retryAfter time.Duration) {
	if rl == nil || !rl.config.Enabled {
		return true, 0, 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket := rl.getBucket(key)
	rl.refill(bucket)

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true, int(bucket.tokens), 0
	}

	wait := time.Second
	if bucket.refillRate > 0 {
		wait = time.Duration(math.Ceil((1-bucket.tokens)/bucket.refillRate*1000)) * time.Millisecond
	}
	return false, 0, wait
}

// RateLimitMiddleware returns the rate limiting middleware
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || !rl.config.Enabled {
			c.Next()
			return
		}

		allowed, remaining, retryAfter := rl.Take(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			utils.RespondWithRateLimited(c, max(retryAfter, time.Second))
			c.Abort()
			return
		}

		c.Next()
	}
}

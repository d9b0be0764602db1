// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the in-process token-bucket rate limiter that guards
// the generation endpoints. Every generation request fans out to paid
// producer APIs, so the limiter sits in front of them to cap per-caller
// spend. Buckets are keyed per identity (account id when known, client IP
// otherwise) and idle buckets are garbage-collected opportunistically.
//
// The limiter is process-local. Running several replicas multiplies the
// effective limit; a shared store would be needed to enforce a global one.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity string owning its bucket.
// The value must be stable for the lifetime of the request.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by account id when auth middleware stored one
// under "userID", falling back to the client IP. Keys are namespaced
// ("user:alice@example.com" vs "ip:203.0.113.7") so an account id can never
// collide with an address.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get("userID"); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

// bucket pairs a limiter with its last-seen time for idle eviction.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces per-identity token buckets. Buckets are created on
// demand in a mutex-guarded map and evicted after sitting idle for ttl.
// Safe for concurrent use.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	keyFn   keyFunc
	mu      sync.Mutex
	buckets map[string]*bucket

	ttl     time.Duration
	lookups uint64
}

// NewRateLimiter builds a limiter replenishing rps tokens per second with
// the given burst capacity. A non-positive burst is coerced to 1 so a
// misconfigured limiter still lets single requests through.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: make(map[string]*bucket),
		ttl:     10 * time.Minute,
	}
}

// bucketFor returns the limiter for key, creating it on first sight. Every
// ~5000 lookups it sweeps the map for idle buckets. The sweep runs before
// the requested key is touched so a stale bucket is evicted even when it is
// the one being fetched.
func (rl *RateLimiter) bucketFor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	rl.lookups++
	if rl.lookups >= 5000 {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		lim := b.limiter
		rl.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	rl.mu.Unlock()
	return lim
}

// IsRateBypass reports whether IdempotencyValidator flagged this request as
// a replay of an already-completed generation. Replays are served from the
// stored response and never reach a producer, so they cost no tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the Gin middleware. Replays bypass the check entirely;
// everything else draws one token from its bucket or gets a 429 with a
// Retry-After hint and the standard error envelope.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if rl.bucketFor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}

package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// TODO: store in Redis once the service runs with more than one replica

// RateLimiter is a per-IP sliding window limiter for the public endpoints.
// The payment gateway callback route must never sit behind it.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

func (rl *RateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	kept := rl.requests[ip][:0]
	for _, t := range rl.requests[ip] {
		if now.Sub(t) < rl.window {
			kept = append(kept, t)
		}
	}

	if len(kept) >= rl.limit {
		rl.requests[ip] = kept
		return false
	}

	rl.requests[ip] = append(kept, now)
	return true
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP(), time.Now()) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try later."})
			c.Abort()
			return
		}
		c.Next()
	}
}

// StartCleanup drops idle IPs so the map does not grow without bound.
func (rl *RateLimiter) StartCleanup(interval time.Duration) {
	go func() {
		for {
			time.Sleep(interval)
			rl.mu.Lock()
			now := time.Now()
			for ip, times := range rl.requests {
				var kept []time.Time
				for _, t := range times {
					if now.Sub(t) < rl.window {
						kept = append(kept, t)
					}
				}
				if len(kept) == 0 {
					delete(rl.requests, ip)
				} else {
					rl.requests[ip] = kept
				}
			}
			rl.mu.Unlock()
		}
	}()
}

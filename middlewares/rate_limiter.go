package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-platform/utils"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*visitor),
	}
}

// NewStrictRateLimiter is for login and register: 5 attempts per minute.
func NewStrictRateLimiter() gin.HandlerFunc {
	rl := &RateLimiter{
		limit:   rate.Every(time.Minute / 5),
		burst:   5,
		clients: make(map[string]*visitor),
	}
	return rl.RateLimit()
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.clients[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = v
	}
	v.lastSeen = now

	// Forget clients idle for more than ten minutes.
	if len(rl.clients) > 1024 {
		for key, other := range rl.clients {
			if now.Sub(other.lastSeen) > 10*time.Minute {
				delete(rl.clients, key)
			}
		}
	}
	return v.limiter.Allow()
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, utils.JSONResponse{
				Success: false,
				Message: "too many requests, please slow down",
			})
			return
		}
		c.Next()
	}
}

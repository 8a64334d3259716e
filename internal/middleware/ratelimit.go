package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/innovasus/innovasus/pkg/response"
)

const (
	// limiterSweepInterval is how often idle client entries are reaped.
	limiterSweepInterval = 2 * time.Minute
	// limiterIdleTTL is how long a client IP may be idle before its
	// bucket is dropped and it starts over with a full burst.
	limiterIdleTTL = 10 * time.Minute
)

// clientLimiter pairs a token bucket with the time the client was last seen.
type clientLimiter struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-client-IP token bucket. It guards the
// credential endpoints against password and verification-token guessing;
// the rate and burst come from the server config.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     rate.Limit
	burst   int
}

// NewRateLimiter returns a limiter allowing rps requests per second with
// the given burst, tracked per client IP.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) bucketFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[ip]
	if !ok {
		cl = &clientLimiter{bucket: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[ip] = cl
	}
	cl.lastSeen = time.Now()
	return cl.bucket
}

// sweep periodically drops clients idle longer than limiterIdleTTL.
func (rl *RateLimiter) sweep() {
	for range time.Tick(limiterSweepInterval) {
		rl.mu.Lock()
		for ip, cl := range rl.clients {
			if time.Since(cl.lastSeen) > limiterIdleTTL {
				delete(rl.clients, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware rejects over-limit requests with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.bucketFor(c.ClientIP()).Allow() {
			response.TooManyRequests(c, "too many attempts, try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}

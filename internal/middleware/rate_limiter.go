package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"teamhub/backend/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is an in-process per-IP token bucket. Idle visitors are
// dropped every cleanup interval.
func RateLimiter(r rate.Limit, b int, cleanup time.Duration) gin.HandlerFunc {
	var (
		visitors = make(map[string]*visitor)
		mu       sync.Mutex
	)

	if cleanup > 0 {
		go func() {
			ticker := time.NewTicker(cleanup)
			defer ticker.Stop()
			for range ticker.C {
				mu.Lock()
				for ip, v := range visitors {
					if time.Since(v.lastSeen) > cleanup {
						delete(visitors, ip)
					}
				}
				mu.Unlock()
			}
		}()
	}

	getVisitor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		v, exists := visitors[ip]
		if !exists {
			v = &visitor{limiter: rate.NewLimiter(r, b)}
			visitors[ip] = v
		}
		v.lastSeen = time.Now()
		return v.limiter
	}

	return func(c *gin.Context) {
		if !getVisitor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// DistributedRateLimiter keeps a sliding window per key in a Redis sorted
// set so that limits hold across instances.
type DistributedRateLimiter struct {
	redis *redis.Client
}

type RateLimit struct {
	Rate    int
	Window  time.Duration
	KeyFunc func(*gin.Context) string
}

func NewDistributedRateLimiter(redisClient *redis.Client) *DistributedRateLimiter {
	return &DistributedRateLimiter{redis: redisClient}
}

// CreateMiddleware fails open: when Redis is unreachable requests pass
// and the failure is logged.
func (rl *DistributedRateLimiter) CreateMiddleware(name string, limit *RateLimit) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", name, limit.KeyFunc(c))

		allowed, err := rl.checkLimit(c.Request.Context(), key, limit)
		if err != nil {
			logger.Warn("rate limit check failed", "limiter", name, "error", err)
			c.Next()
			return
		}

		if !allowed {
			c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
			c.Header("Retry-After", strconv.Itoa(int(limit.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func (rl *DistributedRateLimiter) checkLimit(ctx context.Context, key string, limit *RateLimit) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - limit.Window.Nanoseconds()

	pipe := rl.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.Expire(ctx, key, limit.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to execute rate limit pipeline: %w", err)
	}
	return countCmd.Val() < int64(limit.Rate), nil
}

func IPKeyFunc(c *gin.Context) string {
	return c.ClientIP()
}

// UserKeyFunc keys by authenticated identity, falling back to the client
// IP for anonymous requests.
func UserKeyFunc(c *gin.Context) string {
	if id, ok := CurrentUserID(c); ok {
		return "user:" + id.String()
	}
	return c.ClientIP()
}

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateLimiter counts requests per fixed window in Redis.
type RateLimiter struct {
	redis *redis.Client
}

// NewRateLimiter connects to Redis and verifies the connection.
func NewRateLimiter(redisURL string) (*RateLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRateLimiterWithClient(client), nil
}

func NewRateLimiterWithClient(client *redis.Client) *RateLimiter {
	return &RateLimiter{redis: client}
}

// RateLimitByIP limits requests per client IP and route.
// window is in seconds.
func (rl *RateLimiter) RateLimitByIP(maxRequests int, window int) gin.HandlerFunc {
	return rl.limit(maxRequests, window, func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	})
}

// RateLimitByUser limits requests per authenticated user and route, falling
// back to the client IP. It must run after AuthRequired.
func (rl *RateLimiter) RateLimitByUser(maxRequests int, window int) gin.HandlerFunc {
	return rl.limit(maxRequests, window, func(c *gin.Context) string {
		if id, ok := CurrentUserID(c); ok {
			return "user:" + id.String()
		}
		return "ip:" + c.ClientIP()
	})
}

func (rl *RateLimiter) limit(maxRequests int, window int, subject func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s:%s", c.FullPath(), subject(c))
		ctx := c.Request.Context()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// Redis being down must not take the API with it.
			log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
			c.Next()
			return
		}

		if count == 1 {
			rl.redis.Expire(ctx, key, time.Duration(window)*time.Second)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()

			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Too many requests. Please try again later.",
				},
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(maxRequests-int(count)))

		c.Next()
	}
}

// Close closes the Redis connection.
func (rl *RateLimiter) Close() error {
	if rl == nil {
		return nil
	}
	return rl.redis.Close()
}

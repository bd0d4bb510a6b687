package middleware

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per client IP in Redis so every replica
// sees the same window.
type RateLimiter struct {
	client  *redis.Client
	prefix  string
	limit   int
	window  time.Duration
	timeout time.Duration
}

func NewRateLimiter(addr, password string, redisDB, limit int, window time.Duration) (*RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: redisDB})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RateLimiter{
		client:  client,
		prefix:  "hotspot:ratelimit:",
		limit:   limit,
		window:  window,
		timeout: 250 * time.Millisecond,
	}, nil
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), rl.timeout)
		defer cancel()

		key := rl.prefix + c.ClientIP()
		count, err := rl.client.Incr(ctx, key).Result()
		if err != nil {
			// Fail open: a Redis hiccup must not take verification down.
			log.Printf("rate limiter incr: %v", err)
			c.Next()
			return
		}
		if count == 1 {
			if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
				log.Printf("rate limiter expire: %v", err)
			}
		}

		if int(count) > rl.limit {
			ttl, err := rl.client.TTL(ctx, key).Result()
			if err != nil || ttl <= 0 {
				ttl = rl.window
			}
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try later."})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) Close() {
	if rl.client != nil {
		rl.client.Close()
	}
}

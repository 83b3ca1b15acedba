package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/skillmentorx-api/internal/models"
	appErrors "github.com/noah-isme/skillmentorx-api/pkg/errors"
	"github.com/noah-isme/skillmentorx-api/pkg/response"
)

// RateLimiter spends one request from key's budget of limit per window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (models.RateDecision, error)
}

// RateLimitConfig configures a per-client request budget.
type RateLimitConfig struct {
	Prefix   string
	Requests int
	Window   time.Duration
}

// RateLimit caps requests per client IP. Store failures let traffic through.
func RateLimit(limiter RateLimiter, cfg RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Requests <= 0 {
		cfg.Requests = 30
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "ratelimit"
	}
	limit := strconv.Itoa(cfg.Requests)

	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		key := cfg.Prefix + ":" + c.ClientIP()
		decision, err := limiter.Allow(c.Request.Context(), key, cfg.Requests, cfg.Window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		remaining := decision.Remaining
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(ceilSeconds(decision.ResetAfter), 10))

		if !decision.Allowed {
			retry := ceilSeconds(decision.RetryAfter)
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retry, 10))
			response.Error(c, appErrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}

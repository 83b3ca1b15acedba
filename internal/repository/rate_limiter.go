package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/skillmentorx-api/internal/models"
)

// RateLimiter enforces per-key request budgets in Redis using GCRA.
type RateLimiter struct {
	limiter *redis_rate.Limiter
}

// NewRateLimiter constructs a RateLimiter. A nil client allows everything.
func NewRateLimiter(client *redis.Client) *RateLimiter {
	if client == nil {
		return &RateLimiter{}
	}
	return &RateLimiter{limiter: redis_rate.NewLimiter(client)}
}

// Allow spends one request from key's budget of limit per window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (models.RateDecision, error) {
	if r.limiter == nil {
		return models.RateDecision{Allowed: true, Remaining: limit}, nil
	}
	res, err := r.limiter.Allow(ctx, key, rateLimit(limit, window))
	if err != nil {
		return models.RateDecision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return decisionFromResult(res), nil
}

func rateLimit(limit int, window time.Duration) redis_rate.Limit {
	return redis_rate.Limit{Rate: limit, Burst: limit, Period: window}
}

func decisionFromResult(res *redis_rate.Result) models.RateDecision {
	decision := models.RateDecision{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
	}
	if res.RetryAfter > 0 {
		decision.RetryAfter = res.RetryAfter
	}
	return decision
}

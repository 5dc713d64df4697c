package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter provides per-identity sliding-window rate limiting backed by
// Redis sorted sets. It sits in front of the quota gate on the AI routes so a
// single identity cannot hammer the generation endpoint within one day's
// allowance window.
type RateLimiter struct {
	client    redis.Cmdable
	maxReqs   int
	windowSec int
	keyFn     func(*http.Request) string
}

// NewRateLimiter creates a rate limiter that allows maxReqs per windowSec
// seconds per key. keyFn derives the limit key from the request; when it
// returns "", the request is not limited.
func NewRateLimiter(client redis.Cmdable, maxReqs, windowSec int, keyFn func(*http.Request) string) *RateLimiter {
	return &RateLimiter{client: client, maxReqs: maxReqs, windowSec: windowSec, keyFn: keyFn}
}

// Middleware returns an HTTP middleware that enforces the rate limit.
// On Redis errors it fails open (allows the request through).
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.keyFn(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowed, err := rl.allow(r.Context(), "ratelimit:"+key)
		if err != nil {
			slog.Warn("rate limiter: redis error, failing open", "error", err, "key", key)
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(rl.windowSec))
			http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	windowStart := float64(now.Add(-time.Duration(rl.windowSec) * time.Second).UnixMilli())
	member := fmt.Sprintf("%d", now.UnixNano())
	score := float64(now.UnixMilli())

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%f", windowStart))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: member})
	pipe.Expire(ctx, key, time.Duration(rl.windowSec)*time.Second+time.Second)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, err
	}

	return countCmd.Val() < int64(rl.maxReqs), nil
}

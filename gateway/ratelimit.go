// Copyright 2025 AgencyHub
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"agencyhub/platform/shared/logger"
)

// RateLimiter throttles onboarding endpoints per client IP using a
// Redis sliding window. Redis keeps the window consistent across
// gateway replicas; without Redis the limiter falls back to a
// per-replica in-memory window, and on Redis errors it fails open so
// an outage never blocks signups.
type RateLimiter struct {
	client         *redis.Client
	limitPerMinute int
	log            *logger.Logger

	mu    sync.Mutex
	local map[string]*localWindow
}

// localWindow is one key's in-memory counting window.
type localWindow struct {
	count     int
	resetTime time.Time
}

// NewRateLimiter connects to Redis and returns a limiter. An empty
// redisURL selects the in-memory fallback.
func NewRateLimiter(redisURL string, limitPerMinute int) (*RateLimiter, error) {
	l := &RateLimiter{
		limitPerMinute: limitPerMinute,
		log:            logger.New("rate-limiter"),
		local:          make(map[string]*localWindow),
	}
	if redisURL == "" {
		return l, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	l.client = client
	return l, nil
}

// Close releases the Redis connection.
func (l *RateLimiter) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}

// Allow checks the sliding window for key. Returns an error only when
// the limit is exceeded.
func (l *RateLimiter) Allow(ctx context.Context, key string) error {
	if l.limitPerMinute <= 0 {
		return nil
	}
	if l.client == nil {
		return l.allowLocal(key)
	}

	now := time.Now()
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	pipe := l.client.Pipeline()

	// Drop timestamps outside the one-minute window.
	minScore := now.Add(-time.Minute).Unix()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", minScore))
	pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, &redis.Z{
		Score:  float64(now.Unix()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, redisKey, 2*time.Minute)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		// Fail open: a Redis outage must not block onboarding.
		l.log.Warn("", "", "rate limit check failed, failing open",
			map[string]interface{}{"key": key, "error": err.Error()})
		return nil
	}

	count := cmds[1].(*redis.IntCmd).Val()
	if count >= int64(l.limitPerMinute) {
		return fmt.Errorf("rate limit exceeded: %d requests/minute (limit: %d)", count+1, l.limitPerMinute)
	}
	return nil
}

// allowLocal counts requests in a fixed one-minute window per key.
// Single-replica only; multi-replica deployments configure Redis.
func (l *RateLimiter) allowLocal(key string) error {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	win, ok := l.local[key]
	if !ok || now.After(win.resetTime) {
		l.local[key] = &localWindow{count: 1, resetTime: now.Add(time.Minute)}
		return nil
	}

	win.count++
	if win.count > l.limitPerMinute {
		return fmt.Errorf("rate limit exceeded: %d requests/minute (limit: %d)", win.count, l.limitPerMinute)
	}
	return nil
}

// Middleware throttles by client IP.
func (l *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := l.Allow(r.Context(), clientIP(r)); err != nil {
			promRateLimited.Inc()
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// clientIP extracts the caller's address, preferring the load
// balancer's X-Forwarded-For header.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

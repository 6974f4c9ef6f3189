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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int) *RateLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	limiter, err := NewRateLimiter("redis://"+mr.Addr(), limit)
	require.NoError(t, err)
	t.Cleanup(func() { _ = limiter.Close() })
	return limiter
}

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	limiter := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		assert.NoError(t, limiter.Allow(context.Background(), "10.0.0.1"))
	}
	assert.Error(t, limiter.Allow(context.Background(), "10.0.0.1"))
}

func TestRateLimiterIsolatesKeys(t *testing.T) {
	limiter := newTestLimiter(t, 1)

	assert.NoError(t, limiter.Allow(context.Background(), "10.0.0.1"))
	assert.Error(t, limiter.Allow(context.Background(), "10.0.0.1"))
	assert.NoError(t, limiter.Allow(context.Background(), "10.0.0.2"))
}

func TestRateLimiterInMemoryFallback(t *testing.T) {
	limiter, err := NewRateLimiter("", 2)
	require.NoError(t, err)

	assert.NoError(t, limiter.Allow(context.Background(), "10.0.0.1"))
	assert.NoError(t, limiter.Allow(context.Background(), "10.0.0.1"))
	assert.Error(t, limiter.Allow(context.Background(), "10.0.0.1"))

	// Other keys have their own window.
	assert.NoError(t, limiter.Allow(context.Background(), "10.0.0.2"))
}

func TestRateLimiterInMemoryWindowResets(t *testing.T) {
	limiter, err := NewRateLimiter("", 1)
	require.NoError(t, err)

	assert.NoError(t, limiter.Allow(context.Background(), "10.0.0.1"))
	assert.Error(t, limiter.Allow(context.Background(), "10.0.0.1"))

	limiter.mu.Lock()
	limiter.local["10.0.0.1"].resetTime = time.Now().Add(-time.Second)
	limiter.mu.Unlock()

	assert.NoError(t, limiter.Allow(context.Background(), "10.0.0.1"))
}

func TestRateLimiterZeroLimitDisables(t *testing.T) {
	limiter, err := NewRateLimiter("", 0)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		assert.NoError(t, limiter.Allow(context.Background(), "10.0.0.1"))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := newTestLimiter(t, 1)

	handler := limiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/v1/domains/availability", nil)
	req.RemoteAddr = "10.0.0.1:54321"

	w := httptest.NewRecorder()
	handler(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		remote    string
		forwarded string
		want      string
	}{
		{name: "remote addr", remote: "10.0.0.1:54321", want: "10.0.0.1"},
		{name: "forwarded single", remote: "10.0.0.9:1", forwarded: "203.0.113.5", want: "203.0.113.5"},
		{name: "forwarded chain", remote: "10.0.0.9:1", forwarded: "203.0.113.5,10.0.0.2", want: "203.0.113.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

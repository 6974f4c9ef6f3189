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
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agencyhub_gateway_requests_total",
			Help: "Total number of requests processed by the gateway",
		},
		[]string{"endpoint", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agencyhub_gateway_request_duration_milliseconds",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{5, 10, 50, 100, 200, 500, 1000, 2000, 5000},
		},
		[]string{"endpoint"},
	)
	promProvisioningTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agencyhub_provisioning_total",
			Help: "Total number of provisioning attempts by outcome",
		},
		[]string{"outcome"},
	)
	promDomainChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agencyhub_domain_checks_total",
			Help: "Total number of domain availability checks",
		},
		[]string{"result"},
	)
	promRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agencyhub_gateway_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

func init() {
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promProvisioningTotal)
	prometheus.MustRegister(promDomainChecks)
	prometheus.MustRegister(promRateLimited)
}

// gatewayMetrics backs the JSON /metrics endpoint, which predates the
// Prometheus one and is still what the ops dashboard scrapes.
type gatewayMetrics struct {
	mu              sync.RWMutex
	startTime       time.Time
	totalRequests   int64
	successRequests int64
	failedRequests  int64
}

var metrics = &gatewayMetrics{startTime: time.Now()}

func (m *gatewayMetrics) record(endpoint string, status int, duration time.Duration) {
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	promRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	promRequestDuration.WithLabelValues(endpoint).Observe(float64(duration.Milliseconds()))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRequests++
	if status >= 400 {
		m.failedRequests++
	} else {
		m.successRequests++
	}
}

// MetricsSnapshot is the JSON /metrics payload.
type MetricsSnapshot struct {
	UptimeSeconds   float64     `json:"uptime_seconds"`
	TotalRequests   int64       `json:"total_requests"`
	SuccessRequests int64       `json:"success_requests"`
	FailedRequests  int64       `json:"failed_requests"`
	TenantPools     interface{} `json:"tenant_pools,omitempty"`
}

func (m *gatewayMetrics) snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		UptimeSeconds:   time.Since(m.startTime).Seconds(),
		TotalRequests:   m.totalRequests,
		SuccessRequests: m.successRequests,
		FailedRequests:  m.failedRequests,
	}
}

// statusRecorder captures the response status for metrics middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware records per-endpoint counters and latency.
func metricsMiddleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		metrics.record(endpoint, rec.status, time.Since(start))
	}
}

// Package metrics exposes the gateway's Prometheus instrumentation.
// Everything here is registered once, at package init, and recorded from
// whichever goroutine handles a given request — counters and histograms
// are safe for concurrent use without any locking on the caller's side.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts every completed SendMessage call, labeled by
	// the provider that served it and whether it succeeded.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llmrouter_requests_total",
		Help: "Total number of provider requests handled, labeled by provider and outcome.",
	}, []string{"provider", "outcome"})

	// RequestDuration records wall-clock latency of each SendMessage call.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llmrouter_request_duration_seconds",
		Help:    "SendMessage latency in seconds, labeled by provider.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	// TokensTotal sums input/output tokens reported by upstream usage
	// blocks, labeled by provider and token direction.
	TokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llmrouter_tokens_total",
		Help: "Total tokens reported by providers, labeled by provider and direction.",
	}, []string{"provider", "direction"})
)

// outcome labels used consistently by the server's request handlers.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// ObserveRequest records one completed request's latency, outcome, and
// token usage in a single call, so call sites don't have to remember to
// touch all three metrics.
func ObserveRequest(provider string, start time.Time, outcome string, inputTokens, outputTokens int) {
	RequestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	RequestsTotal.WithLabelValues(provider, outcome).Inc()
	if inputTokens > 0 {
		TokensTotal.WithLabelValues(provider, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		TokensTotal.WithLabelValues(provider, "output").Add(float64(outputTokens))
	}
}

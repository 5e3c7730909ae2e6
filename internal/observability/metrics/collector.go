// Package metrics exposes Prometheus instrumentation for the provider
// router and the discussion scheduler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the process registers.
type Collector struct {
	ProviderRequests *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec

	DiscussionRounds   prometheus.Counter
	DiscussionMessages *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewCollector creates and registers all metrics on a private registry,
// so repeated construction in tests cannot collide.
func NewCollector() *Collector {
	c := &Collector{
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_provider_requests_total",
				Help: "Total completion requests routed per provider",
			},
			[]string{"provider", "role"},
		),
		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_provider_errors_total",
				Help: "Total failed completion requests per provider",
			},
			[]string{"provider", "role"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_provider_latency_seconds",
				Help:    "Completion call latency in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		DiscussionRounds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "discussion_rounds_total",
				Help: "Total discussion rounds advanced",
			},
		),
		DiscussionMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discussion_messages_total",
				Help: "Total messages appended per kind",
			},
			[]string{"kind"},
		),
		registry: prometheus.NewRegistry(),
	}

	c.registry.MustRegister(
		c.ProviderRequests,
		c.ProviderErrors,
		c.ProviderLatency,
		c.DiscussionRounds,
		c.DiscussionMessages,
	)
	return c
}

// Handler returns the HTTP handler serving the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is a prometheus.Collector for the signing pipeline.
// It implements signing.Observer.
type Collector struct {
	submitted      prometheus.Counter
	completed      *prometheus.CounterVec
	signingLatency prometheus.Histogram
	activeSessions prometheus.GaugeFunc
}

// NewCollector returns a collector whose metrics are prefixed with namespace.
// activeSessions, when not nil, is sampled on every scrape.
func NewCollector(namespace string, activeSessions func() int) *Collector {
	namespace = sanitizeNamespace(namespace)

	c := &Collector{
		submitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sign_requests_submitted_total",
				Help:      "The number of accepted sign requests.",
			},
		),
		completed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sign_requests_completed_total",
				Help:      "The number of processed sign requests by outcome.",
			}, []string{"outcome"},
		),
		signingLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "signing_duration_seconds",
				Help:      "Time spent producing a signature.",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 1.5, 2, 5, 10},
			},
		),
	}

	if activeSessions != nil {
		c.activeSessions = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "The number of stored login sessions.",
			},
			func() float64 { return float64(activeSessions()) },
		)
	}
	return c
}

// Submitted counts an accepted sign request.
func (c *Collector) Submitted() {
	c.submitted.Inc()
}

// Completed counts a processed sign request and records its latency.
func (c *Collector) Completed(outcome string, elapsed time.Duration) {
	c.completed.WithLabelValues(outcome).Inc()
	c.signingLatency.Observe(elapsed.Seconds())
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.submitted.Describe(ch)
	c.completed.Describe(ch)
	c.signingLatency.Describe(ch)
	if c.activeSessions != nil {
		c.activeSessions.Describe(ch)
	}
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.submitted.Collect(ch)
	c.completed.Collect(ch)
	c.signingLatency.Collect(ch)
	if c.activeSessions != nil {
		c.activeSessions.Collect(ch)
	}
}

// sanitizeNamespace maps a package name onto the metric name alphabet.
func sanitizeNamespace(namespace string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, namespace)
}

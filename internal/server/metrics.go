package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	outcomeVerified = "verified"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// Metrics holds the collectors exposed on /metrics.
type Metrics struct {
	registry      *prometheus.Registry
	verifications *prometheus.CounterVec
	duration      prometheus.Histogram
	qualityScore  prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datatrust",
			Name:      "verifications_total",
			Help:      "Dataset verifications by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "datatrust",
			Name:      "verification_duration_seconds",
			Help:      "Time spent loading and verifying an uploaded dataset.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		qualityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "datatrust",
			Name:      "quality_score",
			Help:      "Quality scores of verified datasets.",
			Buckets:   prometheus.LinearBuckets(10, 10, 9),
		}),
	}
	m.registry.MustRegister(
		m.verifications,
		m.duration,
		m.qualityScore,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(outcome string, started time.Time, score float64) {
	m.verifications.WithLabelValues(outcome).Inc()
	m.duration.Observe(time.Since(started).Seconds())
	if outcome != outcomeError {
		m.qualityScore.Observe(score)
	}
}

package telemetry

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the Prometheus collectors for the pipeline, the cache and the
// content generator. A nil *Metrics is a no-op.
type Metrics struct {
	pipelineDuration *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	cacheDegraded    *prometheus.CounterVec
	generations      *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the instance registered with the global registry.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics registers the collectors with reg, reusing any that are
// already registered. Other registration errors panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		pipelineDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "healthlens",
				Subsystem: "pipeline",
				Name:      "duration_seconds",
				Help:      "Adaptive view pipeline latency by outcome.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)),
		cacheLookups: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "healthlens",
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Response cache lookups by result.",
			},
			[]string{"result"},
		)),
		cacheDegraded: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "healthlens",
				Subsystem: "cache",
				Name:      "degraded_total",
				Help:      "Cache operations served by the in-memory fallback because the primary store failed.",
			},
			[]string{"operation"},
		)),
		generations: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "healthlens",
				Subsystem: "content",
				Name:      "generations_total",
				Help:      "Content generations by outcome (external or fallback).",
			},
			[]string{"outcome"},
		)),
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObservePipeline records one adaptive view request.
func (m *Metrics) ObservePipeline(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.pipelineDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// CacheLookup counts a hit or a miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// CacheDegraded counts an operation that fell back to memory.
func (m *Metrics) CacheDegraded(operation string) {
	if m == nil {
		return
	}
	m.cacheDegraded.WithLabelValues(operation).Inc()
}

// GenerationOutcome counts how a content generation ended.
func (m *Metrics) GenerationOutcome(outcome string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
}

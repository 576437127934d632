// Package metrics provides Prometheus metrics for JWT verification.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for verification operations.
type Metrics struct {
	enabled bool

	// Verification metrics
	verificationsTotal    *prometheus.CounterVec
	verificationDuration  prometheus.Histogram

	// Cache metrics
	cacheEntriesTotal *prometheus.GaugeVec
	cacheHitsTotal    *prometheus.CounterVec
	cacheMissTotal    *prometheus.CounterVec

	// Fetch metrics
	fetchesTotal   *prometheus.CounterVec
	fetchDuration  prometheus.Histogram

	// Penalty box metrics
	penaltyBoxTripsTotal *prometheus.CounterVec
}

// New creates and registers Prometheus metrics.
// If enabled is false, returns a no-op Metrics instance.
func New(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled}

	if !enabled {
		return m
	}

	// Verification metrics
	m.verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jwtverify_verifications_total",
		Help: "Total verification attempts",
	}, []string{"issuer", "result", "error_kind"})

	m.verificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jwtverify_verification_duration_seconds",
		Help:    "Verification duration in seconds, including any JWKS fetch",
		Buckets: prometheus.DefBuckets,
	})

	// Cache metrics
	m.cacheEntriesTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "jwtverify_cache_entries",
		Help: "Current number of entries in a cache",
	}, []string{"cache_type"})

	m.cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jwtverify_cache_hits_total",
		Help: "Total cache hits",
	}, []string{"cache_type"})

	m.cacheMissTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jwtverify_cache_misses_total",
		Help: "Total cache misses",
	}, []string{"cache_type"})

	// Fetch metrics
	m.fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jwtverify_fetches_total",
		Help: "Total upstream JWKS/key fetches",
	}, []string{"result"})

	m.fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jwtverify_fetch_duration_seconds",
		Help:    "Upstream fetch duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Penalty box metrics
	m.penaltyBoxTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jwtverify_penalty_box_trips_total",
		Help: "Total times a request was rejected by the penalty box cool-down",
	}, []string{"jwks_uri"})

	return m
}

// RecordVerification records the outcome of a Verify/VerifySync call.
// errorKind is "" on success.
func (m *Metrics) RecordVerification(issuer, result, errorKind string, durationSeconds float64) {
	if !m.enabled {
		return
	}
	m.verificationsTotal.WithLabelValues(issuer, result, errorKind).Inc()
	m.verificationDuration.Observe(durationSeconds)
}

// RecordFetch records the outcome of an upstream byte fetch.
func (m *Metrics) RecordFetch(result string, durationSeconds float64) {
	if !m.enabled {
		return
	}
	m.fetchesTotal.WithLabelValues(result).Inc()
	m.fetchDuration.Observe(durationSeconds)
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit(cacheType string) {
	if !m.enabled {
		return
	}
	m.cacheHitsTotal.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss(cacheType string) {
	if !m.enabled {
		return
	}
	m.cacheMissTotal.WithLabelValues(cacheType).Inc()
}

// SetCacheSize sets the current cache size.
func (m *Metrics) SetCacheSize(cacheType string, size float64) {
	if !m.enabled {
		return
	}
	m.cacheEntriesTotal.WithLabelValues(cacheType).Set(size)
}

// RecordPenaltyBoxTrip records a request rejected by the penalty box
// cool-down for jwksURI.
func (m *Metrics) RecordPenaltyBoxTrip(jwksURI string) {
	if !m.enabled {
		return
	}
	m.penaltyBoxTripsTotal.WithLabelValues(jwksURI).Inc()
}

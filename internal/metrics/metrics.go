// Package metrics exposes Prometheus counters for fetch attempts and cache events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Fetch attempt results.
const (
	ResultOK             = "ok"
	ResultTransportError = "transport_error"
	ResultHTTPStatus     = "http_status"
	ResultParseError     = "parse_error"
	ResultNoData         = "no_data"
)

// Cache events.
const (
	CacheHit        = "hit"
	CacheMiss       = "miss"
	CacheCorrupt    = "corrupt"
	CacheIntegrity  = "integrity"
	CacheFuture     = "future"
	CacheExpired    = "expired"
	CacheWrite      = "write"
	CacheWriteError = "write_error"
	CacheClear      = "clear"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	FetchAttempts *prometheus.CounterVec
	CacheEvents   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg when it is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lake_levels",
			Name:      "fetch_attempts_total",
			Help:      "Upstream fetch attempts by endpoint kind and result.",
		}, []string{"kind", "result"}),
		CacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lake_levels",
			Name:      "cache_events_total",
			Help:      "Snapshot cache events.",
		}, []string{"event"}),
	}
	if reg != nil {
		reg.MustRegister(m.FetchAttempts, m.CacheEvents)
	}
	return m
}

// FetchAttempt records one candidate attempt.
func (m *Metrics) FetchAttempt(kind, result string) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(kind, result).Inc()
}

// CacheEvent records one cache event.
func (m *Metrics) CacheEvent(event string) {
	if m == nil {
		return
	}
	m.CacheEvents.WithLabelValues(event).Inc()
}

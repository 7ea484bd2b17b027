package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the cache's advisory counters (spec.md §4.5: "advisory
// and not part of any correctness invariant"), exported via
// prometheus so an operator can watch hit rate and occupancy the same
// way the teacher's server package exposes request counters.
type Metrics struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	insertions prometheus.Counter
	evictions  prometheus.Counter
	entries    prometheus.Gauge
	bytes      prometheus.Gauge
}

// NewMetrics registers the cache's counters against reg. A nil
// registerer yields working, unregistered counters — handy for tests
// and for callers that don't want a global default registry mixed in.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_cache_hits_total",
			Help: "Number of cache lookups that found an entry.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_cache_misses_total",
			Help: "Number of cache lookups that found no entry.",
		}),
		insertions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_cache_insertions_total",
			Help: "Number of artifacts admitted into the cache.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxy_cache_evictions_total",
			Help: "Number of LRU entries evicted to make room.",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxy_cache_entries",
			Help: "Current number of cache entries.",
		}),
		bytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxy_cache_body_bytes",
			Help: "Current sum of cached body bytes.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.insertions, m.evictions, m.entries, m.bytes)
	}
	return m
}

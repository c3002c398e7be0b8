// Package metrics instruments the BIO cache's hot path with Prometheus
// collectors, mirroring how GoogleCloudPlatform/gcsfuse wires
// client_golang into a filesystem's hot path.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Cache holds the collectors for one BIO cache instance. Its
// collectors are registered against whatever registerer NewCache is
// given (none for Noop); since the collector names are fixed,
// registering a second Cache against the same registerer panics.
type Cache struct {
	Hits      prometheus.Counter
	Misses    prometheus.Counter
	Evictions prometheus.Counter
	Pending   prometheus.Gauge
}

// NewCache builds a Cache with fresh collectors and registers them
// against reg. Pass prometheus.NewRegistry() for an isolated instance,
// or prometheus.DefaultRegisterer-wrapped registry for a process-wide
// singleton.
func NewCache(reg prometheus.Registerer) *Cache {
	c := &Cache{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bio_cache_hits_total",
			Help: "Number of BIO cache lookups that found a matching, sufficiently large buffer.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bio_cache_misses_total",
			Help: "Number of BIO cache lookups that found no matching buffer.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bio_cache_evictions_total",
			Help: "Number of cache slot pushes that replaced a previously resident buffer.",
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bio_cache_pending_async_ops",
			Help: "Number of BIO buffers with a submitted, unjoined asynchronous operation.",
		}),
	}

	if reg != nil {
		reg.MustRegister(c.Hits, c.Misses, c.Evictions, c.Pending)
	}

	return c
}

// Noop returns a Cache whose collectors are never registered anywhere,
// safe to call from code paths that don't want to track metrics.
func Noop() *Cache {
	return NewCache(nil)
}

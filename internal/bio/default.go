package bio

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ikle/go-ufs1/internal/devio"
	"github.com/ikle/go-ufs1/internal/diag"
	"github.com/ikle/go-ufs1/internal/metrics"
)

var (
	defaultOnce     sync.Once
	defaultCache    *Cache
	defaultRegistry *devio.Registry
)

// Default returns a process-wide Cache, built on first use against
// the default Prometheus registerer and the package's diagnostic
// logger. It exists for the CLI driver, which has no reason to thread
// a *Cache through every call; library code should take one as an
// explicit parameter instead.
func Default() *Cache {
	defaultOnce.Do(func() {
		defaultRegistry = devio.NewRegistry()
		defaultCache = NewCache(defaultRegistry, metrics.NewCache(prometheus.DefaultRegisterer), diag.Default())
	})

	return defaultCache
}

// DefaultRegistry returns the device registry backing Default, so
// callers can Open a file descriptor against the same registry the
// default cache reads and writes through.
func DefaultRegistry() *devio.Registry {
	Default()
	return defaultRegistry
}

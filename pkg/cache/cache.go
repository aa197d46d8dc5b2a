// Package cache memoizes parsed ensembles by input identity.
//
// Entries are keyed by canonical path, format, read parameters and an input
// stamp (see Key), and evicted least-recently-used once the capacity is
// reached. Cached ensembles are immutable and shared between callers.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/edbennett/meson-analysis/pkg/correlator"
	merrors "github.com/edbennett/meson-analysis/pkg/errors"
	"github.com/edbennett/meson-analysis/pkg/metrics"
	"github.com/edbennett/meson-analysis/pkg/reader"
)

// DefaultCapacity is the number of ensembles kept when none is configured.
const DefaultCapacity = 8

// Loader parses one input. *reader.Registry and *Cache both implement it.
type Loader interface {
	Read(format, path string, opts reader.Options) (*correlator.Ensemble, error)
}

// Cache is a bounded LRU of parse results in front of a Loader.
// It is safe for concurrent use. Concurrent misses on the same key may
// each parse the input; the last result stored wins.
type Cache struct {
	loader  Loader
	entries *lru.Cache[Key, *correlator.Ensemble]
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records hits and misses.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New creates a cache holding at most capacity ensembles.
func New(loader Loader, capacity int, opts ...Option) (*Cache, error) {
	if capacity <= 0 {
		return nil, merrors.Configf(merrors.ErrConfigInvalid, "cache capacity must be positive, got %d", capacity)
	}
	c := &Cache{
		loader: loader,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	entries, err := lru.NewWithEvict[Key, *correlator.Ensemble](capacity, func(k Key, _ *correlator.Ensemble) {
		c.logger.WithField("key", k.String()).Debug("evicted cached ensemble")
	})
	if err != nil {
		return nil, merrors.ConfigWrap(err, merrors.ErrConfigInvalid, "can't create cache")
	}
	c.entries = entries
	return c, nil
}

// Read returns the cached ensemble for the input, parsing it on a miss.
// Failed parses are not cached.
func (c *Cache) Read(format, path string, opts reader.Options) (*correlator.Ensemble, error) {
	key, err := NewKey(format, path, opts)
	if err != nil {
		return nil, err
	}

	if e, ok := c.entries.Get(key); ok {
		c.metrics.CacheRequest(metrics.CacheHit)
		c.logger.WithField("key", key.String()).Debug("cache hit")
		return e, nil
	}
	c.metrics.CacheRequest(metrics.CacheMiss)

	e, err := c.loader.Read(format, path, opts)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, e)
	return e, nil
}

// Invalidate drops every entry for path, whatever its format or
// parameters, and returns how many were removed.
func (c *Cache) Invalidate(path string) int {
	canonical, err := canonicalPath(path)
	if err != nil {
		return 0
	}

	removed := 0
	for _, k := range c.entries.Keys() {
		if k.Path == canonical && c.entries.Remove(k) {
			removed++
		}
	}
	return removed
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.entries.Purge()
}

// Len returns the number of cached ensembles.
func (c *Cache) Len() int {
	return c.entries.Len()
}

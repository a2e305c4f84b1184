// Package schemacache keeps recently described data source schemas and
// degrades to stale or reference schemas when a backend cannot be described.
package schemacache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/ekaya-insights/pkg/logging"
	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// Source says where a schema returned by Get came from.
type Source string

const (
	SourceFresh  Source = "fresh"  // cached within the TTL
	SourceLive   Source = "live"   // fetched by this call
	SourceStale  Source = "stale"  // cached past the TTL, fetch failed
	SourceStatic Source = "static" // reference schema, nothing cached
)

const (
	DefaultTTL          = 5 * time.Minute
	DefaultFetchTimeout = 3 * time.Second
)

// FetchFunc describes a data source. It receives a context bounded by the
// cache's fetch timeout.
type FetchFunc func(ctx context.Context) (*models.Schema, error)

// Config controls cache freshness. Zero values select the defaults.
type Config struct {
	TTL          time.Duration
	FetchTimeout time.Duration
}

type entry struct {
	schema    *models.Schema
	fetchedAt time.Time
}

// Cache is safe for concurrent use. Concurrent misses for one key share a
// single fetch.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group

	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     cfg.TTL,
		timeout: cfg.FetchTimeout,
		now:     time.Now,
		logger:  logger.Named("schema-cache"),
	}
}

// Get returns the schema for key. It never fails: a fresh entry wins, then a
// live fetch, then the stale entry, then the static reference schema.
func (c *Cache) Get(ctx context.Context, key string, fetch FetchFunc) (*models.Schema, Source) {
	cached, ok := c.lookup(key)
	if ok && c.now().Sub(cached.fetchedAt) < c.ttl {
		return cached.schema, SourceFresh
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// not tied to the first caller's cancellation, since others may be waiting
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		schema, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		if schema == nil {
			return nil, errors.New("fetch returned no schema")
		}
		c.store(key, schema)
		return schema, nil
	})
	if err == nil {
		return v.(*models.Schema), SourceLive
	}

	c.logger.Warn("schema fetch failed",
		zap.String("key", key),
		zap.Bool("shared", shared),
		zap.Bool("haveStale", ok),
		zap.String("error", logging.SanitizeError(err)),
	)
	if ok {
		return cached.schema, SourceStale
	}
	return StaticSchema(), SourceStatic
}

// Invalidate drops the entry for key so the next Get fetches.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *Cache) store(key string, schema *models.Schema) {
	c.mu.Lock()
	c.entries[key] = entry{schema: schema, fetchedAt: c.now()}
	c.mu.Unlock()
}

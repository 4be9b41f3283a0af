package application

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/store"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/metrics"
)

// SnapshotCache shares the directory listing between instances.
type SnapshotCache interface {
	Get(ctx context.Context) ([]store.Entry, bool, error)
	Set(ctx context.Context, entries []store.Entry) error
	Invalidate(ctx context.Context) error
}

// DefaultLoadFailureBackoff is how long a failed directory load is remembered
// before the next lookup tries again.
const DefaultLoadFailureBackoff = 5 * time.Second

var emptyResolver = store.NewResolver(nil)

// StoreCatalog owns the store resolver cache. The snapshot is loaded on first
// use and kept until Invalidate is called. Concurrent lookups share one load,
// which runs outside the catalog lock. Loading is best-effort: a failed load
// serves an empty snapshot, so every lookup is unresolved, until the failure
// backoff passes or Invalidate is called.
type StoreCatalog struct {
	directory store.Directory
	cache     SnapshotCache
	logger    *zap.Logger

	failureBackoff time.Duration
	now            func() time.Time
	loads          singleflight.Group

	mu         sync.RWMutex
	resolver   *store.Resolver
	failedAt   time.Time
	generation uint64
}

// NewStoreCatalog creates a StoreCatalog. cache may be nil.
func NewStoreCatalog(directory store.Directory, cache SnapshotCache, logger *zap.Logger) *StoreCatalog {
	return &StoreCatalog{
		directory:      directory,
		cache:          cache,
		logger:         logger,
		failureBackoff: DefaultLoadFailureBackoff,
		now:            time.Now,
	}
}

// Resolver returns the current snapshot's resolver, loading it if needed.
func (c *StoreCatalog) Resolver(ctx context.Context) *store.Resolver {
	c.mu.RLock()
	r, failedAt, gen := c.resolver, c.failedAt, c.generation
	c.mu.RUnlock()

	if r != nil {
		return r
	}
	if !failedAt.IsZero() && c.now().Sub(failedAt) < c.failureBackoff {
		return emptyResolver
	}

	v, _, _ := c.loads.Do("snapshot", func() (interface{}, error) {
		entries, ok := c.load(context.WithoutCancel(ctx))
		loaded := store.NewResolver(entries)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != gen {
			return loaded, nil
		}
		if ok {
			c.resolver = loaded
			c.failedAt = time.Time{}
		} else {
			c.failedAt = c.now()
		}
		return loaded, nil
	})
	return v.(*store.Resolver)
}

// Resolve matches input against the snapshot.
func (c *StoreCatalog) Resolve(ctx context.Context, input string) (store.Entry, store.MatchTier) {
	e, tier := c.Resolver(ctx).Resolve(input)
	metrics.StoreResolutions.WithLabelValues(string(tier)).Inc()
	return e, tier
}

// Search lists exact then prefix matches for the search box.
func (c *StoreCatalog) Search(ctx context.Context, input string, limit int) []store.Entry {
	return c.Resolver(ctx).Search(input, limit)
}

// Invalidate drops the local and shared snapshots so the next lookup reloads.
func (c *StoreCatalog) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.resolver = nil
	c.failedAt = time.Time{}
	c.generation++
	c.mu.Unlock()

	if c.cache != nil {
		if err := c.cache.Invalidate(ctx); err != nil {
			c.logger.Warn("failed to invalidate shared store snapshot", zap.Error(err))
		}
	}
	c.logger.Info("store snapshot invalidated")
}

func (c *StoreCatalog) load(ctx context.Context) ([]store.Entry, bool) {
	if c.cache != nil {
		entries, found, err := c.cache.Get(ctx)
		switch {
		case err != nil:
			c.logger.Warn("shared store snapshot unavailable", zap.Error(err))
		case found:
			metrics.StoreSnapshotLoads.WithLabelValues("cache").Inc()
			return entries, true
		}
	}

	entries, err := c.directory.ListStores(ctx)
	if err != nil {
		metrics.StoreSnapshotLoads.WithLabelValues("failed").Inc()
		c.logger.Error("failed to load store directory, store names will not resolve", zap.Error(err))
		return nil, false
	}
	metrics.StoreSnapshotLoads.WithLabelValues("directory").Inc()
	c.logger.Info("store directory loaded", zap.Int("stores", len(entries)))

	if c.cache != nil {
		if err := c.cache.Set(ctx, entries); err != nil {
			c.logger.Warn("failed to share store snapshot", zap.Error(err))
		}
	}
	return entries, true
}

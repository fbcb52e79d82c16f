package schema

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/reoring/hayabib/internal/metrics"
)

// Defaults for Cache options.
const (
	DefaultRetryInterval  = 30 * time.Second
	DefaultRefreshTimeout = 15 * time.Second
)

// Cache layer names, as reported to metrics and logs.
const (
	LayerMemory    = "memory"
	LayerPersisted = "persisted"
	LayerNetwork   = "network"
	LayerBuiltin   = "builtin"
)

const fetchKey = "schema"

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option { return func(c *Cache) { c.log = l } }

// WithMetrics records fetches and cache hits on m.
func WithMetrics(m *metrics.Metrics) Option { return func(c *Cache) { c.metrics = m } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// WithRetryInterval sets how long the built-in default is served after a
// failed cold fetch before the network is tried again. Zero or less means
// the next call tries the network again.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Cache) { c.retryInterval = max(d, 0) }
}

// WithRefreshTimeout bounds each network fetch.
func WithRefreshTimeout(d time.Duration) Option { return func(c *Cache) { c.refreshTimeout = d } }

// Cache serves the current schema document with stale-while-revalidate
// semantics. Concurrent cold lookups share one fetch.
type Cache struct {
	fetcher   Fetcher
	persister Persister
	log       *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	retryInterval  time.Duration
	refreshTimeout time.Duration

	group singleflight.Group
	bg    sync.WaitGroup

	mu           sync.Mutex
	current      *Document
	offlineUntil time.Time
}

// NewCache returns a cold cache. A nil persister disables persistence.
func NewCache(f Fetcher, p Persister, opts ...Option) *Cache {
	if p == nil {
		p = nopPersister{}
	}
	c := &Cache{
		fetcher:        f,
		persister:      p,
		log:            zap.NewNop(),
		now:            time.Now,
		retryInterval:  DefaultRetryInterval,
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Schema returns the current document. It never returns a malformed
// document; the only errors are ErrSchemaUnavailable (the built-in default
// is broken) and the context's error while waiting on a shared fetch.
func (c *Cache) Schema(ctx context.Context) (*Document, error) {
	c.mu.Lock()
	if d := c.current; d != nil {
		c.mu.Unlock()
		c.metrics.CacheHit(LayerMemory)
		return d, nil
	}
	offline := c.now().Before(c.offlineUntil)
	c.mu.Unlock()

	if offline {
		c.metrics.CacheHit(LayerBuiltin)
		return Default()
	}

	if d, installed := c.loadPersisted(ctx); d != nil {
		if !installed {
			// another caller filled memory meanwhile
			c.metrics.CacheHit(LayerMemory)
			return d, nil
		}
		c.metrics.CacheHit(LayerPersisted)
		c.refreshInBackground(ctx)
		return d, nil
	}

	ch := c.group.DoChan(fetchKey, func() (any, error) {
		// a caller arriving just after another flight finished finds the result here
		if d := c.Current(); d != nil {
			return d, nil
		}
		return c.fetch(context.WithoutCancel(ctx))
	})
	select {
	case r := <-ch:
		if r.Err == nil {
			c.metrics.CacheHit(LayerNetwork)
			return r.Val.(*Document), nil
		}
		c.log.Warn("schema fetch failed; using built-in default",
			zap.Error(r.Err), zap.Duration("retry_in", c.retryInterval))
		if c.retryInterval > 0 {
			c.mu.Lock()
			c.offlineUntil = c.now().Add(c.retryInterval)
			c.mu.Unlock()
		}
		c.metrics.CacheHit(LayerBuiltin)
		return Default()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Refresh fetches the document from the network now, updating both caches.
// Unlike Schema it reports fetch failures.
func (c *Cache) Refresh(ctx context.Context) (*Document, error) {
	v, err, _ := c.group.Do(fetchKey, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}

// Current returns the in-memory document without any I/O, or nil.
func (c *Cache) Current() *Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Wait blocks until background refreshes started so far have finished.
func (c *Cache) Wait() { c.bg.Wait() }

// loadPersisted promotes a readable persisted document into memory and
// reports whether it did so. Corrupt data is purged and reported as absent.
func (c *Cache) loadPersisted(ctx context.Context) (*Document, bool) {
	raw, err := c.persister.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.log.Warn("schema cache unreadable; purging", zap.Error(err))
			c.purge(ctx)
		}
		return nil, false
	}
	d, err := NewDocument(raw, SourcePersisted, c.now())
	if err != nil {
		c.log.Warn("schema cache corrupt; purging", zap.Error(err))
		c.purge(ctx)
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return c.current, false
	}
	c.current = d
	return d, true
}

func (c *Cache) purge(ctx context.Context) {
	if err := c.persister.Purge(ctx); err != nil {
		c.log.Warn("schema cache purge failed", zap.Error(err))
	}
}

// refreshInBackground starts a detached fetch. Failures are logged only.
func (c *Cache) refreshInBackground(ctx context.Context) {
	detached := context.WithoutCancel(ctx)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		_, err, _ := c.group.Do(fetchKey, func() (any, error) {
			return c.fetch(detached)
		})
		if err != nil {
			c.log.Warn("background schema refresh failed", zap.Error(err))
		}
	}()
}

// fetch performs one network round trip and installs the result. A document
// byte-identical to the current one keeps the current instance so compiled
// validators stay valid.
func (c *Cache) fetch(ctx context.Context) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	raw, err := c.fetcher.Fetch(ctx)
	if err == nil {
		var d *Document
		d, err = NewDocument(raw, SourceNetwork, c.now())
		if err == nil {
			c.metrics.SchemaFetch(nil)
			return c.install(ctx, d), nil
		}
	}
	c.metrics.SchemaFetch(err)
	return nil, err
}

func (c *Cache) install(ctx context.Context, d *Document) *Document {
	c.mu.Lock()
	if cur := c.current; cur != nil && cur.digest == d.digest {
		c.offlineUntil = time.Time{}
		c.mu.Unlock()
		return cur
	}
	c.current = d
	c.offlineUntil = time.Time{}
	c.mu.Unlock()

	if err := c.persister.Save(ctx, d.raw); err != nil {
		c.log.Warn("schema cache write failed", zap.Error(err))
	}
	c.log.Info("schema document updated",
		zap.String("digest", d.digest), zap.Int("bytes", len(d.raw)))
	return d
}

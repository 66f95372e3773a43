// Package cache holds extraction results keyed by document content, entity
// and extractor version, with a size cap and dual (write and idle) expiry.
package cache

import (
	"crypto/sha256"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/model"
)

// Config sizes the cache and sets both expiry windows.
type Config struct {
	MaxSize  int
	WriteTTL time.Duration
	IdleTTL  time.Duration
	Version  string
}

type entry struct {
	value      model.Result
	writtenAt  time.Time
	accessedAt time.Time
}

// ResultCache is a bounded, concurrency-safe result cache. Recency order and
// the size cap come from an LRU list; expiry is checked on read and by Sweep.
type ResultCache struct {
	cfg Config

	mu  sync.Mutex
	lru *simplelru.LRU[string, *entry]

	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64

	now func() time.Time
}

// Option customizes a ResultCache.
type Option func(*ResultCache)

// WithNow injects the clock used for expiry.
func WithNow(now func() time.Time) Option {
	return func(c *ResultCache) { c.now = now }
}

// New creates a cache. Zero values in cfg fall back to 1000 entries, 24h
// write TTL and 6h idle TTL.
func New(cfg Config, opts ...Option) (*ResultCache, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if cfg.WriteTTL <= 0 {
		cfg.WriteTTL = 24 * time.Hour
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 6 * time.Hour
	}
	if cfg.Version == "" {
		cfg.Version = "v1"
	}

	l, err := simplelru.NewLRU[string, *entry](cfg.MaxSize, nil)
	if err != nil {
		return nil, eris.Wrap(err, "cache: create lru")
	}

	c := &ResultCache{cfg: cfg, lru: l, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Key builds the composite key for a document. It is the only place keys are
// made, so readers and writers cannot drift apart.
func Key(content []byte, entityID, version string) (string, error) {
	if len(content) == 0 {
		return "", eris.New("cache: empty document cannot be fingerprinted")
	}
	if entityID == "" {
		return "", eris.New("cache: entity id is required")
	}
	sum := sha256.Sum256(content)
	fp := base64.RawURLEncoding.EncodeToString(sum[:])[:16]
	return fp + "_" + entityID + "_" + version, nil
}

// Version returns the extractor version folded into every key.
func (c *ResultCache) Version() string {
	return c.cfg.Version
}

// MaxSize returns the entry cap.
func (c *ResultCache) MaxSize() int {
	return c.cfg.MaxSize
}

// Compute produces a result on a cache miss. store is false when the result
// must not be cached, e.g. because the caller gave up midway.
type Compute func() (result model.Result, store bool)

// GetOrCompute returns the cached result for (content, entityID) or runs
// compute and stores its result when compute allows it. hit reports whether
// compute was skipped. A key that cannot be built degrades to an uncached
// compute.
func (c *ResultCache) GetOrCompute(content []byte, entityID string, compute Compute) (result model.Result, hit bool) {
	key, err := Key(content, entityID, c.cfg.Version)
	if err != nil {
		zap.L().Warn("cache: key unavailable, treating as miss",
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
		c.misses.Add(1)
		result, _ = compute()
		return result, false
	}

	if v, ok := c.get(key); ok {
		return v, true
	}

	result, store := compute()
	if store {
		c.put(key, result)
	}
	return result, false
}

func (c *ResultCache) get(key string) (model.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return model.Result{}, false
	}

	now := c.now()
	if c.expired(e, now) {
		c.lru.Remove(key)
		c.expirations.Add(1)
		c.misses.Add(1)
		return model.Result{}, false
	}

	e.accessedAt = now
	c.hits.Add(1)
	return e.value, true
}

func (c *ResultCache) put(key string, value model.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if evicted := c.lru.Add(key, &entry{value: value, writtenAt: now, accessedAt: now}); evicted {
		c.evictions.Add(1)
	}
}

func (c *ResultCache) expired(e *entry, now time.Time) bool {
	return now.Sub(e.writtenAt) >= c.cfg.WriteTTL || now.Sub(e.accessedAt) >= c.cfg.IdleTTL
}

// Sweep removes expired entries and returns how many were dropped.
func (c *ResultCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if ok && c.expired(e, now) {
			c.lru.Remove(key)
			removed++
		}
	}
	c.expirations.Add(int64(removed))
	return removed
}

// Purge empties the cache without touching the counters.
func (c *ResultCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the current number of entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

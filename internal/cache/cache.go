// Package cache remembers the results of jobs issued by a backend.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/logging"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/results"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/storage"
)

// Key identifies a cached job by its handle components.
type Key struct {
	JobID       string
	PostProcess string
}

// Entry is the cached state for one key. A known key may not have a result
// yet.
type Entry struct {
	Result *results.Result
}

// Ready reports whether the result has been populated.
func (e Entry) Ready() bool { return e.Result != nil }

// Cache maps handles to results. Entries are never evicted. When a store is
// attached, populated results are written through and cache misses fall back
// to it.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]Entry

	store  storage.ResultStore
	codec  *storage.Codec
	prefix string
	log    *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore persists populated results under prefix in store.
func WithStore(store storage.ResultStore, codec *storage.Codec, prefix string) Option {
	return func(c *Cache) {
		c.store = store
		c.codec = codec
		c.prefix = prefix
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[Key]Entry),
		log:     logging.Component("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seed records key as known without a result. An existing entry is kept.
func (c *Cache) Seed(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = Entry{}
	}
}

// Put stores the result for key. The in-memory entry is always updated; the
// returned error reports a failed write-through only.
func (c *Cache) Put(ctx context.Context, key Key, res results.Result) error {
	c.mu.Lock()
	c.entries[key] = Entry{Result: &res}
	c.mu.Unlock()

	if c.store == nil || key.JobID == "" {
		return nil
	}
	data, err := c.codec.Encode(res.Shots)
	if err != nil {
		return fmt.Errorf("encode result %s: %w", key.JobID, err)
	}
	if err := c.store.Put(ctx, storage.ResultKey(c.prefix, key.JobID), data); err != nil {
		return fmt.Errorf("persist result %s: %w", key.JobID, err)
	}
	return nil
}

// Lookup returns the entry for key and whether the key is known. A key that
// is unknown or not ready in memory is looked up in the store, if any.
func (c *Cache) Lookup(ctx context.Context, key Key) (Entry, bool) {
	c.mu.RLock()
	e, known := c.entries[key]
	c.mu.RUnlock()
	if e.Ready() || c.store == nil || key.JobID == "" {
		return e, known
	}

	res, err := c.load(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.log.Warn("failed to load persisted result", "job_id", key.JobID, "error", err)
		}
		return e, known
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur := c.entries[key]; cur.Ready() {
		return cur, true
	}
	e = Entry{Result: res}
	c.entries[key] = e
	return e, true
}

func (c *Cache) load(ctx context.Context, key Key) (*results.Result, error) {
	data, err := c.store.Get(ctx, storage.ResultKey(c.prefix, key.JobID))
	if err != nil {
		return nil, err
	}
	var shots results.ShotTable
	if err := c.codec.Decode(data, &shots); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", key.JobID, err)
	}
	res := &results.Result{Shots: shots}
	if key.PostProcess != "" && key.PostProcess != "null" {
		res.PostProcess = []byte(key.PostProcess)
	}
	return res, nil
}

// Len returns the number of known keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

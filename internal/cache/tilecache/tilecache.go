// Package tilecache stores rendered API responses in Redis, gzip-compressed,
// and collapses concurrent computations of the same key.
package tilecache

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store is the subset of redisstore.Client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type Config struct {
	TTL time.Duration
	// OpTimeout bounds each Redis round trip so a slow cache never stalls a request.
	OpTimeout time.Duration
	// ComputeTimeout bounds a shared computation, which runs detached from
	// the cancellation of the caller that started it.
	ComputeTimeout time.Duration
}

type Cache struct {
	store Store
	cfg   Config
	log   *slog.Logger
	group singleflight.Group
}

func New(store Store, cfg Config, log *slog.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 50 * time.Millisecond
	}
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Cache{store: store, cfg: cfg, log: log.With("component", "tilecache")}
}

// Get returns the cached body. Redis or decoding failures are logged and
// reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	raw, ok, err := c.store.Get(opCtx, key)
	if err != nil {
		c.log.WarnContext(ctx, "cache get failed", "key", key, "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	body, err := decompress(raw)
	if err != nil {
		c.log.WarnContext(ctx, "cache entry unreadable", "key", key, "err", err)
		return nil, false
	}
	return body, true
}

func (c *Cache) Put(ctx context.Context, key string, body []byte) {
	raw, err := compress(body)
	if err != nil {
		c.log.WarnContext(ctx, "cache compress failed", "key", key, "err", err)
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()
	if err := c.store.Set(opCtx, key, raw, c.cfg.TTL); err != nil {
		c.log.WarnContext(ctx, "cache set failed", "key", key, "err", err)
		return
	}
	c.log.DebugContext(ctx, "cache set", "key", key, "size_bytes", len(body), "stored_bytes", len(raw))
}

// GetOrCompute serves key from the cache or runs compute once for all
// concurrent callers of the same key. Compute errors are not cached.
// A caller that gives up returns its own context error; the computation
// keeps running for the remaining callers until ComputeTimeout.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if body, ok := c.Get(ctx, key); ok {
		return body, true, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ComputeTimeout)
		defer cancel()
		body, err := compute(cctx)
		if err != nil {
			return nil, err
		}
		c.Put(cctx, key, body)
		return body, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]byte), false, nil
	}
}

func compress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(raw []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return body, nil
}

// Package cache is a Redis-backed result cache for search responses.
// Keys include the index generation, so any index write makes every older
// entry unreachable without an explicit flush.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/redis"
)

const keyPrefix = "search:"

// Key identifies one cacheable search.
type Key struct {
	Generation uint64
	CallerID   string
	// Query is compared case- and punctuation-insensitively. Stop-words
	// still count because intent rules read them.
	Query string
	// Options is a canonical encoding of every option that changes the
	// response.
	Options string
}

func (k Key) String() string {
	query := strings.Join(tokenizer.Tokenize(tokenizer.Clean(k.Query)), " ")
	raw := fmt.Sprintf("g=%d|c=%s|q=%s|o=%s", k.Generation, k.CallerID, query, k.Options)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Keys   int64 `json:"keys"`
}

// QueryCache caches values of T as JSON. A nil *QueryCache is a disabled
// cache that always computes.
type QueryCache[T any] struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New[T any](client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache[T] {
	return &QueryCache[T]{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache[T]) Get(ctx context.Context, key Key) (T, bool) {
	var zero T
	k := key.String()
	data, err := c.client.Get(ctx, k)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", k, "error", err)
		}
		c.miss()
		return zero, false
	}
	var value T
	if err := json.Unmarshal([]byte(data), &value); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return zero, false
	}
	c.hits.Add(1)
	c.metrics.CacheResult(true)
	c.logger.Debug("cache hit", "key", k)
	return value, true
}

func (c *QueryCache[T]) Set(ctx context.Context, key Key, value T) {
	k := key.String()
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := c.client.Set(ctx, k, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached value for key or computes, stores and
// returns it. Concurrent misses on one key share a single computation,
// which runs on a context detached from any one caller's cancellation;
// each caller still stops waiting when its own ctx ends. compute must
// bound its own runtime. Redis failures degrade to computing; they are
// never returned.
func (c *QueryCache[T]) GetOrCompute(ctx context.Context, key Key, compute func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	if c == nil {
		v, err := compute(ctx)
		return v, false, err
	}
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		v, err := compute(shared)
		if err != nil {
			return nil, err
		}
		c.Set(shared, key, v)
		return v, nil
	})
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		return res.Val.(T), false, nil
	}
}

func (c *QueryCache[T]) Invalidate(ctx context.Context) (int64, error) {
	if c == nil {
		return 0, nil
	}
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache[T]) Stats(ctx context.Context) (Stats, error) {
	if c == nil {
		return Stats{}, nil
	}
	keys, err := c.client.CountByPattern(ctx, keyPrefix+"*")
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Keys: keys}
	if err != nil {
		return s, fmt.Errorf("counting cache keys: %w", err)
	}
	return s, nil
}

func (c *QueryCache[T]) miss() {
	c.misses.Add(1)
	c.metrics.CacheResult(false)
}

package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/Tributary-ai-services/leakwatch/pkg/metrics"
	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
)

// ErrCacheMiss is returned by a SharedStore without an entry for a key.
var ErrCacheMiss = errors.New("semantic: cache miss")

const (
	defaultCacheEntries = 10000
	defaultCacheTTL     = time.Hour
	defaultRedisPrefix  = "leakwatch:judgment:"
)

// CacheConfig sizes the in-process tier and sets the entry TTL of both tiers.
type CacheConfig struct {
	MaxEntries int64
	TTL        time.Duration
}

// SharedStore is a cache tier shared between processes.
type SharedStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisStore is a SharedStore on Redis.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a store whose keys carry prefix.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Get implements SharedStore
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set implements SharedStore
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Cache memoises judgments per (labels, text). Concurrent misses for the
// same key share one judge call. Cache failures are logged and never fail
// a judgment; judge errors are not cached.
type Cache struct {
	judge  scan.Judge
	local  *ristretto.Cache[uint64, scan.Distribution]
	group  singleflight.Group
	shared SharedStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache wraps judge. shared may be nil.
func NewCache(judge scan.Judge, cfg CacheConfig, shared SharedStore, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultCacheEntries
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}

	local, err := ristretto.NewCache(&ristretto.Config[uint64, scan.Distribution]{
		NumCounters:        cfg.MaxEntries * 10,
		MaxCost:            cfg.MaxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create judgment cache: %w", err)
	}

	return &Cache{
		judge:  judge,
		local:  local,
		shared: shared,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

// CacheKey hashes labels and text into a cache key.
func CacheKey(text string, labels []string) uint64 {
	d := xxhash.New()
	for _, l := range labels {
		_, _ = d.WriteString(l)
		_, _ = d.Write([]byte{0})
	}
	_, _ = d.Write([]byte{1})
	_, _ = d.WriteString(text)
	return d.Sum64()
}

// Classify implements scan.Judge
func (c *Cache) Classify(ctx context.Context, text string, labels []string) (scan.Distribution, error) {
	key := CacheKey(text, labels)
	if dist, ok := c.local.Get(key); ok {
		metrics.RecordCacheLookup("memory", true)
		return dist, nil
	}
	metrics.RecordCacheLookup("memory", false)

	sKey := keyString(key)
	// The coalesced call ignores caller cancellation; the wrapped guard
	// bounds it.
	sharedCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(sKey, func() (any, error) {
		if dist, ok := c.getShared(sharedCtx, sKey); ok {
			c.store(key, dist)
			return dist, nil
		}

		dist, err := c.judge.Classify(sharedCtx, text, labels)
		if err != nil {
			return nil, err
		}
		c.store(key, dist)
		c.putShared(sharedCtx, sKey, dist)
		return dist, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(scan.Distribution), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func keyString(key uint64) string {
	return strconv.FormatUint(key, 16)
}

// Close releases the in-process tier.
func (c *Cache) Close() {
	c.local.Close()
}

func (c *Cache) store(key uint64, dist scan.Distribution) {
	c.local.SetWithTTL(key, dist, 1, c.ttl)
	c.local.Wait()
}

func (c *Cache) getShared(ctx context.Context, key string) (scan.Distribution, bool) {
	if c.shared == nil {
		return nil, false
	}
	data, err := c.shared.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("shared judgment cache read failed", "error", err)
		}
		metrics.RecordCacheLookup("redis", false)
		return nil, false
	}

	var dist scan.Distribution
	if err := json.Unmarshal(data, &dist); err != nil || len(dist) == 0 {
		c.logger.Warn("discarding malformed shared judgment", "error", err)
		metrics.RecordCacheLookup("redis", false)
		return nil, false
	}
	metrics.RecordCacheLookup("redis", true)
	return dist, true
}

func (c *Cache) putShared(ctx context.Context, key string, dist scan.Distribution) {
	if c.shared == nil {
		return
	}
	data, err := json.Marshal(dist)
	if err != nil {
		return
	}
	if err := c.shared.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("shared judgment cache write failed", "error", err)
	}
}

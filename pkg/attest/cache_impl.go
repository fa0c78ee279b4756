package attest

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Tributary-ai-services/leakwatch/pkg/types"
)

// DefaultCacheEntries bounds the in-memory attestation cache.
const DefaultCacheEntries = 100_000

// memoryCache keeps attestations in a bounded ristretto cache. Entries
// expire with their attestation.
type memoryCache struct {
	entries *ristretto.Cache[string, *types.Attestation]
}

// NewMemoryCache creates an in-memory cache holding up to
// DefaultCacheEntries attestations.
func NewMemoryCache() Cache {
	c, err := NewBoundedCache(DefaultCacheEntries)
	if err != nil {
		panic(err)
	}
	return c
}

// NewBoundedCache creates an in-memory cache holding up to maxEntries
// attestations. Least valuable entries are evicted first.
func NewBoundedCache(maxEntries int64) (Cache, error) {
	if maxEntries <= 0 {
		return nil, errors.New("attestation cache needs a positive size")
	}
	entries, err := ristretto.NewCache(&ristretto.Config[string, *types.Attestation]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &memoryCache{entries: entries}, nil
}

func (c *memoryCache) Get(_ context.Context, key string) (*types.Attestation, error) {
	att, ok := c.entries.Get(key)
	if !ok || time.Now().After(att.ExpiresAt) {
		return nil, nil
	}
	return att, nil
}

func (c *memoryCache) Set(_ context.Context, att *types.Attestation) error {
	if att == nil {
		return errNilAttestation
	}
	k := CacheKey(att)
	ttl := time.Until(att.ExpiresAt)
	if ttl <= 0 {
		c.entries.Del(k)
		return nil
	}
	c.entries.SetWithTTL(k, att, 1, ttl)
	c.entries.Wait()
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.entries.Del(key)
	return nil
}

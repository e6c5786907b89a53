package catalog

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedReplicas memoizes lookups of a slower catalog, misses included.
// Errors are not cached.
type CachedReplicas struct {
	next  Replicas
	cache *lru.Cache[replicaKey, cachedPFN]
}

type cachedPFN struct {
	pfn string
	ok  bool
}

// NewCachedReplicas wraps next with an LRU cache of the given size.
func NewCachedReplicas(next Replicas, size int) (*CachedReplicas, error) {
	cache, err := lru.New[replicaKey, cachedPFN](size)
	if err != nil {
		return nil, err
	}
	return &CachedReplicas{next: next, cache: cache}, nil
}

// Lookup implements Replicas.
func (c *CachedReplicas) Lookup(ctx context.Context, site, lfn string) (string, bool, error) {
	k := replicaKey{site: site, lfn: lfn}
	if hit, ok := c.cache.Get(k); ok {
		return hit.pfn, hit.ok, nil
	}
	pfn, ok, err := c.next.Lookup(ctx, site, lfn)
	if err != nil {
		return "", false, err
	}
	c.cache.Add(k, cachedPFN{pfn: pfn, ok: ok})
	return pfn, ok, nil
}

// Len returns the number of cached entries.
func (c *CachedReplicas) Len() int {
	return c.cache.Len()
}

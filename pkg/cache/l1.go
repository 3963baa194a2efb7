// Package cache implements the gateway's two-tier cache hierarchy: an L1
// sharded in-memory LRU for hot keys and an L2 TTL map with background
// eviction, composed with write-through semantics and read-time promotion.
// Grounded on the original cache_hierarchy.py (L1Cache/CacheHierarchy) and
// on the teacher's pkg/mcp/pool.Pool for the ticker/ctx/WaitGroup lifecycle
// the L2 cleanup loop borrows.
package cache

import (
	"hash/fnv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/netover/tws-gateway/pkg/apperrors"
)

// L1 is a sharded in-memory LRU. Sharding spreads lock contention across
// num_shards independent LRUs, each sized maxSize/num_shards.
type L1 struct {
	numShards int
	shards    []*lru.Cache[string, any]
	mus       []sync.Mutex
}

// NewL1 creates a sharded LRU. A num_shards value greater than maxSize is
// clamped to 1 (sharding finer than the cache itself can hold is pointless);
// num_shards <= 0 is a configuration error.
func NewL1(maxSize, numShards int) (*L1, error) {
	if numShards <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "num_shards must be positive", nil).
			WithContext("num_shards", numShards)
	}
	if maxSize > 0 && numShards > maxSize {
		numShards = 1
	}

	perShard := maxSize / numShards
	if perShard < 1 {
		perShard = 1
	}

	shards := make([]*lru.Cache[string, any], numShards)
	for i := range shards {
		c, err := lru.New[string, any](perShard)
		if err != nil {
			return nil, apperrors.New(apperrors.CodeConfiguration, "failed to create LRU shard", err)
		}
		shards[i] = c
	}

	return &L1{
		numShards: numShards,
		shards:    shards,
		mus:       make([]sync.Mutex, numShards),
	}, nil
}

func (l *L1) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()) % l.numShards
}

// Get looks up key, reporting whether it was present.
func (l *L1) Get(key string) (any, bool) {
	idx := l.shardIndex(key)
	l.mus[idx].Lock()
	defer l.mus[idx].Unlock()
	return l.shards[idx].Get(key)
}

// Set inserts or updates key, possibly evicting the shard's LRU entry.
func (l *L1) Set(key string, value any) (evicted bool) {
	idx := l.shardIndex(key)
	l.mus[idx].Lock()
	defer l.mus[idx].Unlock()
	return l.shards[idx].Add(key, value)
}

// Delete removes key, reporting whether it was present.
func (l *L1) Delete(key string) (present bool) {
	idx := l.shardIndex(key)
	l.mus[idx].Lock()
	defer l.mus[idx].Unlock()
	return l.shards[idx].Remove(key)
}

// Clear empties every shard.
func (l *L1) Clear() {
	for i := range l.shards {
		l.mus[i].Lock()
		l.shards[i].Purge()
		l.mus[i].Unlock()
	}
}

// Size returns the total number of entries across all shards.
func (l *L1) Size() int {
	total := 0
	for i := range l.shards {
		l.mus[i].Lock()
		total += l.shards[i].Len()
		l.mus[i].Unlock()
	}
	return total
}

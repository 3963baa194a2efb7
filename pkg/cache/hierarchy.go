package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/netover/tws-gateway/pkg/apperrors"
	"github.com/netover/tws-gateway/pkg/metrics"
	"github.com/netover/tws-gateway/pkg/telemetry"
)

var tracer = otel.Tracer("tws-gateway/cache")

// HierarchyConfig configures a Hierarchy instance.
type HierarchyConfig struct {
	L1MaxSize        int
	L1NumShards      int
	L2DefaultTTL     time.Duration
	L2CleanupInterval time.Duration
	KeyPrefix        string
	EnableEncryption bool
}

// Hierarchy composes L1 and L2 into a single read-through, write-through
// cache. Get checks L1 first, falling back to L2 and promoting an L2 hit
// back into L1. Set always writes L2 before L1 — matching the original
// system's lock-acquisition order and avoiding a window where L1 has a
// value L2 doesn't yet.
type Hierarchy struct {
	l1        *L1
	l2        *L2
	keyPrefix string
	encrypt   bool
	metrics   *metrics.Registry

	running atomic.Bool
	startMu sync.Mutex

	l1Hits, l1Misses, l2Hits, l2Misses, totalGets, totalSets, l1Evictions atomic.Int64
}

// NewHierarchy builds a Hierarchy from HierarchyConfig.
func NewHierarchy(cfg HierarchyConfig, reg *metrics.Registry) (*Hierarchy, error) {
	l1, err := NewL1(cfg.L1MaxSize, cfg.L1NumShards)
	if err != nil {
		return nil, err
	}
	l2 := NewL2(cfg.L2DefaultTTL, cfg.L2CleanupInterval)

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "cache:"
	}

	return &Hierarchy{
		l1:        l1,
		l2:        l2,
		keyPrefix: prefix,
		encrypt:   cfg.EnableEncryption,
		metrics:   reg,
	}, nil
}

// Start launches the L2 background cleanup goroutine. Idempotent.
func (h *Hierarchy) Start(ctx context.Context) {
	h.startMu.Lock()
	defer h.startMu.Unlock()
	if h.running.Load() {
		return
	}
	h.l2.Start(ctx)
	h.running.Store(true)
}

// Stop halts the L2 cleanup goroutine. Idempotent, tolerates being called
// while a Get/Set is in flight.
func (h *Hierarchy) Stop() {
	h.startMu.Lock()
	defer h.startMu.Unlock()
	if !h.running.Load() {
		return
	}
	h.l2.Stop()
	h.running.Store(false)
}

func (h *Hierarchy) prefixed(key string) string {
	if h.keyPrefix == "cache:" {
		return key
	}
	return h.keyPrefix + key
}

func (h *Hierarchy) encode(value any) (any, error) {
	if !h.encrypt {
		return value, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return encodeEnvelope(raw)
}

func (h *Hierarchy) decode(stored any, out any) error {
	if !h.encrypt {
		raw, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, out)
	}
	raw, ok := stored.([]byte)
	if !ok {
		// Stored via the JSON-encrypted path as []byte; anything else is a
		// programming error on the caller's part.
		return apperrors.New(apperrors.CodeCacheError, "encrypted entry has unexpected type", nil)
	}
	plain, _, err := decodeEnvelope(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(plain, out)
}

// Get looks up key in L1, then L2 (promoting an L2 hit into L1), decoding
// the stored value into out. It returns (false, nil) on a clean miss.
// L1 entries carry no TTL of their own (LRU only): an entry written by Set
// or promoted from L2 stays in L1 until LRU eviction, Delete or Clear, and
// an L1 hit is returned without consulting the L2 expiry.
func (h *Hierarchy) Get(key string, out any) (bool, error) {
	hit, _, err := h.get(key, out)
	return hit, err
}

// GetTraced behaves like Get but runs under a span recording
// telemetry.CacheAttributes (key, tier hit, hit/miss) — for call sites
// that already carry a context and want cache behavior visible in traces.
func (h *Hierarchy) GetTraced(ctx context.Context, key string, out any) (bool, error) {
	_, span := tracer.Start(ctx, "cache.get")
	defer span.End()

	hit, tier, err := h.get(key, out)
	span.SetAttributes(telemetry.CacheAttributes(key, tier, hit)...)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return hit, err
}

// get is the shared Get/GetTraced implementation; tier is one of "l1",
// "l2", or "miss".
func (h *Hierarchy) get(key string, out any) (hit bool, tier string, err error) {
	h.totalGets.Add(1)
	k := h.prefixed(key)

	start := time.Now()
	if v, ok := h.l1.Get(k); ok {
		h.l1Hits.Add(1)
		h.observeLatency("l1_get", start)
		if err := h.decode(v, out); err != nil {
			return false, "l1", apperrors.New(apperrors.CodeCacheError, "failed to decode L1 entry", err)
		}
		return true, "l1", nil
	}
	h.l1Misses.Add(1)

	l2Start := time.Now()
	if v, ok := h.l2.Get(k); ok {
		h.l2Hits.Add(1)
		h.observeLatency("l2_get", l2Start)
		if h.l1.Set(k, v) {
			h.l1Evictions.Add(1)
		}
		if err := h.decode(v, out); err != nil {
			return false, "l2", apperrors.New(apperrors.CodeCacheError, "failed to decode L2 entry", err)
		}
		return true, "l2", nil
	}
	h.l2Misses.Add(1)
	h.observeLatency("miss", start)
	return false, "miss", nil
}

// Set writes value to L2, then L1 (write-through, L2-first ordering).
func (h *Hierarchy) Set(key string, value any, ttl time.Duration) error {
	h.totalSets.Add(1)
	k := h.prefixed(key)

	encoded, err := h.encode(value)
	if err != nil {
		return apperrors.New(apperrors.CodeCacheError, "failed to encode value", err)
	}

	h.l2.Set(k, encoded, ttl)
	if h.l1.Set(k, encoded) {
		h.l1Evictions.Add(1)
	}
	return nil
}

// Delete removes key from both tiers, returning true if present in either.
func (h *Hierarchy) Delete(key string) bool {
	k := h.prefixed(key)
	l1Deleted := h.l1.Delete(k)
	l2Deleted := h.l2.Delete(k)
	return l1Deleted || l2Deleted
}

// Clear empties both tiers.
func (h *Hierarchy) Clear() {
	h.l1.Clear()
	h.l2.Clear()
}

// Size returns (l1Size, l2Size).
func (h *Hierarchy) Size() (int, int) {
	return h.l1.Size(), h.l2.Size()
}

func (h *Hierarchy) observeLatency(scope string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.Observe("cache_get_latency_seconds", metrics.Labels{"tier": scope}, time.Since(start).Seconds())
}

// Metrics is a point-in-time snapshot of cache hit/miss ratios and sizes.
type Metrics struct {
	L1Size, L2Size                         int
	L1Hits, L1Misses, L2Hits, L2Misses     int64
	TotalGets, TotalSets, L1Evictions      int64
	L1HitRatio, L2HitRatio, OverallHitRatio float64
}

// GetMetrics returns the hierarchy's current metrics snapshot.
func (h *Hierarchy) GetMetrics() Metrics {
	l1Size, l2Size := h.Size()
	l1Hits, l1Misses := h.l1Hits.Load(), h.l1Misses.Load()
	l2Hits, l2Misses := h.l2Hits.Load(), h.l2Misses.Load()

	ratio := func(hits, total int64) float64 {
		if total == 0 {
			return 0
		}
		return float64(hits) / float64(total)
	}

	l1Total := l1Hits + l1Misses
	l2Total := l2Hits + l2Misses
	overallTotal := l1Total
	overallHits := l1Hits + l2Hits

	return Metrics{
		L1Size: l1Size, L2Size: l2Size,
		L1Hits: l1Hits, L1Misses: l1Misses,
		L2Hits: l2Hits, L2Misses: l2Misses,
		TotalGets: h.totalGets.Load(), TotalSets: h.totalSets.Load(),
		L1Evictions:     h.l1Evictions.Load(),
		L1HitRatio:      ratio(l1Hits, l1Total),
		L2HitRatio:      ratio(l2Hits, l2Total),
		OverallHitRatio: ratio(overallHits, overallTotal),
	}
}

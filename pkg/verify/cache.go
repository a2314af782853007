// Package verify implements a verification-state cache: a concurrent-safe
// map from identifier name to VerificationState, with expiry, file-mtime
// invalidation, and bounded-memory eviction. Tools consult it to avoid
// re-confirming that a symbol exists across many calls.
package verify

import (
	"math"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// EvictionStrategy selects which entries are removed when the cache
// exceeds its configured bounds.
type EvictionStrategy string

const (
	LRU    EvictionStrategy = "LRU"
	LFU    EvictionStrategy = "LFU"
	FIFO   EvictionStrategy = "FIFO"
	Random EvictionStrategy = "random"
)

// MemberInfo describes one member (method/field) of a verified identifier.
type MemberInfo struct {
	Name     string
	Metadata map[string]interface{}
}

// State is the immutable-once-written snapshot of a verified identifier.
// AccessCount and LastAccessNano are updated atomically on every successful
// lookup without holding any lock, so readers stay lock-free on the lookup
// path.
type State struct {
	Name           string
	FilePath       string
	Namespace      string
	VerifiedAt     time.Time
	ExpiresAt      time.Time // zero means no expiry
	FileMtimeTicks int64     // unix nanoseconds, snapshot at verification time
	Method         string
	Members        map[string]MemberInfo
	Metadata       map[string]interface{}

	AccessCount     uint64
	LastAccessNano  int64
	insertedAtNano  int64 // for FIFO ordering; set once, never mutated
	approxByteCount int64
}

func (s *State) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Config bounds the cache's size and governs how entries expire and evict.
type Config struct {
	MaxCount          int
	MaxBytes          int64
	Strategy          EvictionStrategy
	EvictionPercent   float64 // e.g. 0.1 for 10%
	DefaultExpiry     time.Duration
	FileWatchEnabled  bool
}

// Info is the caller-supplied payload for MarkVerified.
type Info struct {
	FilePath  string
	Namespace string
	Method    string
	Members   map[string]MemberInfo
	Metadata  map[string]interface{}
	Expiry    time.Duration // overrides Config.DefaultExpiry when non-zero
}

// Stats are plain reads of atomically maintained counters; reading them
// never blocks.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is the concurrent-safe verification-state cache.
type Cache struct {
	cfg Config

	mu      sync.RWMutex // guards entries map structure and size/byte counters
	entries map[string]*State

	size        int64 // atomic count of entries
	totalBytes  int64 // atomic running byte estimate
	atCapacity  int32 // atomic bool: refusing new inserts beyond bound

	hits      uint64
	misses    uint64
	evictions uint64

	insertSeq int64 // atomic monotonic counter backing FIFO order
}

// NewCache constructs a Cache from Config. Zero-valued fields fall back to
// sane defaults (no count/byte limit, LRU eviction, no expiry).
func NewCache(cfg Config) *Cache {
	if cfg.Strategy == "" {
		cfg.Strategy = LRU
	}
	if cfg.EvictionPercent <= 0 {
		cfg.EvictionPercent = 0.1
	}
	return &Cache{cfg: cfg, entries: make(map[string]*State)}
}

// IsVerified reports whether name is currently verified. It records a
// hit/miss statistic, checks expiry, and — if the entry carries a file path
// — compares the file's on-disk mtime against the stored snapshot. Either
// check failing removes the entry and returns false.
func (c *Cache) IsVerified(name string) bool {
	c.mu.RLock()
	st, ok := c.entries[name]
	c.mu.RUnlock()

	if !ok {
		atomic.AddUint64(&c.misses, 1)
		return false
	}

	now := time.Now()
	if st.expired(now) || c.fileChanged(st) {
		c.remove(name)
		atomic.AddUint64(&c.misses, 1)
		return false
	}

	atomic.AddUint64(&st.AccessCount, 1)
	atomic.StoreInt64(&st.LastAccessNano, now.UnixNano())
	atomic.AddUint64(&c.hits, 1)
	return true
}

func (c *Cache) fileChanged(st *State) bool {
	if st.FilePath == "" {
		return false
	}
	info, err := os.Stat(st.FilePath)
	if err != nil {
		// File vanished: treat as changed, per invariant (b) — a state
		// whose backing file is gone is never returned as verified.
		return true
	}
	return info.ModTime().UnixNano() > st.FileMtimeTicks
}

// MarkVerified records name as verified, merging with any existing entry by
// keeping the newer VerifiedAt. Triggers eviction if the cache now exceeds
// its configured bounds.
func (c *Cache) MarkVerified(name string, info Info) {
	now := time.Now()

	expiry := info.Expiry
	if expiry == 0 {
		expiry = c.cfg.DefaultExpiry
	}
	var expiresAt time.Time
	if expiry > 0 {
		expiresAt = now.Add(expiry)
	}

	var mtimeTicks int64
	if info.FilePath != "" {
		if fi, err := os.Stat(info.FilePath); err == nil {
			mtimeTicks = fi.ModTime().UnixNano()
		}
	}

	next := &State{
		Name:           name,
		FilePath:       info.FilePath,
		Namespace:      info.Namespace,
		VerifiedAt:     now,
		ExpiresAt:      expiresAt,
		FileMtimeTicks: mtimeTicks,
		Method:         info.Method,
		Members:        info.Members,
		Metadata:       info.Metadata,
		// A freshly-written entry counts as just-accessed for LRU purposes,
		// so untouched older entries are preferred eviction victims over
		// entries that simply haven't been looked up yet.
		LastAccessNano: now.UnixNano(),
		insertedAtNano: atomic.AddInt64(&c.insertSeq, 1),
	}
	next.approxByteCount = estimateStateBytes(next)

	c.mu.Lock()
	if atomic.LoadInt32(&c.atCapacity) == 1 && int64(len(c.entries)) >= int64(c.cfg.MaxCount) && c.cfg.MaxCount > 0 {
		// Refuse further growth once at capacity, unless this call replaces
		// an existing entry (merge), which never grows size.
		if existing, ok := c.entries[name]; !ok || existing == nil {
			c.mu.Unlock()
			return
		}
	}

	if existing, ok := c.entries[name]; ok {
		if existing.VerifiedAt.After(next.VerifiedAt) {
			next.VerifiedAt = existing.VerifiedAt
		}
		c.totalBytes += next.approxByteCount - existing.approxByteCount
	} else {
		c.totalBytes += next.approxByteCount
		atomic.AddInt64(&c.size, 1)
	}
	next.insertedAtNano = c.preserveInsertOrder(name, next.insertedAtNano)
	c.entries[name] = next
	c.mu.Unlock()

	c.evictIfNeeded()
}

func (c *Cache) preserveInsertOrder(name string, fresh int64) int64 {
	if existing, ok := c.entries[name]; ok {
		return existing.insertedAtNano
	}
	return fresh
}

// remove deletes name unconditionally, adjusting counters. Safe to call
// concurrently; double-removal is a no-op.
func (c *Cache) remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.entries[name]
	if !ok {
		return
	}
	delete(c.entries, name)
	c.totalBytes -= st.approxByteCount
	atomic.AddInt64(&c.size, -1)
}

// RemoveByPath removes every entry whose stored file path equals path,
// called by the file watcher on write/delete.
func (c *Cache) RemoveByPath(path string) {
	c.mu.Lock()
	var toRemove []string
	for name, st := range c.entries {
		if st.FilePath == path {
			toRemove = append(toRemove, name)
		}
	}
	for _, name := range toRemove {
		st := c.entries[name]
		delete(c.entries, name)
		c.totalBytes -= st.approxByteCount
		atomic.AddInt64(&c.size, -1)
	}
	c.mu.Unlock()
}

// Stats returns a snapshot of the cache's hit/miss/eviction counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      atomic.LoadUint64(&c.hits),
		Misses:    atomic.LoadUint64(&c.misses),
		Evictions: atomic.LoadUint64(&c.evictions),
	}
}

// Size returns the current entry count.
func (c *Cache) Size() int {
	return int(atomic.LoadInt64(&c.size))
}

const maxRemoveRetries = 3

// evictIfNeeded runs eviction under a single mutex held across both
// selection and removal, whenever either configured bound is exceeded.
func (c *Cache) evictIfNeeded() {
	c.mu.Lock()
	size := int64(len(c.entries))
	overCount := c.cfg.MaxCount > 0 && size > int64(c.cfg.MaxCount)
	overBytes := c.cfg.MaxBytes > 0 && c.totalBytes > c.cfg.MaxBytes
	if !overCount && !overBytes {
		atomic.StoreInt32(&c.atCapacity, 0)
		c.mu.Unlock()
		return
	}

	target := c.evictionTarget(size, overCount, overBytes)
	victims := c.selectVictims(target)

	for _, name := range victims {
		removed := false
		for attempt := 0; attempt < maxRemoveRetries; attempt++ {
			if st, ok := c.entries[name]; ok {
				delete(c.entries, name)
				c.totalBytes -= st.approxByteCount
				atomic.AddInt64(&c.size, -1)
				atomic.AddUint64(&c.evictions, 1)
				removed = true
				break
			}
			// already gone (e.g. removed by a concurrent IsVerified check)
			removed = true
			break
		}
		_ = removed
	}

	stillOver := (c.cfg.MaxCount > 0 && int64(len(c.entries)) > int64(c.cfg.MaxCount)) ||
		(c.cfg.MaxBytes > 0 && c.totalBytes > c.cfg.MaxBytes)
	if stillOver {
		atomic.StoreInt32(&c.atCapacity, 1)
	} else {
		atomic.StoreInt32(&c.atCapacity, 0)
	}
	c.mu.Unlock()
}

// evictionTarget computes the number of entries to remove:
// max(excess_count, ceil(percent*size), memory_excess_estimate*1.2),
// capped at half the current size.
func (c *Cache) evictionTarget(size int64, overCount, overBytes bool) int {
	excessCount := int64(0)
	if overCount {
		excessCount = size - int64(c.cfg.MaxCount)
	}

	percentTarget := int64(math.Ceil(c.cfg.EvictionPercent * float64(size)))

	memoryExcessCount := int64(0)
	if overBytes && size > 0 {
		avgBytes := float64(c.totalBytes) / float64(size)
		if avgBytes > 0 {
			overBy := float64(c.totalBytes - c.cfg.MaxBytes)
			memoryExcessCount = int64(math.Ceil(overBy / avgBytes * 1.2))
		}
	}

	target := excessCount
	if percentTarget > target {
		target = percentTarget
	}
	if memoryExcessCount > target {
		target = memoryExcessCount
	}

	half := size / 2
	if target > half {
		target = half
	}
	if target < 1 {
		target = 1
	}
	return int(target)
}

// selectVictims picks `count` entries to remove under the configured
// strategy. An unrecognized strategy falls back to LRU.
func (c *Cache) selectVictims(count int) []string {
	type candidate struct {
		name string
		st   *State
	}
	candidates := make([]candidate, 0, len(c.entries))
	for name, st := range c.entries {
		candidates = append(candidates, candidate{name, st})
	}

	strategy := c.cfg.Strategy
	switch strategy {
	case LFU:
		sort.Slice(candidates, func(i, j int) bool {
			return atomic.LoadUint64(&candidates[i].st.AccessCount) < atomic.LoadUint64(&candidates[j].st.AccessCount)
		})
	case FIFO:
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].st.insertedAtNano < candidates[j].st.insertedAtNano
		})
	case Random:
		rand.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	case LRU:
		fallthrough
	default:
		sort.Slice(candidates, func(i, j int) bool {
			li := atomic.LoadInt64(&candidates[i].st.LastAccessNano)
			lj := atomic.LoadInt64(&candidates[j].st.LastAccessNano)
			if li != lj {
				return li < lj
			}
			return candidates[i].st.insertedAtNano < candidates[j].st.insertedAtNano
		})
	}

	if count > len(candidates) {
		count = len(candidates)
	}
	victims := make([]string, count)
	for i := 0; i < count; i++ {
		victims[i] = candidates[i].name
	}
	return victims
}

// estimateStateBytes sums string-length contributions for a running byte
// counter, updated on insert/remove rather than sampled.
func estimateStateBytes(st *State) int64 {
	total := int64(len(st.Name) + len(st.FilePath) + len(st.Namespace) + len(st.Method))
	for k, v := range st.Members {
		total += int64(len(k) + len(v.Name))
	}
	for k := range st.Metadata {
		total += int64(len(k))
	}
	return total + 64 // fixed overhead for timestamps/counters
}

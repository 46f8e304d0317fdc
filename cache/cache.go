// Package cache is the fingerprint-keyed result cache from spec §4.6: get/
// put/invalidate/clear over a byte-ceiling-bounded store with pluggable
// LRU/LFU/TTL eviction and compression above a size threshold.
package cache

import (
	"bytes"
	"compress/gzip"
	"container/list"
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultCompressionThreshold is spec §4.6's "default 10 KiB of serialized
// payload" above which a put'd value is stored compressed.
const DefaultCompressionThreshold = 10 * 1024

// DefaultSweepInterval is how often Cache proactively scans for and evicts
// expired entries, independent of the lazy eviction-on-read path.
const DefaultSweepInterval = 30 * time.Second

// nowFunc is a seam for tests to simulate TTL expiry without sleeping.
var nowFunc = time.Now

type entry struct {
	value       []byte
	compressed  bool
	size        int64
	ttl         time.Duration
	expiresAt   time.Time
	lastAccess  time.Time
	accessCount int64
}

// Cache is a single coarse-locked, byte-bounded result cache. The lock scope
// matches the scheduler's own "single critical section, admission latency is
// negligible" posture (spec §5): cache operations are fast in-memory work,
// not worth finer-grained locking.
type Cache struct {
	mu                   sync.Mutex
	policy               Policy
	byteCeiling          int64
	usedBytes            int64
	compressionThreshold int64
	entries              map[Key]*entry
	lruOrder             *list.List
	lruElem              map[Key]*list.Element

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// New creates a Cache bounded to byteCeiling bytes of tracked payload,
// evicting under policy when a put would overflow it.
func New(policy Policy, byteCeiling int64) *Cache {
	c := &Cache{
		policy:               policy,
		byteCeiling:          byteCeiling,
		compressionThreshold: DefaultCompressionThreshold,
		entries:              make(map[Key]*entry),
		lruOrder:             list.New(),
		lruElem:              make(map[Key]*list.Element),
		sweepStop:            make(chan struct{}),
		sweepDone:            make(chan struct{}),
	}
	go c.sweepLoop(DefaultSweepInterval)
	return c
}

// Close stops the periodic expiry sweep. Safe to call once.
func (c *Cache) Close() {
	close(c.sweepStop)
	<-c.sweepDone
}

func (c *Cache) sweepLoop(interval time.Duration) {
	defer close(c.sweepDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.sweepStop:
			return
		case now := <-ticker.C:
			c.sweepExpired(now)
		}
	}
}

func (c *Cache) sweepExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			c.removeLocked(k)
		}
	}
}

// Get returns a decompressed copy of the cached value for key if present and
// not expired. A read under LRU updates access bookkeeping and refreshes the
// entry's TTL, per spec §4.6.
func (c *Cache) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if nowFunc().After(e.expiresAt) {
		c.removeLocked(key)
		return nil, false
	}

	e.lastAccess = nowFunc()
	e.accessCount++
	if c.policy == LRU {
		e.expiresAt = e.lastAccess.Add(e.ttl)
		c.lruOrder.MoveToBack(c.lruElem[key])
	}

	out, err := decompress(e.value, e.compressed)
	if err != nil {
		// corrupt entry; treat as a miss rather than surface a read error
		c.removeLocked(key)
		return nil, false
	}
	return out, true
}

// Put installs value under key with the given TTL, compressing it first if
// it's above the compression threshold, evicting by policy if necessary to
// make room, and rejecting the entry outright if it still wouldn't fit.
func (c *Cache) Put(key Key, value []byte, ttl time.Duration) error {
	payload, compressed, err := maybeCompress(value, c.compressionThreshold)
	if err != nil {
		return fmt.Errorf("cache: compress: %w", err)
	}
	size := int64(len(payload))
	if size > c.byteCeiling {
		return fmt.Errorf("cache: entry of %d bytes exceeds byte ceiling %d even alone", size, c.byteCeiling)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.removeLocked(key)
	}

	if c.usedBytes+size > c.byteCeiling {
		if !c.evictUntilFitsLocked(size) {
			return fmt.Errorf("cache: cannot free enough space for a %d byte entry under policy %s", size, c.policy)
		}
	}

	now := nowFunc()
	e := &entry{
		value:       payload,
		compressed:  compressed,
		size:        size,
		ttl:         ttl,
		expiresAt:   now.Add(ttl),
		lastAccess:  now,
		accessCount: 0,
	}
	c.entries[key] = e
	c.usedBytes += size
	if c.policy == LRU {
		c.lruElem[key] = c.lruOrder.PushBack(key)
	}
	return nil
}

// Invalidate removes key if present.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*entry)
	c.lruOrder = list.New()
	c.lruElem = make(map[Key]*list.Element)
	c.usedBytes = 0
}

// UsedBytes reports the current tracked byte total, the sum of every
// entry's stored (possibly compressed) size.
func (c *Cache) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedBytes
}

func (c *Cache) removeLocked(key Key) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	c.usedBytes -= e.size
	delete(c.entries, key)
	if el, ok := c.lruElem[key]; ok {
		c.lruOrder.Remove(el)
		delete(c.lruElem, key)
	}
}

// evictUntilFitsLocked evicts victims chosen by policy until an additional
// `needed` bytes fit under the ceiling or no more candidates remain.
func (c *Cache) evictUntilFitsLocked(needed int64) bool {
	for c.usedBytes+needed > c.byteCeiling {
		victim, ok := c.pickVictimLocked()
		if !ok {
			return false
		}
		c.removeLocked(victim)
	}
	return true
}

func (c *Cache) pickVictimLocked() (Key, bool) {
	switch c.policy {
	case LRU:
		if c.lruOrder.Len() == 0 {
			return "", false
		}
		return c.lruOrder.Front().Value.(Key), true
	case LFU:
		return c.leastFrequentLocked()
	default: // TTL
		return c.earliestExpiryLocked()
	}
}

func (c *Cache) leastFrequentLocked() (Key, bool) {
	var victim Key
	found := false
	var min int64
	for k, e := range c.entries {
		if !found || e.accessCount < min {
			victim, min, found = k, e.accessCount, true
		}
	}
	return victim, found
}

func (c *Cache) earliestExpiryLocked() (Key, bool) {
	var victim Key
	found := false
	var earliest time.Time
	for k, e := range c.entries {
		if !found || e.expiresAt.Before(earliest) {
			victim, earliest, found = k, e.expiresAt, true
		}
	}
	return victim, found
}

func maybeCompress(value []byte, threshold int64) (out []byte, compressed bool, err error) {
	if int64(len(value)) <= threshold {
		return value, false, nil
	}
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(value); err != nil {
		return nil, false, err
	}
	if err := w.Close(); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}

func decompress(payload []byte, compressed bool) ([]byte, error) {
	if !compressed {
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

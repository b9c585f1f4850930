// Package jobcache retains finished generation results for later
// replay or download. Entries are immutable after insertion and are
// removed either by a TTL sweep on put, by capacity eviction in
// insertion order, or lazily on an expired get.
package jobcache

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrtorrez31337/pyvs/internal/observability"
)

// ErrNotFound is returned when a job id is absent or its entry has
// expired.
var ErrNotFound = errors.New("job not found or expired")

// Entry is one finished generation result.
type Entry struct {
	Samples    []int16
	SampleRate int
	CreatedAt  time.Time
}

// Cache is a TTL- and capacity-bounded store of finished jobs keyed by
// job id. All mutations and expiry checks run under a single lock, so
// readers never observe a partially evicted state.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string // job ids in insertion order, oldest first

	ttl      time.Duration
	capacity int

	now func() time.Time // injectable for tests
	log zerolog.Logger
}

// New creates a cache with the given entry TTL and maximum entry count.
func New(ttl time.Duration, capacity int, log zerolog.Logger) *Cache {
	return &Cache{
		entries:  make(map[string]*Entry),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
		log:      log,
	}
}

// Put stores a finished job, then sweeps expired entries and evicts the
// oldest-inserted entries beyond capacity. Overwriting an existing id
// refreshes its insertion position.
func (c *Cache) Put(jobID string, samples []int16, sampleRate int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if _, exists := c.entries[jobID]; exists {
		c.removeFromOrder(jobID)
	}
	c.entries[jobID] = &Entry{
		Samples:    samples,
		SampleRate: sampleRate,
		CreatedAt:  now,
	}
	c.order = append(c.order, jobID)

	expired := 0
	kept := c.order[:0]
	for _, id := range c.order {
		e := c.entries[id]
		if now.Sub(e.CreatedAt) > c.ttl {
			delete(c.entries, id)
			expired++
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	observability.RecordCacheEviction("ttl", expired)

	evicted := 0
	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		evicted++
	}
	observability.RecordCacheEviction("capacity", evicted)

	if expired > 0 || evicted > 0 {
		c.log.Debug().
			Str("job_id", jobID).
			Int("expired", expired).
			Int("evicted", evicted).
			Int("entries", len(c.entries)).
			Msg("Cache sweep after put")
	}
	observability.SetCacheEntries(len(c.entries))
}

// Get returns a job's samples and sample rate. An expired entry is
// deleted and reported as not found.
func (c *Cache) Get(jobID string) ([]int16, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[jobID]
	if !ok {
		observability.RecordCacheLookup("miss")
		return nil, 0, ErrNotFound
	}

	if c.now().Sub(e.CreatedAt) > c.ttl {
		delete(c.entries, jobID)
		c.removeFromOrder(jobID)
		observability.RecordCacheLookup("expired")
		observability.SetCacheEntries(len(c.entries))
		return nil, 0, ErrNotFound
	}

	observability.RecordCacheLookup("hit")
	return e.Samples, e.SampleRate, nil
}

// Len returns the number of live entries, without expiring anything.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SetClock replaces the cache's time source. Test hook.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// removeFromOrder drops one id from the insertion-order slice.
// Caller holds c.mu.
func (c *Cache) removeFromOrder(jobID string) {
	for i, id := range c.order {
		if id == jobID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

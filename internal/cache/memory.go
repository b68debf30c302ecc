package cache

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spacesedan/xpulse/internal/metrics"
	"github.com/spacesedan/xpulse/internal/models"
)

type MemoryOptions struct {
	// Capacity bounds the number of entries; the oldest write is evicted first.
	// Zero means unbounded.
	Capacity int

	// TTL expires entries after they are written. Zero means never.
	TTL time.Duration

	Clock clockwork.Clock
}

// MemoryCache is the process-wide result table. With zero options it never
// evicts and lives as long as the process. Capacity and TTL are opt-in bounds.
type MemoryCache struct {
	mu       sync.RWMutex
	entries  map[string]*memoryEntry
	order    []string
	capacity int
	ttl      time.Duration
	clock    clockwork.Clock
}

type memoryEntry struct {
	results   []models.SentimentResult
	expiresAt time.Time
}

func NewMemoryCache(opts MemoryOptions) *MemoryCache {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryCache{
		entries:  make(map[string]*memoryEntry),
		capacity: opts.Capacity,
		ttl:      opts.TTL,
		clock:    clock,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]models.SentimentResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.expired(entry) {
		metrics.CacheRequestsTotal.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}

	metrics.CacheRequestsTotal.WithLabelValues("memory", "hit").Inc()
	return entry.results, true
}

func (c *MemoryCache) Set(_ context.Context, key string, results []models.SentimentResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		if !c.expired(entry) {
			return
		}
		c.removeLocked(key)
	}

	entry := &memoryEntry{results: results}
	if c.ttl > 0 {
		entry.expiresAt = c.clock.Now().Add(c.ttl)
	}
	c.entries[key] = entry
	c.order = append(c.order, key)

	for c.capacity > 0 && len(c.entries) > c.capacity {
		oldest := c.order[0]
		c.removeLocked(oldest)
		metrics.CacheEvictionsTotal.WithLabelValues("capacity").Inc()
		slog.Debug("[MemoryCache] Evicted oldest entry",
			slog.String("key", oldest),
			slog.Int("capacity", c.capacity))
	}

	metrics.CacheSize.Set(float64(len(c.entries)))
}

func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// EvictExpired drops expired entries and returns how many were removed.
func (c *MemoryCache) EvictExpired() int {
	if c.ttl <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, entry := range c.entries {
		if c.expired(entry) {
			c.removeLocked(key)
			evicted++
		}
	}

	if evicted > 0 {
		metrics.CacheEvictionsTotal.WithLabelValues("ttl").Add(float64(evicted))
		metrics.CacheSize.Set(float64(len(c.entries)))
	}
	return evicted
}

// StartEvictionTimer sweeps expired entries every interval until the returned
// stop function is called.
func (c *MemoryCache) StartEvictionTimer(interval time.Duration) func() {
	ticker := c.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				if evicted := c.EvictExpired(); evicted > 0 {
					slog.Debug("[MemoryCache] Evicted expired entries",
						slog.Int("count", evicted),
						slog.Int("remaining", c.Size()))
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

func (c *MemoryCache) expired(entry *memoryEntry) bool {
	return c.ttl > 0 && !c.clock.Now().Before(entry.expiresAt)
}

func (c *MemoryCache) removeLocked(key string) {
	delete(c.entries, key)
	if i := slices.Index(c.order, key); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
}

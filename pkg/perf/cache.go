package perf

import (
	"container/list"
	"sync"
	"time"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/request"
)

// Cache eviction strategies.
const (
	StrategyLRU  = "lru"
	StrategyLFU  = "lfu"
	StrategyFIFO = "fifo"
)

// CacheMetrics is a point-in-time counter snapshot.
type CacheMetrics struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
	Size        int    `json:"size"`
}

type cacheEntry struct {
	key       string
	rec       *request.Record
	expiresAt time.Time
	hits      uint64
}

// Cache is a TTL response cache with a configurable eviction strategy.
// A background sweeper drops expired entries between reads.
type Cache struct {
	mu      sync.Mutex
	cfg     config.CacheConfig
	entries map[string]*list.Element
	order   *list.List // front newest; back is the eviction candidate
	metrics CacheMetrics
	log     logger.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewCache builds a cache and starts its sweeper when a sweep interval is
// configured.
func NewCache(cfg config.CacheConfig, log logger.Logger) *Cache {
	c := &Cache{
		cfg:     cfg,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		log:     log,
		stop:    make(chan struct{}),
	}
	if cfg.SweepInterval > 0 {
		go c.sweeper()
	}
	return c
}

// Get returns the cached record for key, if present and not expired.
func (c *Cache) Get(key string) (*request.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.metrics.Misses++
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeLocked(el)
		c.metrics.Expirations++
		c.metrics.Misses++
		return nil, false
	}

	entry.hits++
	if c.cfg.Strategy == StrategyLRU || c.cfg.Strategy == "" {
		c.order.MoveToFront(el)
	}
	c.metrics.Hits++
	return entry.rec, true
}

// Set stores a record under key. A zero ttl uses the configured default.
func (c *Cache) Set(key string, rec *request.Record, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.rec = rec
		entry.expiresAt = time.Now().Add(ttl)
		// FIFO keeps insertion order, an update is not a re-insertion.
		if c.cfg.Strategy == StrategyLRU || c.cfg.Strategy == "" {
			c.order.MoveToFront(el)
		}
		return
	}

	if c.cfg.MaxSize > 0 && len(c.entries) >= c.cfg.MaxSize {
		c.evictLocked()
	}
	el := c.order.PushFront(&cacheEntry{
		key:       key,
		rec:       rec,
		expiresAt: time.Now().Add(ttl),
	})
	c.entries[key] = el
}

// Invalidate removes one key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
}

// Clear drops every entry, keeping the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Metrics returns a snapshot of the counters.
func (c *Cache) Metrics() CacheMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.metrics
	m.Size = len(c.entries)
	return m
}

// Close stops the sweeper. The cache stays usable after Close.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) evictLocked() {
	var victim *list.Element
	switch c.cfg.Strategy {
	case StrategyLFU:
		var minHits uint64
		for el := c.order.Back(); el != nil; el = el.Prev() {
			entry := el.Value.(*cacheEntry)
			if victim == nil || entry.hits < minHits {
				victim, minHits = el, entry.hits
			}
		}
	default:
		// LRU and FIFO both evict from the back: FIFO never reorders on
		// access, so the back is the oldest insertion.
		victim = c.order.Back()
	}
	if victim != nil {
		c.removeLocked(victim)
		c.metrics.Evictions++
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	c.order.Remove(el)
	delete(c.entries, entry.key)
}

func (c *Cache) sweeper() {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()
	c.mu.Lock()
	var expired []*list.Element
	for el := c.order.Back(); el != nil; el = el.Prev() {
		if now.After(el.Value.(*cacheEntry).expiresAt) {
			expired = append(expired, el)
		}
	}
	for _, el := range expired {
		c.removeLocked(el)
		c.metrics.Expirations++
	}
	c.mu.Unlock()

	if len(expired) > 0 {
		c.log.Debug("Cache sweep removed expired entries", "count", len(expired))
	}
}

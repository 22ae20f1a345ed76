package perf

import (
	"context"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/request"
)

// Metrics aggregates the counters of every performance component.
type Metrics struct {
	Cache  CacheMetrics  `json:"cache"`
	Dedup  DedupMetrics  `json:"dedup"`
	Batch  BatchMetrics  `json:"batch"`
	Stream StreamMetrics `json:"stream"`
}

// Manager routes each request through the performance pipeline: cache
// lookup, then deduplication, then batching or direct dispatch. Streamed
// requests bypass the cache and the deduper, their bodies are not
// content-addressable.
type Manager struct {
	cfg      config.PerformanceConfig
	cache    *Cache
	dedup    *Deduper
	batch    *Batcher
	streamer *Streamer
	log      logger.Logger
}

// NewManager wires the performance components from configuration.
func NewManager(cfg config.PerformanceConfig, log logger.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		cache:    NewCache(cfg.Caching, log),
		dedup:    NewDeduper(cfg.Deduplication.TTL, log),
		batch:    NewBatcher(cfg.Batching, log),
		streamer: NewStreamer(cfg.Streaming, log),
		log:      log,
	}
}

// Execute runs spec through the pipeline, delegating the actual I/O to exec.
func (m *Manager) Execute(ctx context.Context, spec *request.Specification, exec Executor) (*request.Record, error) {
	if spec.Stream {
		rec, err := m.dispatch(ctx, spec, exec)
		if rec != nil {
			rec.Streamed = true
		}
		return rec, err
	}

	key := Fingerprint(spec)
	useCache := m.cfg.Caching.Enabled && spec.WantsCache()

	if useCache {
		if rec, ok := m.cache.Get(key); ok {
			m.log.Debug("Cache hit", "key", key, "method", spec.Method, "url", spec.URL)
			return markFromCache(rec), nil
		}
	}

	run := func() (*request.Record, error) { return m.dispatch(ctx, spec, exec) }

	var rec *request.Record
	var err error
	if m.cfg.Deduplication.Enabled {
		rec, err = m.dedup.Do(ctx, key, run)
	} else {
		rec, err = run()
	}
	if err != nil {
		return nil, err
	}

	if useCache && !rec.Deduplicated && rec.Status >= 200 && rec.Status < 300 {
		m.cache.Set(key, rec, spec.CacheTTL)
	}
	return rec, nil
}

// Streamer exposes the chunking component to clients.
func (m *Manager) Streamer() *Streamer { return m.streamer }

// Cache exposes the response cache for invalidation and metrics.
func (m *Manager) Cache() *Cache { return m.cache }

// Metrics returns a combined counter snapshot.
func (m *Manager) Metrics() Metrics {
	return Metrics{
		Cache:  m.cache.Metrics(),
		Dedup:  m.dedup.Metrics(),
		Batch:  m.batch.Metrics(),
		Stream: m.streamer.Metrics(),
	}
}

// Cleanup flushes pending batches and stops background work.
func (m *Manager) Cleanup() {
	m.batch.Close()
	m.cache.Close()
}

func (m *Manager) dispatch(ctx context.Context, spec *request.Specification, exec Executor) (*request.Record, error) {
	if m.cfg.Batching.Enabled && spec.Batchable && !spec.Stream {
		return m.batch.Submit(ctx, spec, exec)
	}
	return exec(ctx, spec)
}

func markFromCache(rec *request.Record) *request.Record {
	copied := *rec
	copied.FromCache = true
	return &copied
}

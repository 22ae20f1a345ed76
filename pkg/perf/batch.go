package perf

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/errkind"
	"github.com/ersinghrajkr/restified/pkg/request"
)

// Executor performs one request for the performance layer.
type Executor func(ctx context.Context, spec *request.Specification) (*request.Record, error)

// BatchMetrics counts batching outcomes.
type BatchMetrics struct {
	Batched   uint64 `json:"batched"`
	Flushes   uint64 `json:"flushes"`
	Cancelled uint64 `json:"cancelled"`
}

type batchResult struct {
	rec *request.Record
	err error
}

type batchItem struct {
	spec *request.Specification
	exec Executor
	done chan batchResult
}

type batchQueue struct {
	items []*batchItem
	timer *time.Timer
}

// Batcher groups requests by batch key and dispatches each group at once,
// either when the group reaches the configured size or when the timeout
// fires. Each queued request executes exactly once.
type Batcher struct {
	cfg config.BatchConfig
	log logger.Logger

	mu     sync.Mutex
	queues map[string]*batchQueue
	closed bool

	metrics BatchMetrics
}

// NewBatcher builds a batcher from the batching configuration.
func NewBatcher(cfg config.BatchConfig, log logger.Logger) *Batcher {
	return &Batcher{
		cfg:    cfg,
		log:    log,
		queues: make(map[string]*batchQueue),
	}
}

// Submit queues the request under its batch key and blocks until the batch
// containing it dispatches. A cancelled context abandons the wait but the
// request itself still runs with its batch.
func (b *Batcher) Submit(ctx context.Context, spec *request.Specification, exec Executor) (*request.Record, error) {
	key := spec.BatchKey
	if key == "" {
		key = defaultBatchKey(spec)
	}
	item := &batchItem{spec: spec, exec: exec, done: make(chan batchResult, 1)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("batcher closed: %w", errkind.ErrCancelled)
	}
	q, ok := b.queues[key]
	if !ok {
		q = &batchQueue{}
		b.queues[key] = q
	}
	q.items = append(q.items, item)
	b.metrics.Batched++

	if len(q.items) >= b.cfg.MaxBatchSize {
		b.flushLocked(key, q)
	} else if q.timer == nil {
		q.timer = time.AfterFunc(b.cfg.BatchTimeout, func() { b.flushKey(key) })
	}
	b.mu.Unlock()

	select {
	case res := <-item.done:
		return res.rec, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("batched request abandoned: %w", errkind.ErrCancelled)
	}
}

// defaultBatchKey groups requests without an explicit key by endpoint, so
// unrelated requests never share a batch.
func defaultBatchKey(spec *request.Specification) string {
	path := spec.URL
	if u, err := url.Parse(spec.URL); err == nil {
		u.RawQuery = ""
		path = u.String()
	}
	return strings.ToUpper(spec.Method) + ":" + path
}

// Flush dispatches every pending batch immediately.
func (b *Batcher) Flush() {
	b.mu.Lock()
	for key, q := range b.queues {
		b.flushLocked(key, q)
	}
	b.mu.Unlock()
}

// Close flushes pending batches and rejects further submissions.
func (b *Batcher) Close() {
	b.mu.Lock()
	b.closed = true
	for key, q := range b.queues {
		b.flushLocked(key, q)
	}
	b.mu.Unlock()
}

// Metrics returns a counter snapshot.
func (b *Batcher) Metrics() BatchMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

func (b *Batcher) flushKey(key string) {
	b.mu.Lock()
	if q, ok := b.queues[key]; ok {
		b.flushLocked(key, q)
	}
	b.mu.Unlock()
}

// flushLocked detaches the queue and dispatches its items concurrently.
// Callers hold b.mu.
func (b *Batcher) flushLocked(key string, q *batchQueue) {
	if len(q.items) == 0 {
		delete(b.queues, key)
		return
	}
	if q.timer != nil {
		q.timer.Stop()
	}
	items := q.items
	delete(b.queues, key)
	b.metrics.Flushes++

	b.log.Debug("Dispatching batch", "key", key, "size", len(items))
	go func() {
		var wg sync.WaitGroup
		for _, item := range items {
			wg.Add(1)
			go func(it *batchItem) {
				defer wg.Done()
				rec, err := it.exec(context.Background(), it.spec)
				it.done <- batchResult{rec: rec, err: err}
			}(item)
		}
		wg.Wait()
	}()
}

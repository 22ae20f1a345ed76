package perf

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/request"
)

// DedupMetrics counts deduplication outcomes.
type DedupMetrics struct {
	Executions uint64 `json:"executions"`
	Joined     uint64 `json:"joined"`
	Failures   uint64 `json:"failures"`
}

type recentResult struct {
	rec       *request.Record
	expiresAt time.Time
}

// Deduper collapses identical in-flight requests into one execution and,
// for a short TTL, serves the completed result to late arrivals. Failures
// are never retained: the next caller executes again.
type Deduper struct {
	group singleflight.Group
	ttl   time.Duration
	log   logger.Logger

	mu      sync.Mutex
	recent  map[string]recentResult
	metrics DedupMetrics
}

// NewDeduper builds a deduper. ttl bounds how long a completed result keeps
// absorbing identical requests.
func NewDeduper(ttl time.Duration, log logger.Logger) *Deduper {
	return &Deduper{
		ttl:    ttl,
		log:    log,
		recent: make(map[string]recentResult),
	}
}

// Do runs fn under key. Callers that join an in-flight or recent execution
// receive a copy of the record with Deduplicated set.
func (d *Deduper) Do(ctx context.Context, key string, fn func() (*request.Record, error)) (*request.Record, error) {
	if rec, ok := d.lookupRecent(key); ok {
		d.mu.Lock()
		d.metrics.Joined++
		d.mu.Unlock()
		return markDeduplicated(rec), nil
	}

	// The singleflight shared flag is true for every caller of a shared
	// round, including the one whose fn ran. Tracking execution through the
	// closure tells the initiator apart from joiners.
	executed := false
	value, err, _ := d.group.Do(key, func() (interface{}, error) {
		executed = true
		rec, execErr := fn()
		if execErr != nil {
			return nil, execErr
		}
		return rec, nil
	})
	if err != nil {
		d.group.Forget(key)
		d.mu.Lock()
		d.metrics.Failures++
		d.mu.Unlock()
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	rec := value.(*request.Record)
	if executed {
		d.retain(key, rec)
	}

	d.mu.Lock()
	if executed {
		d.metrics.Executions++
	} else {
		d.metrics.Joined++
	}
	d.mu.Unlock()

	if !executed {
		return markDeduplicated(rec), nil
	}
	return rec, nil
}

// Metrics returns a counter snapshot.
func (d *Deduper) Metrics() DedupMetrics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.metrics
}

func (d *Deduper) lookupRecent(key string) (*request.Record, bool) {
	if d.ttl <= 0 {
		return nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	res, ok := d.recent[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(res.expiresAt) {
		delete(d.recent, key)
		d.group.Forget(key)
		return nil, false
	}
	return res.rec, true
}

func (d *Deduper) retain(key string, rec *request.Record) {
	if d.ttl <= 0 {
		return
	}
	now := time.Now()
	d.mu.Lock()
	// Opportunistic purge keeps the map from growing between lookups.
	for k, res := range d.recent {
		if now.After(res.expiresAt) {
			delete(d.recent, k)
		}
	}
	d.recent[key] = recentResult{rec: rec, expiresAt: now.Add(d.ttl)}
	d.mu.Unlock()
}

func markDeduplicated(rec *request.Record) *request.Record {
	copied := *rec
	copied.Deduplicated = true
	return &copied
}

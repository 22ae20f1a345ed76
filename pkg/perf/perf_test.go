package perf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/request"
)

func testRecord(status int) *request.Record {
	return &request.Record{Status: status, StatusText: "OK", Headers: map[string]string{}}
}

func getSpec(url string) *request.Specification {
	return &request.Specification{Method: "GET", URL: url}
}

func TestFingerprintStability(t *testing.T) {
	a := &request.Specification{
		Method:  "get",
		URL:     "https://api.local/users",
		Query:   map[string]string{"b": "2", "a": "1"},
		Headers: map[string]string{"Accept": "application/json"},
	}
	b := &request.Specification{
		Method:  "GET",
		URL:     "https://api.local/users",
		Query:   map[string]string{"a": "1", "b": "2"},
		Headers: map[string]string{"accept": "application/json"},
	}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("equivalent specs must share a fingerprint")
	}

	c := b.Clone()
	c.Query["a"] = "changed"
	if Fingerprint(b) == Fingerprint(c) {
		t.Fatalf("different queries must not collide")
	}
}

func TestFingerprintURLQueryOrder(t *testing.T) {
	a := getSpec("https://api.local/posts?a=1&b=2")
	b := getSpec("https://api.local/posts?b=2&a=1")
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("query order inside the URL must not affect the fingerprint")
	}

	// The same parameter set split between URL and Query is one identity.
	c := &request.Specification{Method: "GET", URL: "https://api.local/posts?a=1", Query: map[string]string{"b": "2"}}
	d := &request.Specification{Method: "GET", URL: "https://api.local/posts?b=2", Query: map[string]string{"a": "1"}}
	if Fingerprint(c) != Fingerprint(d) {
		t.Fatalf("embedded and explicit query parameters must hash alike")
	}

	e := getSpec("https://api.local/posts?a=9&b=2")
	if Fingerprint(a) == Fingerprint(e) {
		t.Fatalf("different query values must not collide")
	}
}

func TestFingerprintIgnoresVolatileHeaders(t *testing.T) {
	a := getSpec("https://api.local/x")
	a.Headers = map[string]string{"X-Request-Id": "111", "Accept": "text/plain"}
	b := getSpec("https://api.local/x")
	b.Headers = map[string]string{"X-Request-Id": "222", "Accept": "text/plain"}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatalf("volatile headers must not affect the fingerprint")
	}
}

func TestFingerprintExplicitKeyWins(t *testing.T) {
	s := getSpec("https://api.local/x")
	s.CacheKey = "custom"
	if Fingerprint(s) != "custom" {
		t.Fatalf("explicit cache key must be used verbatim")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(config.CacheConfig{Enabled: true, MaxSize: 10, DefaultTTL: 20 * time.Millisecond}, logger.Nop())
	defer c.Close()

	c.Set("k", testRecord(200), 0)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("fresh entry must hit")
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expired entry must miss")
	}
	m := c.Metrics()
	if m.Hits != 1 || m.Misses != 1 || m.Expirations != 1 {
		t.Fatalf("metrics: %+v", m)
	}
}

func TestCacheLRUEviction(t *testing.T) {
	c := NewCache(config.CacheConfig{MaxSize: 2, DefaultTTL: time.Minute, Strategy: StrategyLRU}, logger.Nop())
	defer c.Close()

	c.Set("a", testRecord(200), 0)
	c.Set("b", testRecord(200), 0)
	c.Get("a") // refresh a so b is least recently used
	c.Set("c", testRecord(200), 0)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should survive")
	}
	if c.Metrics().Evictions != 1 {
		t.Fatalf("evictions: %+v", c.Metrics())
	}
}

func TestCacheFIFOEviction(t *testing.T) {
	c := NewCache(config.CacheConfig{MaxSize: 2, DefaultTTL: time.Minute, Strategy: StrategyFIFO}, logger.Nop())
	defer c.Close()

	c.Set("a", testRecord(200), 0)
	c.Set("b", testRecord(200), 0)
	c.Get("a") // access does not matter for FIFO
	c.Set("c", testRecord(200), 0)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("oldest insertion must be evicted under FIFO")
	}
}

func TestCacheFIFOUpdateKeepsInsertionOrder(t *testing.T) {
	c := NewCache(config.CacheConfig{MaxSize: 2, DefaultTTL: time.Minute, Strategy: StrategyFIFO}, logger.Nop())
	defer c.Close()

	c.Set("a", testRecord(200), 0)
	c.Set("b", testRecord(200), 0)
	c.Set("a", testRecord(204), 0) // update must not re-insert
	c.Set("c", testRecord(200), 0)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("updated entry keeps its original insertion slot under FIFO")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatalf("b should survive")
	}
}

func TestCacheLFUEviction(t *testing.T) {
	c := NewCache(config.CacheConfig{MaxSize: 2, DefaultTTL: time.Minute, Strategy: StrategyLFU}, logger.Nop())
	defer c.Close()

	c.Set("a", testRecord(200), 0)
	c.Set("b", testRecord(200), 0)
	c.Get("a")
	c.Get("a")
	c.Get("b")
	c.Set("c", testRecord(200), 0)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("least frequently used entry must be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("most used entry must survive")
	}
}

func TestDeduperCollapsesConcurrentCalls(t *testing.T) {
	d := NewDeduper(time.Second, logger.Nop())
	var calls int32
	release := make(chan struct{})

	fn := func() (*request.Record, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return testRecord(200), nil
	}

	const n = 5
	var wg sync.WaitGroup
	results := make([]*request.Record, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := d.Do(context.Background(), "same", fn)
			if err != nil {
				t.Errorf("do: %v", err)
				return
			}
			results[i] = rec
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single execution, got %d", got)
	}
	dedupCount := 0
	for _, rec := range results {
		if rec.Deduplicated {
			dedupCount++
		}
	}
	if dedupCount != n-1 {
		t.Fatalf("expected %d joiners marked deduplicated, got %d", n-1, dedupCount)
	}
}

func TestDeduperDoesNotRetainFailures(t *testing.T) {
	d := NewDeduper(time.Second, logger.Nop())
	var calls int32

	fail := func() (*request.Record, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("boom")
	}
	if _, err := d.Do(context.Background(), "k", fail); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := d.Do(context.Background(), "k", fail); err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("failures must not be shared, got %d calls", calls)
	}
}

func TestDeduperRecentWindow(t *testing.T) {
	d := NewDeduper(100*time.Millisecond, logger.Nop())
	var calls int32
	fn := func() (*request.Record, error) {
		atomic.AddInt32(&calls, 1)
		return testRecord(200), nil
	}

	if _, err := d.Do(context.Background(), "k", fn); err != nil {
		t.Fatalf("do: %v", err)
	}
	rec, err := d.Do(context.Background(), "k", fn)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if !rec.Deduplicated {
		t.Fatalf("arrival inside the TTL window must join the recent result")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls: %d", calls)
	}

	time.Sleep(150 * time.Millisecond)
	rec, err = d.Do(context.Background(), "k", fn)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if rec.Deduplicated {
		t.Fatalf("arrival after the TTL must execute again")
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls: %d", calls)
	}
}

func TestBatcherFlushesOnSize(t *testing.T) {
	b := NewBatcher(config.BatchConfig{Enabled: true, MaxBatchSize: 2, BatchTimeout: time.Minute}, logger.Nop())
	defer b.Close()

	var calls int32
	exec := func(ctx context.Context, spec *request.Specification) (*request.Record, error) {
		atomic.AddInt32(&calls, 1)
		return testRecord(200), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			spec := getSpec(fmt.Sprintf("https://api.local/%d", i))
			spec.Batchable = true
			spec.BatchKey = "grp"
			if _, err := b.Submit(context.Background(), spec, exec); err != nil {
				t.Errorf("submit: %v", err)
			}
		}(i)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("size-triggered flush did not happen")
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("every batched request must run exactly once, got %d", calls)
	}
}

func TestBatcherDefaultKeyGroupsByEndpoint(t *testing.T) {
	b := NewBatcher(config.BatchConfig{Enabled: true, MaxBatchSize: 2, BatchTimeout: time.Minute}, logger.Nop())
	defer b.Close()

	exec := func(ctx context.Context, spec *request.Specification) (*request.Record, error) {
		return testRecord(200), nil
	}

	// Two different endpoints without an explicit key must not fill one
	// batch together.
	completed := make(chan struct{}, 2)
	for _, spec := range []*request.Specification{
		{Method: "GET", URL: "https://api.local/a", Batchable: true},
		{Method: "POST", URL: "https://api.local/b", Batchable: true},
	} {
		go func(spec *request.Specification) {
			if _, err := b.Submit(context.Background(), spec, exec); err != nil {
				t.Errorf("submit: %v", err)
			}
			completed <- struct{}{}
		}(spec)
	}

	select {
	case <-completed:
		t.Fatalf("unrelated endpoints must not flush as one batch")
	case <-time.After(100 * time.Millisecond):
	}

	b.Flush()
	for i := 0; i < 2; i++ {
		select {
		case <-completed:
		case <-time.After(2 * time.Second):
			t.Fatalf("explicit flush must release pending batches")
		}
	}

	// Two requests to the same endpoint share the derived key and flush on
	// size, regardless of query parameters.
	var wg sync.WaitGroup
	for _, url := range []string{"https://api.local/a?page=1", "https://api.local/a?page=2"} {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			spec := getSpec(url)
			spec.Batchable = true
			if _, err := b.Submit(context.Background(), spec, exec); err != nil {
				t.Errorf("submit: %v", err)
			}
		}(url)
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("same endpoint must share the default batch key")
	}
}

func TestBatcherFlushesOnTimeout(t *testing.T) {
	b := NewBatcher(config.BatchConfig{Enabled: true, MaxBatchSize: 100, BatchTimeout: 30 * time.Millisecond}, logger.Nop())
	defer b.Close()

	exec := func(ctx context.Context, spec *request.Specification) (*request.Record, error) {
		return testRecord(200), nil
	}
	spec := getSpec("https://api.local/one")
	spec.Batchable = true

	start := time.Now()
	rec, err := b.Submit(context.Background(), spec, exec)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if rec.Status != 200 {
		t.Fatalf("status: %d", rec.Status)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("flush should wait for the batch timeout, took %v", elapsed)
	}
}

func TestStreamerChunksAndCollect(t *testing.T) {
	s := NewStreamer(config.StreamingConfig{Enabled: true, ChunkSize: 4, MaxMemoryBytes: 1024}, logger.Nop())

	payload := []byte("abcdefghij")
	chunks := s.Stream(context.Background(), io.NopCloser(bytes.NewReader(payload)))

	out, err := s.Collect(context.Background(), chunks)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("collected %q, want %q", out, payload)
	}

	m := s.Metrics()
	if m.Chunks != 3 || m.Bytes != uint64(len(payload)) {
		t.Fatalf("stream counters: %+v", m)
	}
	if m.MemoryUsageBytes != int64(len(payload)) {
		t.Fatalf("memory usage should track the collected body, got %d", m.MemoryUsageBytes)
	}
}

func TestStreamerCountsBackpressure(t *testing.T) {
	// MaxMemoryBytes 5 with ChunkSize 4 gives a single-chunk buffer, so a
	// slow consumer makes the producer wait on every chunk after the first.
	m := NewManager(config.PerformanceConfig{
		Streaming: config.StreamingConfig{Enabled: true, ChunkSize: 4, MaxMemoryBytes: 5},
	}, logger.Nop())
	defer m.Cleanup()

	payload := []byte("abcdefghijkl")
	chunks := m.Streamer().Stream(context.Background(), io.NopCloser(bytes.NewReader(payload)))

	time.Sleep(100 * time.Millisecond)
	var total int
	for chunk := range chunks {
		if chunk.Err != nil {
			t.Fatalf("chunk: %v", chunk.Err)
		}
		total += len(chunk.Data)
	}
	if total != len(payload) {
		t.Fatalf("drained %d bytes, want %d", total, len(payload))
	}

	sm := m.Metrics().Stream
	if sm.Chunks != 3 || sm.Bytes != uint64(len(payload)) {
		t.Fatalf("stream counters: %+v", sm)
	}
	if sm.BackpressureEvents == 0 {
		t.Fatalf("a full buffer must be recorded as backpressure")
	}
}

func TestStreamerMemoryBudget(t *testing.T) {
	s := NewStreamer(config.StreamingConfig{Enabled: true, ChunkSize: 8, MaxMemoryBytes: 16}, logger.Nop())

	payload := bytes.Repeat([]byte("x"), 64)
	chunks := s.Stream(context.Background(), io.NopCloser(bytes.NewReader(payload)))
	if _, err := s.Collect(context.Background(), chunks); err == nil {
		t.Fatalf("collect must enforce the memory budget")
	}
}

func perfConfig() config.PerformanceConfig {
	return config.PerformanceConfig{
		Caching:       config.CacheConfig{Enabled: true, MaxSize: 100, DefaultTTL: time.Minute},
		Deduplication: config.DedupConfig{Enabled: true, TTL: time.Minute},
		Batching:      config.BatchConfig{Enabled: true, MaxBatchSize: 10, BatchTimeout: 10 * time.Millisecond},
		Streaming:     config.StreamingConfig{Enabled: true, ChunkSize: 1024, MaxMemoryBytes: 1 << 20},
	}
}

func TestManagerCachesGET(t *testing.T) {
	m := NewManager(perfConfig(), logger.Nop())
	defer m.Cleanup()

	var calls int32
	exec := func(ctx context.Context, spec *request.Specification) (*request.Record, error) {
		atomic.AddInt32(&calls, 1)
		return testRecord(200), nil
	}

	spec := getSpec("https://api.local/users")
	first, err := m.Execute(context.Background(), spec, exec)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if first.FromCache {
		t.Fatalf("first call cannot come from cache")
	}

	second, err := m.Execute(context.Background(), spec, exec)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !second.FromCache {
		t.Fatalf("second identical GET must come from cache")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls: %d", calls)
	}
}

func TestManagerSkipsCacheForPOST(t *testing.T) {
	cfg := perfConfig()
	cfg.Deduplication.Enabled = false
	m := NewManager(cfg, logger.Nop())
	defer m.Cleanup()

	var calls int32
	exec := func(ctx context.Context, spec *request.Specification) (*request.Record, error) {
		atomic.AddInt32(&calls, 1)
		return testRecord(201), nil
	}

	spec := &request.Specification{Method: "POST", URL: "https://api.local/users", Body: map[string]interface{}{"n": 1}}
	for i := 0; i < 2; i++ {
		rec, err := m.Execute(context.Background(), spec, exec)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if rec.FromCache {
			t.Fatalf("POST must not be served from cache")
		}
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls: %d", calls)
	}
}

func TestManagerCacheableOverride(t *testing.T) {
	cfg := perfConfig()
	cfg.Deduplication.Enabled = false
	m := NewManager(cfg, logger.Nop())
	defer m.Cleanup()

	var calls int32
	exec := func(ctx context.Context, spec *request.Specification) (*request.Record, error) {
		atomic.AddInt32(&calls, 1)
		return testRecord(200), nil
	}

	cacheable := false
	spec := getSpec("https://api.local/uncached")
	spec.Cacheable = &cacheable
	for i := 0; i < 2; i++ {
		if _, err := m.Execute(context.Background(), spec, exec); err != nil {
			t.Fatalf("execute: %v", err)
		}
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("explicit Cacheable=false must disable caching, calls=%d", calls)
	}
}

func TestManagerDoesNotCacheErrors(t *testing.T) {
	cfg := perfConfig()
	cfg.Deduplication.Enabled = false
	m := NewManager(cfg, logger.Nop())
	defer m.Cleanup()

	var calls int32
	exec := func(ctx context.Context, spec *request.Specification) (*request.Record, error) {
		atomic.AddInt32(&calls, 1)
		return testRecord(500), nil
	}

	spec := getSpec("https://api.local/flaky")
	for i := 0; i < 2; i++ {
		if _, err := m.Execute(context.Background(), spec, exec); err != nil {
			t.Fatalf("execute: %v", err)
		}
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("5xx responses must not be cached, calls=%d", calls)
	}
}

func TestManagerStreamBypassesCache(t *testing.T) {
	m := NewManager(perfConfig(), logger.Nop())
	defer m.Cleanup()

	var calls int32
	exec := func(ctx context.Context, spec *request.Specification) (*request.Record, error) {
		atomic.AddInt32(&calls, 1)
		return testRecord(200), nil
	}

	spec := getSpec("https://api.local/stream")
	spec.Stream = true
	for i := 0; i < 2; i++ {
		rec, err := m.Execute(context.Background(), spec, exec)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if !rec.Streamed {
			t.Fatalf("record must be marked streamed")
		}
		if rec.FromCache || rec.Deduplicated {
			t.Fatalf("streamed requests bypass cache and dedup")
		}
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls: %d", calls)
	}
}

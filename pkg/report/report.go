// Package report collects test outcomes and renders them through pluggable
// reporters.
package report

import (
	"fmt"
	"sync"
	"time"
)

// AssertionResult is one evaluated assertion of a test.
type AssertionResult struct {
	Kind     string      `json:"kind"`
	Target   string      `json:"target,omitempty"`
	Expected interface{} `json:"expected,omitempty"`
	Actual   interface{} `json:"actual,omitempty"`
	Passed   bool        `json:"passed"`
	Message  string      `json:"message,omitempty"`
}

// TestRecord is the reported outcome of one executed test.
type TestRecord struct {
	Name  string   `json:"name"`
	Suite string   `json:"suite,omitempty"`
	Tags  []string `json:"tags,omitempty"`

	Method string `json:"method,omitempty"`
	URL    string `json:"url,omitempty"`
	Status int    `json:"status,omitempty"`

	// RequestHeaders carries the dispatched headers with credential-bearing
	// values already masked.
	RequestHeaders map[string]string `json:"request_headers,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`

	Assertions []AssertionResult `json:"assertions,omitempty"`
	Passed     bool              `json:"passed"`
	Errors     []string          `json:"errors,omitempty"`

	FromCache    bool `json:"from_cache,omitempty"`
	Deduplicated bool `json:"deduplicated,omitempty"`
	Streamed     bool `json:"streamed,omitempty"`
}

// FailedAssertions returns the assertions that did not pass.
func (r *TestRecord) FailedAssertions() []AssertionResult {
	var out []AssertionResult
	for _, a := range r.Assertions {
		if !a.Passed {
			out = append(out, a)
		}
	}
	return out
}

// Reporter renders test records to one destination.
type Reporter interface {
	Report(rec *TestRecord) error
	Flush() error
}

// Collector fans records out to every configured reporter and keeps them
// for the end-of-run summary.
type Collector struct {
	mu        sync.Mutex
	reporters []Reporter
	records   []*TestRecord
	active    *TestRecord
}

// NewCollector builds a collector over reporters.
func NewCollector(reporters ...Reporter) *Collector {
	return &Collector{reporters: reporters}
}

// StartCapturing opens a capture session for the named test. Assertions
// added before FinishCapturing attach to this session.
func (c *Collector) StartCapturing(name string) {
	c.mu.Lock()
	c.active = &TestRecord{Name: name, StartedAt: time.Now().UTC(), Passed: true}
	c.mu.Unlock()
}

// AddAssertion attaches one result to the active capture session.
func (c *Collector) AddAssertion(res AssertionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return
	}
	c.active.Assertions = append(c.active.Assertions, res)
	if !res.Passed {
		c.active.Passed = false
	}
}

// FinishCapturing closes the session and dispatches the record. It returns
// the finished record, nil when no session was open.
func (c *Collector) FinishCapturing() *TestRecord {
	c.mu.Lock()
	rec := c.active
	c.active = nil
	c.mu.Unlock()
	if rec == nil {
		return nil
	}
	rec.Duration = time.Since(rec.StartedAt)
	c.Record(rec)
	return rec
}

// WithAssertions captures a test function: the record is always written,
// and the function's error is rethrown to the caller afterwards.
func (c *Collector) WithAssertions(name string, fn func() error) error {
	c.StartCapturing(name)
	err := fn()
	c.mu.Lock()
	if c.active != nil && err != nil {
		c.active.Passed = false
		c.active.Errors = append(c.active.Errors, err.Error())
	}
	c.mu.Unlock()
	c.FinishCapturing()
	return err
}

// Record dispatches a completed record to every reporter.
func (c *Collector) Record(rec *TestRecord) {
	c.mu.Lock()
	c.records = append(c.records, rec)
	reporters := c.reporters
	c.mu.Unlock()

	for _, r := range reporters {
		// Reporter failures must not fail the test run.
		_ = r.Report(rec)
	}
}

// Records returns the collected records.
func (c *Collector) Records() []*TestRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*TestRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Summary tallies collected outcomes.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Duration time.Duration
}

// Summarize computes the run summary.
func (c *Collector) Summarize() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Summary{Total: len(c.records)}
	for _, rec := range c.records {
		if rec.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
		s.Duration += rec.Duration
	}
	return s
}

// Flush flushes every reporter, returning the first failure.
func (c *Collector) Flush() error {
	c.mu.Lock()
	reporters := c.reporters
	c.mu.Unlock()

	var firstErr error
	for _, r := range reporters {
		if err := r.Flush(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush reporter: %w", err)
		}
	}
	return firstErr
}

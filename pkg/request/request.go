// Package request holds the wire-level records shared by the DSL, the
// performance layer, and the clients.
package request

import (
	"encoding/json"
	"strings"
	"time"
)

// Specification describes one intended request. String fields may carry
// unresolved {{…}} templates until execution time.
type Specification struct {
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers,omitempty"`
	Query      map[string]string `json:"query,omitempty"`
	Body       interface{}       `json:"body,omitempty"`
	ClientName string            `json:"client_name,omitempty"`
	Timeout    time.Duration     `json:"timeout_ms,omitempty"`
	Retries    int               `json:"retries,omitempty"`

	AuthOverride string `json:"auth_override,omitempty"`

	Batchable bool   `json:"batchable,omitempty"`
	BatchKey  string `json:"batch_key,omitempty"`

	// Cacheable defaults to true for GET requests; the pointer distinguishes
	// "unset" from an explicit false.
	Cacheable *bool         `json:"cacheable,omitempty"`
	CacheTTL  time.Duration `json:"cache_ttl_ms,omitempty"`
	CacheKey  string        `json:"cache_key,omitempty"`

	Stream bool `json:"stream,omitempty"`
}

// Clone returns a deep-enough copy: maps are copied, the body is shared
// (bodies are treated as immutable once handed to the executor).
func (s *Specification) Clone() *Specification {
	out := *s
	if s.Headers != nil {
		out.Headers = make(map[string]string, len(s.Headers))
		for k, v := range s.Headers {
			out.Headers[k] = v
		}
	}
	if s.Query != nil {
		out.Query = make(map[string]string, len(s.Query))
		for k, v := range s.Query {
			out.Query[k] = v
		}
	}
	if s.Cacheable != nil {
		cacheable := *s.Cacheable
		out.Cacheable = &cacheable
	}
	return &out
}

// WantsCache reports whether the response may be served from or stored to
// the cache.
func (s *Specification) WantsCache() bool {
	if s.Cacheable != nil {
		return *s.Cacheable
	}
	return strings.EqualFold(s.Method, "GET")
}

// Record is the completed response for a Specification.
type Record struct {
	Status         int               `json:"status"`
	StatusText     string            `json:"status_text"`
	Headers        map[string]string `json:"headers"`
	Body           interface{}       `json:"body,omitempty"`
	RawBody        []byte            `json:"raw_body,omitempty"`
	ResponseTimeMs int64             `json:"response_time_ms"`
	Timestamp      time.Time         `json:"timestamp"`
	Request        *Specification    `json:"request,omitempty"`

	// FromCache and Deduplicated mark how the record was satisfied.
	FromCache    bool `json:"from_cache,omitempty"`
	Deduplicated bool `json:"deduplicated,omitempty"`
	Streamed     bool `json:"streamed,omitempty"`
}

// Header returns the value for a case-insensitive header name.
func (r *Record) Header(name string) (string, bool) {
	v, ok := r.Headers[strings.ToLower(name)]
	return v, ok
}

// NewRecord builds a Record from raw response material. Headers are
// lowercased; the body is parsed as JSON when the content type implies JSON
// and parsing succeeds, otherwise the raw text is kept.
func NewRecord(spec *Specification, status int, statusText string, headers map[string]string, raw []byte, elapsed time.Duration) *Record {
	lowered := make(map[string]string, len(headers))
	for k, v := range headers {
		lowered[strings.ToLower(k)] = v
	}

	rec := &Record{
		Status:         status,
		StatusText:     statusText,
		Headers:        lowered,
		RawBody:        raw,
		ResponseTimeMs: elapsed.Milliseconds(),
		Timestamp:      time.Now().UTC(),
		Request:        spec,
	}
	rec.Body = parseBody(lowered["content-type"], raw)
	return rec
}

func parseBody(contentType string, raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	if impliesJSON(contentType) {
		var parsed interface{}
		if err := json.Unmarshal(raw, &parsed); err == nil {
			return parsed
		}
	}
	return string(raw)
}

func impliesJSON(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/json") ||
		strings.Contains(ct, "+json") ||
		strings.Contains(ct, "text/json")
}

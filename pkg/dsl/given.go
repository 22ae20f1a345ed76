package dsl

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/ersinghrajkr/restified/pkg/request"
	"github.com/ersinghrajkr/restified/pkg/template"
)

// GivenStep accumulates request context. Every builder method mutates the
// internal draft and returns the receiver so calls chain.
type GivenStep struct {
	deps    *Deps
	spec    *request.Specification
	name    string
	tags    []string
	baseURL string
	errs    []error
}

// Test names the test for reporting.
func (g *GivenStep) Test(name string) *GivenStep {
	g.name = name
	return g
}

// Tags attaches report tags.
func (g *GivenStep) Tags(tags ...string) *GivenStep {
	g.tags = append(g.tags, tags...)
	return g
}

// BaseURL overrides the client's base URL for this request. Relative
// request paths resolve against it.
func (g *GivenStep) BaseURL(url string) *GivenStep {
	g.baseURL = url
	return g
}

// Header sets one request header. Values may carry templates.
func (g *GivenStep) Header(name, value string) *GivenStep {
	g.spec.Headers[name] = value
	return g
}

// Headers sets several request headers.
func (g *GivenStep) Headers(headers map[string]string) *GivenStep {
	for k, v := range headers {
		g.spec.Headers[k] = v
	}
	return g
}

// BearerToken sets the Authorization header with a Bearer scheme.
func (g *GivenStep) BearerToken(token string) *GivenStep {
	return g.Header("Authorization", "Bearer "+token)
}

// BasicAuth sets the Authorization header with encoded credentials.
func (g *GivenStep) BasicAuth(username, password string) *GivenStep {
	cred := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return g.Header("Authorization", "Basic "+cred)
}

// ContentType sets the Content-Type header.
func (g *GivenStep) ContentType(ct string) *GivenStep {
	return g.Header("Content-Type", ct)
}

// QueryParam sets one query parameter.
func (g *GivenStep) QueryParam(name, value string) *GivenStep {
	g.spec.Query[name] = value
	return g
}

// QueryParams sets several query parameters.
func (g *GivenStep) QueryParams(params map[string]string) *GivenStep {
	for k, v := range params {
		g.spec.Query[k] = v
	}
	return g
}

// Var sets a local-scope variable visible to this test's templates.
func (g *GivenStep) Var(name string, value interface{}) *GivenStep {
	g.deps.Vars.SetLocal(name, value)
	return g
}

// Vars sets several local-scope variables.
func (g *GivenStep) Vars(values map[string]interface{}) *GivenStep {
	for k, v := range values {
		g.deps.Vars.SetLocal(k, v)
	}
	return g
}

// Body sets the request body. Strings and maps may carry templates.
func (g *GivenStep) Body(body interface{}) *GivenStep {
	g.spec.Body = body
	return g
}

// JSONBody sets the request body and the JSON content type in one call.
func (g *GivenStep) JSONBody(body interface{}) *GivenStep {
	g.spec.Body = body
	return g.ContentType("application/json")
}

// FixtureBody loads a JSON or YAML fixture file as the request body.
// Templates inside the fixture resolve at execution time.
func (g *GivenStep) FixtureBody(path string) *GivenStep {
	body, err := template.LoadFixture(path)
	if err != nil {
		g.errs = append(g.errs, fmt.Errorf("load fixture %s: %w", path, err))
		return g
	}
	g.spec.Body = body
	return g
}

// UseClient routes the request through the named client.
func (g *GivenStep) UseClient(name string) *GivenStep {
	g.spec.ClientName = name
	return g
}

// Timeout overrides the client timeout for this request.
func (g *GivenStep) Timeout(d time.Duration) *GivenStep {
	g.spec.Timeout = d
	return g
}

// Retries overrides the retry attempt count for this request.
func (g *GivenStep) Retries(n int) *GivenStep {
	g.spec.Retries = n
	return g
}

// Cache opts the request into caching with a TTL, zero meaning the
// configured default.
func (g *GivenStep) Cache(ttl time.Duration) *GivenStep {
	cacheable := true
	g.spec.Cacheable = &cacheable
	g.spec.CacheTTL = ttl
	return g
}

// NoCache opts the request out of caching regardless of method.
func (g *GivenStep) NoCache() *GivenStep {
	cacheable := false
	g.spec.Cacheable = &cacheable
	return g
}

// CacheKey overrides the computed request fingerprint.
func (g *GivenStep) CacheKey(key string) *GivenStep {
	g.spec.CacheKey = key
	return g
}

// Batch marks the request batchable under a grouping key.
func (g *GivenStep) Batch(key string) *GivenStep {
	g.spec.Batchable = true
	g.spec.BatchKey = key
	return g
}

// Stream requests chunked body consumption, bypassing cache and dedup.
func (g *GivenStep) Stream() *GivenStep {
	g.spec.Stream = true
	return g
}

// When transitions to the execution step.
func (g *GivenStep) When() *WhenStep {
	return &WhenStep{given: g}
}

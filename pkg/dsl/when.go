package dsl

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ersinghrajkr/restified/pkg/report"
	"github.com/ersinghrajkr/restified/pkg/request"
)

// DefaultClientName is used when a test does not pick a client.
const DefaultClientName = "default"

// WhenStep binds a method and URL to the accumulated context and executes
// the request.
type WhenStep struct {
	given *GivenStep
}

// Get executes a GET request.
func (w *WhenStep) Get(ctx context.Context, url string) (*ThenStep, error) {
	return w.Method(ctx, http.MethodGet, url)
}

// Post executes a POST request.
func (w *WhenStep) Post(ctx context.Context, url string) (*ThenStep, error) {
	return w.Method(ctx, http.MethodPost, url)
}

// Put executes a PUT request.
func (w *WhenStep) Put(ctx context.Context, url string) (*ThenStep, error) {
	return w.Method(ctx, http.MethodPut, url)
}

// Patch executes a PATCH request.
func (w *WhenStep) Patch(ctx context.Context, url string) (*ThenStep, error) {
	return w.Method(ctx, http.MethodPatch, url)
}

// Delete executes a DELETE request.
func (w *WhenStep) Delete(ctx context.Context, url string) (*ThenStep, error) {
	return w.Method(ctx, http.MethodDelete, url)
}

// Head executes a HEAD request.
func (w *WhenStep) Head(ctx context.Context, url string) (*ThenStep, error) {
	return w.Method(ctx, http.MethodHead, url)
}

// Method executes a request with an arbitrary method. Templates in the URL,
// headers, query parameters, and body resolve against the variable store
// here, at execution time.
func (w *WhenStep) Method(ctx context.Context, method, url string) (*ThenStep, error) {
	g := w.given
	deps := g.deps
	startedAt := time.Now().UTC()

	then := &ThenStep{given: g, startedAt: startedAt}
	if len(g.errs) > 0 {
		return nil, then.fail(g.errs[0])
	}

	spec := g.spec.Clone()
	spec.Method = method
	spec.URL = url
	if spec.ClientName == "" {
		spec.ClientName = DefaultClientName
	}

	if err := w.resolveSpec(ctx, spec); err != nil {
		return nil, then.fail(err)
	}
	w.applyAmbientHeaders(spec)

	executor, err := deps.Clients.HTTP(spec.ClientName)
	if err != nil {
		return nil, then.fail(err)
	}

	rec, err := deps.Perf.Execute(ctx, spec, executor.Execute)
	if err != nil {
		then.spec = spec
		return nil, then.fail(err)
	}

	then.spec = spec
	then.rec = rec
	return then, nil
}

func (w *WhenStep) resolveSpec(ctx context.Context, spec *request.Specification) error {
	deps := w.given.deps

	resolved, err := deps.Resolver.ResolveString(ctx, spec.URL)
	if err != nil {
		return fmt.Errorf("resolve url: %w", err)
	}
	spec.URL = fmt.Sprintf("%v", resolved)

	if w.given.baseURL != "" && !strings.Contains(spec.URL, "://") {
		base, err := deps.Resolver.ResolveString(ctx, w.given.baseURL)
		if err != nil {
			return fmt.Errorf("resolve base url: %w", err)
		}
		spec.URL = strings.TrimRight(fmt.Sprintf("%v", base), "/") + "/" + strings.TrimLeft(spec.URL, "/")
	}

	if spec.Headers, err = w.resolveStringMap(ctx, spec.Headers); err != nil {
		return fmt.Errorf("resolve headers: %w", err)
	}
	if spec.Query, err = w.resolveStringMap(ctx, spec.Query); err != nil {
		return fmt.Errorf("resolve query: %w", err)
	}
	if spec.Body != nil {
		if spec.Body, err = deps.Resolver.Resolve(ctx, spec.Body); err != nil {
			return fmt.Errorf("resolve body: %w", err)
		}
	}
	return nil
}

func (w *WhenStep) resolveStringMap(ctx context.Context, in map[string]string) (map[string]string, error) {
	if len(in) == 0 {
		return in, nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		resolved, err := w.given.deps.Resolver.ResolveString(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = fmt.Sprintf("%v", resolved)
	}
	return out, nil
}

// applyAmbientHeaders layers suite-wide headers and the auth token under the
// test's own headers. Explicit headers win.
func (w *WhenStep) applyAmbientHeaders(spec *request.Specification) {
	deps := w.given.deps
	for k, v := range deps.GlobalHeaders {
		if _, ok := spec.Headers[k]; !ok {
			spec.Headers[k] = v
		}
	}
	if deps.Auth != nil && deps.Auth.AppliesTo(spec.ClientName) {
		if name, value, ok := deps.Auth.Header(); ok {
			if _, exists := spec.Headers[name]; !exists {
				spec.Headers[name] = value
			}
		}
	}
}

// fail records an execution failure as a failed test and returns the error.
func (t *ThenStep) fail(err error) error {
	g := t.given
	if g.deps.Collector != nil {
		rec := &report.TestRecord{
			Name:      g.name,
			Tags:      g.tags,
			StartedAt: t.startedAt,
			Duration:  time.Since(t.startedAt),
			Errors:    []string{err.Error()},
		}
		if t.spec != nil {
			rec.Method = t.spec.Method
			rec.URL = t.spec.URL
		}
		g.deps.Collector.Record(rec)
	}
	return err
}

package dsl

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/client"
	"github.com/ersinghrajkr/restified/pkg/errkind"
	"github.com/ersinghrajkr/restified/pkg/perf"
	"github.com/ersinghrajkr/restified/pkg/report"
	"github.com/ersinghrajkr/restified/pkg/request"
	"github.com/ersinghrajkr/restified/pkg/store"
	"github.com/ersinghrajkr/restified/pkg/template"
	"github.com/ersinghrajkr/restified/pkg/utility"
	"github.com/ersinghrajkr/restified/pkg/vars"
)

func newTestDeps(t *testing.T, baseURL string) *Deps {
	t.Helper()
	log := logger.Nop()
	st := vars.NewStore()
	utils := utility.NewRegistry(utility.Options{}, log)
	mgr := perf.NewManager(config.PerformanceConfig{}, log)
	t.Cleanup(mgr.Cleanup)

	reg := client.NewRegistry(true, mgr.Streamer(), log)
	reg.Add(client.NewHTTPClient(DefaultClientName, config.ClientConfig{BaseURL: baseURL}, mgr.Streamer(), log))
	t.Cleanup(func() { _ = reg.RemoveAll() })

	return &Deps{
		Vars:      st,
		Resolver:  template.NewResolver(st, utils, log, true),
		Perf:      mgr,
		Clients:   reg,
		Responses: store.NewResponses(),
		Collector: report.NewCollector(),
		Log:       log,
	}
}

func TestGetWithJSONPathAssertions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-Source", "api")
		io.WriteString(w, `{"id":1,"userId":1,"title":"hello"}`)
	}))
	defer srv.Close()
	deps := newTestDeps(t, srv.URL)

	then, err := Given(deps).
		Test("fetch post").
		When().
		Get(context.Background(), "/posts/1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	err = then.
		StatusCode(200).
		JSONPath("$.id", 1).
		JSONPath("$.userId", 1).
		JSONPath("$.title", "hello").
		Header("X-Request-Source", "api").
		HeaderExists("Content-Type").
		HeaderMatches("Content-Type", `^application/json`).
		BodyContains(`"title":"hello"`).
		ResponseTimeBelow(30 * time.Second).
		End()
	if err != nil {
		t.Fatalf("assertions: %v", err)
	}

	recs := deps.Collector.Records()
	if len(recs) != 1 || !recs[0].Passed {
		t.Fatalf("records = %+v", recs)
	}
	if recs[0].Name != "fetch post" || recs[0].Method != "GET" {
		t.Fatalf("record metadata = %+v", recs[0])
	}
}

func TestPostResolvesTemplates(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write(body)
	}))
	defer srv.Close()
	deps := newTestDeps(t, srv.URL)
	deps.Vars.SetGlobal("userId", 1)

	then, err := Given(deps).
		Test("create post").
		Var("postTitle", "Variable Test Post").
		ContentType("application/json").
		Body(map[string]interface{}{
			"title":  "{{postTitle}}",
			"body":   "Post for user {{userId}}",
			"userId": "{{userId}}",
		}).
		When().
		Post(context.Background(), "/posts")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	err = then.
		StatusCode(201).
		JSONPath("$.title", "Variable Test Post").
		JSONPath("$.body", "Post for user 1").
		End()
	if err != nil {
		t.Fatalf("assertions: %v", err)
	}

	// Sole-placeholder values keep the variable's type.
	if got, ok := received["userId"].(float64); !ok || got != 1 {
		t.Fatalf("userId sent as %T %v, want number 1", received["userId"], received["userId"])
	}
}

func TestExtractionIntoScope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Trace", "abc-123")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":101,"title":"T"}`)
	}))
	defer srv.Close()
	deps := newTestDeps(t, srv.URL)

	then, err := Given(deps).When().Post(context.Background(), "/posts")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := then.Extract("$.id", "newPostId").ExtractHeader("X-Trace", "traceId").End(); err != nil {
		t.Fatalf("assertions: %v", err)
	}

	got, ok := deps.Vars.Get("newPostId")
	if !ok {
		t.Fatal("newPostId not extracted")
	}
	if n, ok := got.(float64); !ok || n != 101 {
		t.Fatalf("newPostId = %T %v, want 101", got, got)
	}
	if trace, _ := deps.Vars.Get("traceId"); trace != "abc-123" {
		t.Fatalf("traceId = %v", trace)
	}
}

func TestFailedAssertionDoesNotShortCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":1}`)
	}))
	defer srv.Close()
	deps := newTestDeps(t, srv.URL)

	then, err := Given(deps).Test("ordering").When().Get(context.Background(), "/posts/1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	err = then.
		StatusCode(404).
		JSONPath("$.id", 1).
		JSONPath("$.missing").
		End()
	if !errors.Is(err, errkind.ErrAssertionFailed) {
		t.Fatalf("err = %v, want AssertionFailed", err)
	}

	recs := deps.Collector.Records()
	if len(recs) != 1 {
		t.Fatalf("records = %d", len(recs))
	}
	asserts := recs[0].Assertions
	if len(asserts) != 3 {
		t.Fatalf("all assertions should evaluate, got %d", len(asserts))
	}
	if asserts[0].Passed || !asserts[1].Passed || asserts[2].Passed {
		t.Fatalf("unexpected pass pattern: %+v", asserts)
	}
}

func TestJSONPathNullVersusMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"present":null}`)
	}))
	defer srv.Close()
	deps := newTestDeps(t, srv.URL)

	then, err := Given(deps).When().Get(context.Background(), "/thing")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := then.JSONPath("$.present").End(); err != nil {
		t.Fatalf("null value should satisfy a matcher-less assertion: %v", err)
	}

	then, err = Given(deps).When().Get(context.Background(), "/thing")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := then.JSONPath("$.absent").End(); !errors.Is(err, errkind.ErrAssertionFailed) {
		t.Fatalf("missing path should fail, got %v", err)
	}
}

func TestJSONSchemaValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":7,"name":"alice"}`)
	}))
	defer srv.Close()
	deps := newTestDeps(t, srv.URL)

	schema := `{
		"type": "object",
		"required": ["id", "name"],
		"properties": {
			"id":   {"type": "number"},
			"name": {"type": "string"}
		}
	}`
	then, err := Given(deps).When().Get(context.Background(), "/users/7")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := then.JSONSchema(schema).End(); err != nil {
		t.Fatalf("conforming body failed schema: %v", err)
	}

	bad := `{"type":"object","required":["email"]}`
	then, err = Given(deps).When().Get(context.Background(), "/users/7")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := then.JSONSchema(bad).End(); !errors.Is(err, errkind.ErrAssertionFailed) {
		t.Fatalf("nonconforming body should fail, got %v", err)
	}
}

func TestAmbientHeadersAndShorthands(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	deps := newTestDeps(t, srv.URL)
	deps.GlobalHeaders = map[string]string{
		"X-Suite":      "regression",
		"X-Overridden": "global",
	}

	then, err := Given(deps).
		Header("X-Overridden", "local").
		BearerToken("tok-9").
		When().
		Get(context.Background(), "/ping")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := then.StatusCode(204).End(); err != nil {
		t.Fatalf("assertions: %v", err)
	}

	if got.Get("X-Suite") != "regression" {
		t.Fatalf("global header missing: %v", got)
	}
	if got.Get("X-Overridden") != "local" {
		t.Fatalf("explicit header should win, got %q", got.Get("X-Overridden"))
	}
	if got.Get("Authorization") != "Bearer tok-9" {
		t.Fatalf("authorization = %q", got.Get("Authorization"))
	}
}

func TestBasicAuthShorthand(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()
	deps := newTestDeps(t, srv.URL)

	then, err := Given(deps).BasicAuth("admin", "s3cret").When().Get(context.Background(), "/")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := then.End(); err != nil {
		t.Fatalf("end: %v", err)
	}

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:s3cret"))
	if auth != want {
		t.Fatalf("authorization = %q, want %q", auth, want)
	}
}

func TestStatusInAndCustom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()
	deps := newTestDeps(t, srv.URL)

	then, err := Given(deps).When().Post(context.Background(), "/jobs")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	err = then.
		StatusIn(200, 201, 202).
		Custom("status is not an error", func(rec *request.Record) bool {
			return rec.Status < 400
		}).
		End()
	if err != nil {
		t.Fatalf("assertions: %v", err)
	}
}

func TestSaveResponseSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"state":"ready"}`)
	}))
	defer srv.Close()
	deps := newTestDeps(t, srv.URL)

	then, err := Given(deps).When().Get(context.Background(), "/state")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := then.SaveResponse("bootstrap").End(); err != nil {
		t.Fatalf("end: %v", err)
	}

	rec, ok := deps.Responses.Get("bootstrap")
	if !ok {
		t.Fatal("snapshot not stored")
	}
	body, ok := rec.Body.(map[string]interface{})
	if !ok || body["state"] != "ready" {
		t.Fatalf("stored body = %v", rec.Body)
	}
}

func TestUnresolvedTemplateFailsExecution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should never be dispatched")
	}))
	defer srv.Close()
	deps := newTestDeps(t, srv.URL)

	_, err := Given(deps).Test("bad template").When().Get(context.Background(), "/users/{{missingVar}}")
	if !errors.Is(err, errkind.ErrTemplateUnresolved) {
		t.Fatalf("err = %v, want TemplateUnresolved", err)
	}

	recs := deps.Collector.Records()
	if len(recs) != 1 || recs[0].Passed {
		t.Fatalf("failed execution should record a failed test, got %+v", recs)
	}
}

func TestMissingClientStrictMode(t *testing.T) {
	deps := newTestDeps(t, "http://127.0.0.1:0")

	_, err := Given(deps).UseClient("nonexistent").When().Get(context.Background(), "/")
	if !errors.Is(err, errkind.ErrMissingClient) {
		t.Fatalf("err = %v, want MissingClient", err)
	}
}

func TestBaseURLAndJSONBody(t *testing.T) {
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()
	deps := newTestDeps(t, "")

	then, err := Given(deps).
		BaseURL(srv.URL).
		JSONBody(map[string]interface{}{"name": "thing"}).
		When().
		Post(context.Background(), "/things")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := then.StatusCode(201).End(); err != nil {
		t.Fatalf("assertions: %v", err)
	}
	if contentType != "application/json" {
		t.Fatalf("content type = %q", contentType)
	}
}

func TestSensitiveHeadersMaskedInReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	deps := newTestDeps(t, srv.URL)

	then, err := Given(deps).
		Test("masking").
		BearerToken("super-secret").
		Header("X-Api-Key", "k-123").
		Header("X-Trace", "trace-1").
		When().
		Get(context.Background(), "/ping")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := then.End(); err != nil {
		t.Fatalf("end: %v", err)
	}

	rec := deps.Collector.Records()[0]
	if rec.RequestHeaders["Authorization"] != "********" {
		t.Fatalf("authorization not masked: %q", rec.RequestHeaders["Authorization"])
	}
	if rec.RequestHeaders["X-Api-Key"] != "********" {
		t.Fatalf("api key not masked: %q", rec.RequestHeaders["X-Api-Key"])
	}
	if rec.RequestHeaders["X-Trace"] != "trace-1" {
		t.Fatalf("benign header altered: %q", rec.RequestHeaders["X-Trace"])
	}
}

package restified

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/report"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Environment: config.EnvironmentConfig{Name: "test"},
		Clients: map[string]config.ClientConfig{
			"default": {Kind: "http", BaseURL: baseURL},
		},
		GlobalVariables: map[string]interface{}{"apiVersion": "v2"},
		GlobalHeaders:   map[string]string{"X-Env": "test"},
	}
}

func TestSuiteEndToEnd(t *testing.T) {
	var loginHits, authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			loginHits = "yes"
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"data":{"accessToken":"tok-42","user":{"id":7}}}`)
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/v2/orders":
			authHeader = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"orderId":555,"status":"created"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Auth = config.AuthConfig{
		Client:   "default",
		Endpoint: "/auth/login",
		Extractors: map[string]string{
			"token":  "$.data.accessToken",
			"userId": "$.data.user.id",
		},
	}
	cfg.HealthChecks = []config.HealthCheckConfig{
		{Name: "api", Client: "default", Endpoint: "/health"},
	}

	s, err := New(cfg, WithLogger(logger.Nop()), WithReporters())
	if err != nil {
		t.Fatalf("new suite: %v", err)
	}
	ctx := context.Background()
	defer s.Cleanup(ctx)

	if err := s.BeforeAll(ctx); err != nil {
		t.Fatalf("before all: %v", err)
	}
	if loginHits == "" {
		t.Fatal("login endpoint never called")
	}
	if s.Degraded() {
		t.Fatal("healthy suite marked degraded")
	}
	if v, _ := s.Vars().Get("userId"); v != float64(7) {
		t.Fatalf("userId = %v", v)
	}

	then, err := s.Given().
		Test("create order").
		Body(map[string]interface{}{"version": "{{apiVersion}}"}).
		When().
		Post(ctx, "/{{apiVersion}}/orders")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	err = then.
		StatusCode(201).
		JSONPath("$.orderId", 555).
		Extract("$.orderId", "orderId").
		End()
	if err != nil {
		t.Fatalf("assertions: %v", err)
	}
	s.AfterEach()

	if authHeader != "Bearer tok-42" {
		t.Fatalf("auth header = %q", authHeader)
	}
	if v, ok := s.Vars().Get("orderId"); !ok || v != float64(555) {
		t.Fatalf("orderId = %v, %v", v, ok)
	}

	sum := s.Collector().Summarize()
	if sum.Total != 1 || sum.Passed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestSuiteAfterEachClearsLocalScope(t *testing.T) {
	s, err := New(testConfig("http://127.0.0.1:0"), WithLogger(logger.Nop()), WithReporters())
	if err != nil {
		t.Fatalf("new suite: %v", err)
	}
	defer s.Cleanup(context.Background())

	s.Vars().SetGlobal("x", "g")
	s.Vars().SetLocal("x", "l")
	if v, _ := s.Vars().Get("x"); v != "l" {
		t.Fatalf("local should shadow global, got %v", v)
	}
	s.AfterEach()
	if v, _ := s.Vars().Get("x"); v != "g" {
		t.Fatalf("after clear, got %v", v)
	}
}

func TestSuiteDegradedOnAuthFailurePermissive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Auth = config.AuthConfig{Client: "default", Endpoint: "/auth/login"}

	s, err := New(cfg, WithLogger(logger.Nop()), WithReporters())
	if err != nil {
		t.Fatalf("new suite: %v", err)
	}
	defer s.Cleanup(context.Background())

	if err := s.BeforeAll(context.Background()); err != nil {
		t.Fatalf("permissive mode should not abort: %v", err)
	}
	if !s.Degraded() {
		t.Fatal("suite should be degraded")
	}
}

func TestSuiteStrictAuthFailureAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Auth = config.AuthConfig{Client: "default", Endpoint: "/auth/login"}
	cfg.Graceful.Strict = true

	s, err := New(cfg, WithLogger(logger.Nop()), WithReporters())
	if err != nil {
		t.Fatalf("new suite: %v", err)
	}
	defer s.Cleanup(context.Background())

	if err := s.BeforeAll(context.Background()); err == nil {
		t.Fatal("strict mode should abort on auth failure")
	}
}

func TestSuiteCleanupFlushesReports(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	jr := report.NewJSONReporter(dir, "run.json", "suite", "")
	s, err := New(testConfig(srv.URL), WithLogger(logger.Nop()), WithReporters(jr))
	if err != nil {
		t.Fatalf("new suite: %v", err)
	}

	ctx := context.Background()
	then, err := s.Given().Test("ping").When().Get(ctx, "/ping")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := then.StatusCode(200).End(); err != nil {
		t.Fatalf("assertions: %v", err)
	}
	if err := s.Cleanup(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "run.json"))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var doc report.JSONReport
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if doc.Total != 1 || doc.Passed != 1 {
		t.Fatalf("doc = %+v", doc)
	}
}

func TestLoadFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "restified.yaml")
	yaml := `
environment:
  name: staging
clients:
  default:
    kind: http
    baseURL: http://127.0.0.1:0
globalVariables:
  apiVersion: v1
gracefulMode:
  strict: false
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	s, err := Load(path, WithLogger(logger.Nop()), WithReporters())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer s.Cleanup(context.Background())

	if v, _ := s.Vars().Get("apiVersion"); v != "v1" {
		t.Fatalf("apiVersion = %v", v)
	}
	if got := s.Clients().Names(); len(got) != 1 || got[0] != "default" {
		t.Fatalf("clients = %v", got)
	}
}

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/client"
	"github.com/ersinghrajkr/restified/pkg/vars"
)

func loginServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			w.Write([]byte(body))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func setupRegistry(t *testing.T, baseURL string) *client.Registry {
	t.Helper()
	r := client.NewRegistry(true, nil, logger.Nop())
	if err := r.FromConfig(map[string]config.ClientConfig{
		"api": {Kind: client.KindHTTP, BaseURL: baseURL},
	}); err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

func TestLoginExtractsVariables(t *testing.T) {
	srv := loginServer(t, 200, `{"data": {"accessToken": "tok-123", "user": {"id": 42}}}`)
	defer srv.Close()

	registry := setupRegistry(t, srv.URL)
	store := vars.NewStore()
	o := NewOrchestrator(config.AuthConfig{
		Client:   "api",
		Endpoint: "/auth/login",
		Body:     map[string]interface{}{"username": "u", "password": "p"},
		Extractors: map[string]string{
			"token":  "$.data.accessToken",
			"userId": "data.user.id",
		},
	}, registry, store, logger.Nop())

	if err := o.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	if tok, _ := store.Get("token"); tok != "tok-123" {
		t.Fatalf("token variable: %v", tok)
	}
	if id, _ := store.Get("userId"); id != float64(42) {
		t.Fatalf("userId variable: %v", id)
	}

	name, value, ok := o.Header()
	if !ok {
		t.Fatalf("header must be available after login")
	}
	if name != "Authorization" || value != "Bearer tok-123" {
		t.Fatalf("header: %s %s", name, value)
	}
}

func TestLoginFallbackToken(t *testing.T) {
	srv := loginServer(t, 401, `{"error": "bad credentials"}`)
	defer srv.Close()

	registry := setupRegistry(t, srv.URL)
	store := vars.NewStore()
	o := NewOrchestrator(config.AuthConfig{
		Client:        "api",
		Endpoint:      "/auth/login",
		Extractors:    map[string]string{"token": "$.data.accessToken"},
		FallbackToken: "fallback-tok",
	}, registry, store, logger.Nop())

	if err := o.Login(context.Background()); err != nil {
		t.Fatalf("fallback must absorb the failure: %v", err)
	}
	if o.Token() != "fallback-tok" {
		t.Fatalf("token: %s", o.Token())
	}
	if _, value, _ := o.Header(); value != "Bearer fallback-tok" {
		t.Fatalf("header: %s", value)
	}
}

func TestLoginFailureWithoutFallback(t *testing.T) {
	srv := loginServer(t, 401, `{}`)
	defer srv.Close()

	o := NewOrchestrator(config.AuthConfig{
		Client:     "api",
		Endpoint:   "/auth/login",
		Extractors: map[string]string{"token": "$.t"},
	}, setupRegistry(t, srv.URL), vars.NewStore(), logger.Nop())

	if err := o.Login(context.Background()); err == nil {
		t.Fatalf("login failure without fallback must error")
	}
}

func TestLoginRunsOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token": "t"}`))
	}))
	defer srv.Close()

	o := NewOrchestrator(config.AuthConfig{
		Client:     "api",
		Endpoint:   "/auth/login",
		Extractors: map[string]string{"token": "$.token"},
	}, setupRegistry(t, srv.URL), vars.NewStore(), logger.Nop())

	for i := 0; i < 3; i++ {
		if err := o.Login(context.Background()); err != nil {
			t.Fatalf("login: %v", err)
		}
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("login must run once, hits=%d", hits)
	}
}

func TestAppliesTo(t *testing.T) {
	cfg := config.AuthConfig{Client: "api", Endpoint: "/login"}
	o := NewOrchestrator(cfg, nil, vars.NewStore(), logger.Nop())
	if !o.AppliesTo("anything") {
		t.Fatalf("empty auto-apply list means all clients")
	}

	cfg.AutoApplyToClients = []string{"api", "admin"}
	o = NewOrchestrator(cfg, nil, vars.NewStore(), logger.Nop())
	if !o.AppliesTo("admin") || o.AppliesTo("other") {
		t.Fatalf("auto-apply list must filter clients")
	}
}

func TestHealthChecks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/ready":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	registry := setupRegistry(t, srv.URL)
	results := RunHealthChecks(context.Background(), []config.HealthCheckConfig{
		{Name: "liveness", Client: "api", Endpoint: "/health"},
		{Name: "readiness", Client: "api", Endpoint: "/ready", ExpectedStatus: 200},
		{Name: "teapot", Client: "api", Endpoint: "/brew", ExpectedStatus: 404},
	}, registry, logger.Nop())

	if len(results) != 3 {
		t.Fatalf("results: %d", len(results))
	}
	if !results[0].Healthy() {
		t.Fatalf("liveness should pass: %v", results[0].Err)
	}
	if results[1].Healthy() {
		t.Fatalf("readiness should fail on 503")
	}
	if !results[2].Healthy() {
		t.Fatalf("custom expected status should pass: %v", results[2].Err)
	}
}

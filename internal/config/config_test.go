package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "restified.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment:
  name: staging
clients:
  api:
    baseURL: https://api.example.com
`)
	cfg, err := LoadConfig(path, viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Environment.Name != "staging" {
		t.Fatalf("environment = %q", cfg.Environment.Name)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("default log level = %q", cfg.Log.Level)
	}
	api := cfg.Clients["api"]
	if api.Kind != "http" {
		t.Fatalf("default client kind = %q", api.Kind)
	}
	if api.Timeout != 30*time.Second {
		t.Fatalf("default client timeout = %v", api.Timeout)
	}
	if api.Retry.MaxAttempts != 3 {
		t.Fatalf("default retry attempts = %d", api.Retry.MaxAttempts)
	}
	if !cfg.Performance.Caching.Enabled || cfg.Performance.Caching.Strategy != "lru" {
		t.Fatalf("cache defaults = %+v", cfg.Performance.Caching)
	}
	if cfg.Performance.Caching.DefaultTTL != 5*time.Minute {
		t.Fatalf("cache TTL = %v", cfg.Performance.Caching.DefaultTTL)
	}
	if cfg.Auth.AuthHeaderName != "Authorization" || cfg.Auth.Method != "POST" {
		t.Fatalf("auth defaults = %+v", cfg.Auth)
	}
	if cfg.Graceful.Strict {
		t.Fatal("strict should default to false")
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	prev, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(prev)

	cfg, err := LoadConfig("", viper.New())
	if err != nil {
		t.Fatalf("load without file: %v", err)
	}
	if cfg.Log.Level != "info" || !cfg.Reporting.Enabled {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestReservedEnvironmentOverrides(t *testing.T) {
	t.Setenv("RESTIFIED_STRICT_MODE", "true")
	t.Setenv("RESTIFIED_SILENT_FAILURES", "1")
	t.Setenv("GENERATE_REPORTS", "false")
	t.Setenv("REPORT_OUTPUT_DIR", "/tmp/custom-reports")
	t.Setenv("REPORT_TITLE", "Nightly Run")

	path := writeConfig(t, `
clients:
  api:
    baseURL: https://api.example.com
gracefulMode:
  strict: false
`)
	cfg, err := LoadConfig(path, viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !cfg.Graceful.Strict {
		t.Fatal("RESTIFIED_STRICT_MODE should win over the file")
	}
	if !cfg.Graceful.SilentFailures {
		t.Fatal("RESTIFIED_SILENT_FAILURES not applied")
	}
	if cfg.Reporting.Enabled {
		t.Fatal("GENERATE_REPORTS=false not applied")
	}
	if cfg.Reporting.OutputDir != "/tmp/custom-reports" || cfg.Reporting.Title != "Nightly Run" {
		t.Fatalf("reporting overrides = %+v", cfg.Reporting)
	}
}

func TestEnvironmentVariablesExported(t *testing.T) {
	path := writeConfig(t, `
clients:
  api:
    baseURL: https://api.example.com
environmentVariables:
  RESTIFIED_TEST_EXPORT: exported-value
`)
	t.Setenv("RESTIFIED_TEST_EXPORT", "")
	if _, err := LoadConfig(path, viper.New()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("RESTIFIED_TEST_EXPORT"); got != "exported-value" {
		t.Fatalf("exported env = %q", got)
	}
}

func TestValidateRejections(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig(writeConfig(t, `
clients:
  api:
    baseURL: https://api.example.com
`), viper.New())
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Log.Level = "verbose" },
			want:   "invalid log level",
		},
		{
			name:   "http client without base url",
			mutate: func(c *Config) { c.Clients["api"] = ClientConfig{Kind: "http"} },
			want:   "baseURL cannot be empty",
		},
		{
			name:   "unknown client kind",
			mutate: func(c *Config) { c.Clients["api"] = ClientConfig{Kind: "grpc", BaseURL: "x"} },
			want:   "kind must be",
		},
		{
			name: "auth references unknown client",
			mutate: func(c *Config) {
				c.Auth.Client = "missing"
				c.Auth.Endpoint = "/login"
			},
			want: "not configured",
		},
		{
			name:   "bad cache strategy",
			mutate: func(c *Config) { c.Performance.Caching.Strategy = "mru" },
			want:   "cache strategy",
		},
		{
			name:   "bad report format",
			mutate: func(c *Config) { c.Reporting.Formats = []string{"pdf"} },
			want:   "unsupported report format",
		},
		{
			name: "health check without client",
			mutate: func(c *Config) {
				c.HealthChecks = []HealthCheckConfig{{Name: "api"}}
			},
			want: "client cannot be empty",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestValidateAcceptsLoadedDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
clients:
  api:
    baseURL: https://api.example.com
  graph:
    kind: graphql
    endpoint: https://api.example.com/graphql
  db:
    kind: database
    type: sqlite
`), viper.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

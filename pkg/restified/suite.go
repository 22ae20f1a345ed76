// Package restified assembles the framework into a single suite facade.
// A Suite owns the variable store, the client registry, the performance
// manager, the auth orchestrator, and the reporters, and hands out test
// chains through Given.
package restified

import (
	"context"
	"fmt"
	"os"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/auth"
	"github.com/ersinghrajkr/restified/pkg/client"
	"github.com/ersinghrajkr/restified/pkg/dsl"
	"github.com/ersinghrajkr/restified/pkg/errkind"
	"github.com/ersinghrajkr/restified/pkg/perf"
	"github.com/ersinghrajkr/restified/pkg/report"
	"github.com/ersinghrajkr/restified/pkg/store"
	"github.com/ersinghrajkr/restified/pkg/template"
	"github.com/ersinghrajkr/restified/pkg/utility"
	"github.com/ersinghrajkr/restified/pkg/vars"
)

// Suite wires the framework services for one test run.
type Suite struct {
	cfg   *config.Config
	log   logger.Logger
	utils *utility.Registry
	deps  *dsl.Deps

	console   *report.ConsoleReporter
	degraded  bool
	healthErr error
}

// Option customizes suite construction.
type Option func(*options)

type options struct {
	log       logger.Logger
	reporters []report.Reporter
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithReporters replaces the reporters built from the configuration.
func WithReporters(reporters ...report.Reporter) Option {
	return func(o *options) { o.reporters = reporters }
}

// New builds a suite from a validated configuration.
func New(cfg *config.Config, opts ...Option) (*Suite, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil configuration", errkind.ErrConfigInvalid)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log
	if log == nil {
		log = logger.NewLogger(&cfg.Log)
	}

	for name, value := range cfg.EnvironmentVariables {
		if err := os.Setenv(name, value); err != nil {
			return nil, fmt.Errorf("set environment variable %s: %w", name, err)
		}
	}

	st := vars.NewStore()
	for name, value := range cfg.GlobalVariables {
		st.SetGlobal(name, value)
	}

	utils := utility.NewRegistry(utility.Options{ValidateArgs: cfg.Graceful.Strict}, log)
	resolver := template.NewResolver(st, utils, log, cfg.Graceful.Strict)

	mgr := perf.NewManager(cfg.Performance, log)
	registry := client.NewRegistry(cfg.Graceful.Strict, mgr.Streamer(), log)
	if err := registry.FromConfig(cfg.Clients); err != nil {
		mgr.Cleanup()
		return nil, err
	}

	var console *report.ConsoleReporter
	reporters := o.reporters
	if reporters == nil {
		reporters = report.FromConfig(cfg.Reporting)
	}
	for _, r := range reporters {
		if c, ok := r.(*report.ConsoleReporter); ok {
			console = c
		}
	}

	s := &Suite{
		cfg:     cfg,
		log:     log,
		utils:   utils,
		console: console,
		deps: &dsl.Deps{
			Vars:          st,
			Resolver:      resolver,
			Perf:          mgr,
			Clients:       registry,
			Auth:          auth.NewOrchestrator(cfg.Auth, registry, st, log),
			Responses:     store.NewResponses(),
			Collector:     report.NewCollector(reporters...),
			Log:           log,
			GlobalHeaders: cfg.GlobalHeaders,
		},
	}

	log.Info("Suite initialized",
		"environment", cfg.Environment.Name,
		"clients", registry.Names(),
		"strict", cfg.Graceful.Strict)
	return s, nil
}

// Load reads, validates, and assembles a suite from a configuration file.
func Load(configPath string, opts ...Option) (*Suite, error) {
	cfg, err := config.LoadConfig(configPath, nil)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		if cfg.Graceful.Strict {
			return nil, fmt.Errorf("%w: %v", errkind.ErrConfigInvalid, err)
		}
	}
	return New(cfg, opts...)
}

// BeforeAll performs the startup sequence: authentication, then health
// checks. In permissive mode failures degrade the suite instead of
// aborting it.
func (s *Suite) BeforeAll(ctx context.Context) error {
	if err := s.deps.Auth.Login(ctx); err != nil {
		if s.cfg.Graceful.Strict {
			return fmt.Errorf("authentication: %w", err)
		}
		s.degraded = true
		s.log.Warn("Authentication failed, suite degraded", "error", err.Error())
	}

	for _, result := range auth.RunHealthChecks(ctx, s.cfg.HealthChecks, s.deps.Clients, s.log) {
		if result.Healthy() {
			continue
		}
		err := fmt.Errorf("health check %s: %w", result.Name, result.Err)
		if s.cfg.Graceful.Strict {
			return err
		}
		s.degraded = true
		s.healthErr = err
	}
	return nil
}

// Given opens a new test chain.
func (s *Suite) Given() *dsl.GivenStep {
	return dsl.Given(s.deps)
}

// AfterEach clears per-test variables. Call it between tests.
func (s *Suite) AfterEach() {
	s.deps.Vars.ClearLocal()
}

// Degraded reports whether startup continued past a failure in
// permissive mode.
func (s *Suite) Degraded() bool { return s.degraded }

// StartupError returns the health problem that degraded the suite, when
// there was one.
func (s *Suite) StartupError() error { return s.healthErr }

// Vars exposes the variable store for setup code.
func (s *Suite) Vars() *vars.Store { return s.deps.Vars }

// Utilities exposes the utility registry for plugin registration.
func (s *Suite) Utilities() *utility.Registry { return s.utils }

// Clients exposes the client registry.
func (s *Suite) Clients() *client.Registry { return s.deps.Clients }

// Responses exposes the named response snapshots.
func (s *Suite) Responses() *store.Responses { return s.deps.Responses }

// Performance exposes the performance manager for metrics and cache
// invalidation.
func (s *Suite) Performance() *perf.Manager { return s.deps.Perf }

// Collector exposes the report collector.
func (s *Suite) Collector() *report.Collector { return s.deps.Collector }

// Cleanup tears the suite down: extracted variables, snapshots, caches,
// batch timers, client connections, then report flush. The first error is
// returned after all steps have run.
func (s *Suite) Cleanup(ctx context.Context) error {
	s.deps.Vars.ClearLocal()
	s.deps.Vars.ClearExtracted()
	s.deps.Responses.Clear()
	s.deps.Perf.Cleanup()

	var firstErr error
	if err := s.deps.Clients.RemoveAll(); err != nil {
		firstErr = err
	}
	if s.console != nil {
		s.console.PrintSummary(s.deps.Collector.Summarize())
	}
	if err := s.deps.Collector.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

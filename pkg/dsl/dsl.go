// Package dsl implements the fluent given/when/then request builder. A
// GivenStep accumulates request context, a WhenStep executes the request
// through the performance manager, and a ThenStep evaluates assertions and
// extractions against the response record.
package dsl

import (
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/auth"
	"github.com/ersinghrajkr/restified/pkg/client"
	"github.com/ersinghrajkr/restified/pkg/perf"
	"github.com/ersinghrajkr/restified/pkg/report"
	"github.com/ersinghrajkr/restified/pkg/request"
	"github.com/ersinghrajkr/restified/pkg/store"
	"github.com/ersinghrajkr/restified/pkg/template"
	"github.com/ersinghrajkr/restified/pkg/vars"
)

// Deps bundles the services a test chain needs. The suite facade owns one
// Deps value and hands it to every Given call.
type Deps struct {
	Vars      *vars.Store
	Resolver  *template.Resolver
	Perf      *perf.Manager
	Clients   *client.Registry
	Auth      *auth.Orchestrator
	Responses *store.Responses
	Collector *report.Collector
	Log       logger.Logger

	// GlobalHeaders are applied to every request before per-test headers.
	GlobalHeaders map[string]string
}

func (d *Deps) logger() logger.Logger {
	if d.Log != nil {
		return d.Log
	}
	return logger.Nop()
}

// Given opens a new test chain.
func Given(deps *Deps) *GivenStep {
	return &GivenStep{
		deps: deps,
		spec: &request.Specification{
			Headers: map[string]string{},
			Query:   map[string]string{},
		},
	}
}

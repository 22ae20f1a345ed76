package auth

import (
	"context"
	"fmt"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/client"
	"github.com/ersinghrajkr/restified/pkg/request"
)

// HealthResult is the outcome of one startup probe.
type HealthResult struct {
	Name   string
	Status int
	Err    error
}

// Healthy reports whether the probe passed.
func (r HealthResult) Healthy() bool { return r.Err == nil }

// RunHealthChecks executes every configured probe sequentially and returns
// all results. A probe fails when the request errors or the status differs
// from the expected one (200 when unspecified).
func RunHealthChecks(ctx context.Context, checks []config.HealthCheckConfig, registry *client.Registry, log logger.Logger) []HealthResult {
	results := make([]HealthResult, 0, len(checks))
	for _, check := range checks {
		result := runCheck(ctx, check, registry)
		if result.Err != nil {
			log.Warn("Health check failed",
				"name", check.Name,
				"client", check.Client,
				"endpoint", check.Endpoint,
				"error", result.Err.Error(),
			)
		} else {
			log.Debug("Health check passed", "name", check.Name, "status", result.Status)
		}
		results = append(results, result)
	}
	return results
}

func runCheck(ctx context.Context, check config.HealthCheckConfig, registry *client.Registry) HealthResult {
	result := HealthResult{Name: check.Name}

	httpClient, err := registry.HTTP(check.Client)
	if err != nil {
		result.Err = err
		return result
	}
	rec, err := httpClient.Execute(ctx, &request.Specification{
		Method:     "GET",
		URL:        check.Endpoint,
		ClientName: check.Client,
	})
	if err != nil {
		result.Err = err
		return result
	}
	result.Status = rec.Status

	expected := check.ExpectedStatus
	if expected == 0 {
		expected = 200
	}
	if rec.Status != expected {
		result.Err = fmt.Errorf("health check %q: status %d, expected %d", check.Name, rec.Status, expected)
	}
	return result
}

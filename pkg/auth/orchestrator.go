// Package auth runs the suite-level authentication flow: one login request
// at startup, variable extraction from its response, and bearer header
// propagation to the clients that opted in.
package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PaesslerAG/jsonpath"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/client"
	"github.com/ersinghrajkr/restified/pkg/errkind"
	"github.com/ersinghrajkr/restified/pkg/request"
	"github.com/ersinghrajkr/restified/pkg/vars"
)

// TokenVariable is the extractor key that feeds the propagated auth header.
const TokenVariable = "token"

// Orchestrator drives the configured login flow.
type Orchestrator struct {
	cfg      config.AuthConfig
	registry *client.Registry
	store    *vars.Store
	log      logger.Logger

	mu       sync.Mutex
	token    string
	loggedIn bool
}

// NewOrchestrator builds an orchestrator over the client registry and the
// variable store.
func NewOrchestrator(cfg config.AuthConfig, registry *client.Registry, store *vars.Store, log logger.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, registry: registry, store: store, log: log}
}

// Login executes the login request and extracts the configured variables
// into the global scope. When the flow fails and a fallback token is
// configured, the fallback is used and the failure downgraded to a warning.
func (o *Orchestrator) Login(ctx context.Context) error {
	if !o.cfg.Enabled() {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loggedIn {
		return nil
	}

	rec, err := o.performLogin(ctx)
	if err != nil {
		return o.fallback(err)
	}

	if err := o.extract(rec); err != nil {
		return o.fallback(err)
	}
	o.loggedIn = true
	o.log.Info("Authentication flow completed",
		"client", o.cfg.Client,
		"endpoint", o.cfg.Endpoint,
		"extracted", len(o.cfg.Extractors),
	)
	return nil
}

func (o *Orchestrator) performLogin(ctx context.Context) (*request.Record, error) {
	httpClient, err := o.registry.HTTP(o.cfg.Client)
	if err != nil {
		return nil, err
	}

	method := o.cfg.Method
	if method == "" {
		method = "POST"
	}
	rec, err := httpClient.Execute(ctx, &request.Specification{
		Method:     method,
		URL:        o.cfg.Endpoint,
		Body:       o.cfg.Body,
		ClientName: o.cfg.Client,
	})
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}
	if rec.Status >= 400 {
		return nil, fmt.Errorf("login returned status %d", rec.Status)
	}
	return rec, nil
}

func (o *Orchestrator) extract(rec *request.Record) error {
	for name, path := range o.cfg.Extractors {
		value, err := jsonpath.Get(normalizePath(path), rec.Body)
		if err != nil {
			return fmt.Errorf("extract %q from login response: %v: %w", name, err, errkind.ErrExtractionFailed)
		}
		o.store.SetGlobal(name, value)
		if name == TokenVariable {
			o.token = fmt.Sprintf("%v", value)
		}
	}
	if o.token == "" && len(o.cfg.Extractors) > 0 {
		o.log.Warn("Login extractors ran but none was named 'token', no header will be propagated")
	}
	return nil
}

// fallback downgrades a login failure to a warning when a fallback token is
// configured.
func (o *Orchestrator) fallback(cause error) error {
	if o.cfg.FallbackToken == "" {
		return cause
	}
	o.token = o.cfg.FallbackToken
	o.store.SetGlobal(TokenVariable, o.cfg.FallbackToken)
	o.loggedIn = true
	o.log.Warn("Authentication flow failed, using fallback token", "error", cause.Error())
	return nil
}

// Header returns the propagated header name and value, when a token exists.
func (o *Orchestrator) Header() (string, string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.token == "" {
		return "", "", false
	}

	name := o.cfg.AuthHeaderName
	if name == "" {
		name = "Authorization"
	}
	scheme := o.cfg.AuthScheme
	if scheme == "" {
		scheme = "Bearer"
	}
	return name, scheme + " " + o.token, true
}

// AppliesTo reports whether the auth header propagates to the named client.
// An empty AutoApplyToClients list and the literal entry "all" both apply to
// every client.
func (o *Orchestrator) AppliesTo(clientName string) bool {
	if !o.cfg.Enabled() {
		return false
	}
	if len(o.cfg.AutoApplyToClients) == 0 {
		return true
	}
	for _, name := range o.cfg.AutoApplyToClients {
		if name == "all" || name == clientName {
			return true
		}
	}
	return false
}

// Token returns the current token, fallback included.
func (o *Orchestrator) Token() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.token
}

// normalizePath accepts both "$.data.token" and "data.token" forms.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "$") {
		return path
	}
	return "$." + path
}

package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/errkind"
	"github.com/ersinghrajkr/restified/pkg/perf"
	"github.com/ersinghrajkr/restified/pkg/request"
)

// Client kinds.
const (
	KindHTTP      = "http"
	KindGraphQL   = "graphql"
	KindWebSocket = "websocket"
	KindDatabase  = "database"
)

// Client is the common surface of every registered client.
type Client interface {
	Name() string
	Kind() string
	HealthCheck(ctx context.Context) error
	Close() error
}

// Registry holds named clients. In strict mode a lookup for an unknown name
// fails; otherwise it returns a fallback client that responds synthetically
// so the remaining assertions can still report.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client
	strict   bool
	streamer *perf.Streamer
	log      logger.Logger
}

// NewRegistry builds an empty registry. streamer is handed to HTTP clients
// for streamed responses and may be nil.
func NewRegistry(strict bool, streamer *perf.Streamer, log logger.Logger) *Registry {
	return &Registry{
		clients:  make(map[string]Client),
		strict:   strict,
		streamer: streamer,
		log:      log,
	}
}

// FromConfig instantiates every configured client by kind.
func (r *Registry) FromConfig(clients map[string]config.ClientConfig) error {
	for name, cfg := range clients {
		switch cfg.Kind {
		case KindHTTP, "":
			r.Add(NewHTTPClient(name, cfg, r.streamer, r.log))
		case KindGraphQL:
			r.Add(NewGraphQLClient(name, cfg, r.log))
		case KindWebSocket:
			r.Add(NewWebSocketClient(name, cfg, r.log))
		case KindDatabase:
			db, err := NewDatabaseClient(name, cfg, r.log)
			if err != nil {
				return fmt.Errorf("client %q: %w", name, err)
			}
			r.Add(db)
		default:
			return fmt.Errorf("client %q: unknown kind %q: %w", name, cfg.Kind, errkind.ErrConfigInvalid)
		}
	}
	return nil
}

// Add registers a client, replacing any client of the same name.
func (r *Registry) Add(c Client) {
	r.mu.Lock()
	r.clients[c.Name()] = c
	r.mu.Unlock()
}

// Get returns the client for name. Unknown names fail in strict mode and
// produce a warned fallback client otherwise.
func (r *Registry) Get(name string) (Client, error) {
	r.mu.RLock()
	c, ok := r.clients[name]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}
	if r.strict {
		return nil, fmt.Errorf("client %q: %w", name, errkind.ErrMissingClient)
	}
	r.log.Warn("Unknown client requested, serving fallback", "client", name)
	return newFallbackClient(name, r.log), nil
}

// HTTPExecutor is what request execution needs from an HTTP-shaped client.
// The fallback client satisfies it with synthetic responses.
type HTTPExecutor interface {
	Execute(ctx context.Context, spec *request.Specification) (*request.Record, error)
}

// HTTP returns the named client as an HTTP executor.
func (r *Registry) HTTP(name string) (HTTPExecutor, error) {
	c, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	httpClient, ok := c.(HTTPExecutor)
	if !ok {
		return nil, fmt.Errorf("client %q is %s, not http", name, c.Kind())
	}
	return httpClient, nil
}

// GraphQL returns the named client as a GraphQL client.
func (r *Registry) GraphQL(name string) (*GraphQLClient, error) {
	c, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	gql, ok := c.(*GraphQLClient)
	if !ok {
		return nil, fmt.Errorf("client %q is %s, not graphql", name, c.Kind())
	}
	return gql, nil
}

// WebSocket returns the named client as a WebSocket client.
func (r *Registry) WebSocket(name string) (*WebSocketClient, error) {
	c, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	ws, ok := c.(*WebSocketClient)
	if !ok {
		return nil, fmt.Errorf("client %q is %s, not websocket", name, c.Kind())
	}
	return ws, nil
}

// Database returns the named client as a database client.
func (r *Registry) Database(name string) (*DatabaseClient, error) {
	c, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	db, ok := c.(*DatabaseClient)
	if !ok {
		return nil, fmt.Errorf("client %q is %s, not database", name, c.Kind())
	}
	return db, nil
}

// Names lists the registered client names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.clients))
	for name := range r.clients {
		out = append(out, name)
	}
	return out
}

// HealthCheckAll probes every client and collects failures by name.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	clients := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	failures := make(map[string]error)
	for _, c := range clients {
		if err := c.HealthCheck(ctx); err != nil {
			failures[c.Name()] = err
		}
	}
	return failures
}

// RemoveAll closes and unregisters every client.
func (r *Registry) RemoveAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, c := range r.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close client %q: %w", name, err)
		}
		delete(r.clients, name)
	}
	return firstErr
}

// fallbackClient satisfies lookups for unknown names in permissive mode. It
// never performs I/O; every execution yields a synthetic 503 record so the
// failure is visible in assertions and reports without panicking the run.
type fallbackClient struct {
	name string
	log  logger.Logger
}

func newFallbackClient(name string, log logger.Logger) *fallbackClient {
	return &fallbackClient{name: name, log: log}
}

func (c *fallbackClient) Name() string { return c.name }
func (c *fallbackClient) Kind() string { return KindHTTP }

func (c *fallbackClient) HealthCheck(ctx context.Context) error {
	return fmt.Errorf("client %q: %w", c.name, errkind.ErrMissingClient)
}

func (c *fallbackClient) Close() error { return nil }

// Execute returns the synthetic record.
func (c *fallbackClient) Execute(ctx context.Context, spec *request.Specification) (*request.Record, error) {
	c.log.Warn("Fallback client served synthetic response",
		"client", c.name,
		"method", spec.Method,
		"url", spec.URL,
	)
	return request.NewRecord(spec, 503, "503 Service Unavailable (fallback)",
		map[string]string{"x-fallback-client": c.name}, nil, 0), nil
}

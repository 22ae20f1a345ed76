package client

import (
	"context"
	"fmt"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/request"
)

// GraphQLClient posts queries and mutations to one GraphQL endpoint. It
// rides on an HTTPClient so retries, TLS and timeouts behave the same.
type GraphQLClient struct {
	name string
	cfg  config.ClientConfig
	http *HTTPClient
	log  logger.Logger
}

// NewGraphQLClient builds a GraphQL client for cfg.Endpoint.
func NewGraphQLClient(name string, cfg config.ClientConfig, log logger.Logger) *GraphQLClient {
	return &GraphQLClient{
		name: name,
		cfg:  cfg,
		http: NewHTTPClient(name, cfg, nil, log),
		log:  log,
	}
}

// Name returns the registry name of the client.
func (c *GraphQLClient) Name() string { return c.name }

// Kind returns "graphql".
func (c *GraphQLClient) Kind() string { return KindGraphQL }

// Query executes a GraphQL query or mutation. GraphQL-level errors do not
// fail the call; they live in the record body for assertions.
func (c *GraphQLClient) Query(ctx context.Context, query string, variables map[string]interface{}, operationName string) (*request.Record, error) {
	payload := map[string]interface{}{"query": query}
	if len(variables) > 0 {
		payload["variables"] = variables
	}
	if operationName != "" {
		payload["operationName"] = operationName
	}

	spec := &request.Specification{
		Method:     "POST",
		URL:        c.cfg.Endpoint,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       payload,
		ClientName: c.name,
	}
	rec, err := c.http.Execute(ctx, spec)
	if err != nil {
		return nil, err
	}

	if errs := GraphQLErrors(rec); len(errs) > 0 {
		c.log.Debug("GraphQL response carries errors", "client", c.name, "count", len(errs))
	}
	return rec, nil
}

// GraphQLErrors extracts the errors array from a GraphQL response record.
func GraphQLErrors(rec *request.Record) []interface{} {
	body, ok := rec.Body.(map[string]interface{})
	if !ok {
		return nil
	}
	errs, ok := body["errors"].([]interface{})
	if !ok {
		return nil
	}
	return errs
}

// HealthCheck sends a minimal __typename query.
func (c *GraphQLClient) HealthCheck(ctx context.Context) error {
	rec, err := c.Query(ctx, "{ __typename }", nil, "")
	if err != nil {
		return err
	}
	if rec.Status >= 400 {
		return fmt.Errorf("graphql health check returned status %d", rec.Status)
	}
	return nil
}

// Close releases the underlying HTTP resources.
func (c *GraphQLClient) Close() error { return c.http.Close() }

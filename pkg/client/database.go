package client

import (
	"context"
	"fmt"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/errkind"
)

// Driver is the adapter contract a database type implements to plug into
// the registry.
type Driver interface {
	Query(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error)
	Exec(ctx context.Context, query string, args ...interface{}) (int64, error)
	Begin(ctx context.Context) (Tx, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// Tx is one open transaction.
type Tx interface {
	Query(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error)
	Exec(ctx context.Context, query string, args ...interface{}) (int64, error)
	Commit() error
	Rollback() error
}

// DriverFactory builds a driver from its client configuration.
type DriverFactory func(cfg config.ClientConfig, log logger.Logger) (Driver, error)

var driverFactories = map[string]DriverFactory{}

// RegisterDriver makes a database type available to NewDatabaseClient.
// Drivers self-register from init functions.
func RegisterDriver(dbType string, factory DriverFactory) {
	driverFactories[dbType] = factory
}

// DatabaseClient wraps one driver under a registry name.
type DatabaseClient struct {
	name   string
	dbType string
	driver Driver
	log    logger.Logger
}

// NewDatabaseClient builds a database client for cfg.Type.
func NewDatabaseClient(name string, cfg config.ClientConfig, log logger.Logger) (*DatabaseClient, error) {
	factory, ok := driverFactories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("database type %q: %w", cfg.Type, errkind.ErrMissingDriver)
	}
	driver, err := factory(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", name, err)
	}
	return &DatabaseClient{name: name, dbType: cfg.Type, driver: driver, log: log}, nil
}

// Name returns the registry name of the client.
func (c *DatabaseClient) Name() string { return c.name }

// Kind returns "database".
func (c *DatabaseClient) Kind() string { return KindDatabase }

// Query runs a read statement and returns row maps.
func (c *DatabaseClient) Query(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error) {
	return c.driver.Query(ctx, query, args...)
}

// Exec runs a write statement and returns affected rows.
func (c *DatabaseClient) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	return c.driver.Exec(ctx, query, args...)
}

// Begin opens a transaction.
func (c *DatabaseClient) Begin(ctx context.Context) (Tx, error) {
	return c.driver.Begin(ctx)
}

// HealthCheck pings the database.
func (c *DatabaseClient) HealthCheck(ctx context.Context) error {
	return c.driver.HealthCheck(ctx)
}

// Close disconnects the driver.
func (c *DatabaseClient) Close() error {
	return c.driver.Close()
}

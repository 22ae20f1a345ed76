package client

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
)

const sqliteDriverName = "sqlite"

func init() {
	RegisterDriver("sqlite", newSQLiteDriver)
	RegisterDriver("sqlite3", newSQLiteDriver)
}

type sqliteDriver struct {
	db  *sql.DB
	log logger.Logger
}

// newSQLiteDriver opens (and creates when absent) the database file named
// by cfg.Database. An empty path opens an in-memory database.
func newSQLiteDriver(cfg config.ClientConfig, log logger.Logger) (Driver, error) {
	dsn := "file::memory:?cache=shared"
	if cfg.Database != "" {
		absPath, err := filepath.Abs(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("resolve sqlite path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, fmt.Errorf("prepare sqlite directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", filepath.ToSlash(absPath))
	}

	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(positiveOrDefault(cfg.Pool.MaxOpen, 8))
	db.SetMaxIdleConns(positiveOrDefault(cfg.Pool.MaxIdle, 8))
	db.SetConnMaxLifetime(cfg.Pool.MaxLifetime)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %s: %w", stmt, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &sqliteDriver{db: db, log: log}, nil
}

func (d *sqliteDriver) Query(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (d *sqliteDriver) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite exec: %w", err)
	}
	return res.RowsAffected()
}

func (d *sqliteDriver) Begin(ctx context.Context) (Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite begin: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

func (d *sqliteDriver) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *sqliteDriver) Close() error {
	return d.db.Close()
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Query(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite tx query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (t *sqliteTx) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite tx exec: %w", err)
	}
	return res.RowsAffected()
}

func (t *sqliteTx) Commit() error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }

// scanRows converts sql rows into generic maps keyed by column name.
func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			value := values[i]
			if b, ok := value.([]byte); ok {
				value = string(b)
			}
			row[col] = value
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func positiveOrDefault(value, def int) int {
	if value > 0 {
		return value
	}
	return def
}

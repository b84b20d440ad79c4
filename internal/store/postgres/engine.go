// Package postgres is the production query engine, reading through a pooled
// database/sql handle over the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/reconquery/reconquery/internal/schema"
	"github.com/reconquery/reconquery/internal/store"
)

type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
	MaxRows         int
}

type Engine struct {
	db           *sql.DB
	queryTimeout time.Duration
	maxRows      int
}

func Open(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewEngine(db, cfg), nil
}

// NewEngine wraps an existing handle; tests pass a sqlmock-backed one.
func NewEngine(db *sql.DB, cfg Config) *Engine {
	return &Engine{db: db, queryTimeout: cfg.QueryTimeout, maxRows: cfg.MaxRows}
}

func (e *Engine) Execute(ctx context.Context, sqlText string) (store.ResultSet, error) {
	if err := store.CheckReadOnly(sqlText); err != nil {
		return store.ResultSet{}, &store.ExecutionError{Err: err}
	}

	if e.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return store.ResultSet{}, &store.ExecutionError{Err: err}
	}
	defer func() { _ = rows.Close() }()

	result, err := store.ScanResultSet(rows, e.maxRows, start)
	if err != nil {
		return store.ResultSet{}, &store.ExecutionError{Err: err}
	}
	return result, nil
}

const introspectQuery = `
SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = 'public'
ORDER BY table_name, ordinal_position`

func (e *Engine) Introspect(ctx context.Context) (schema.Descriptor, error) {
	rows, err := e.db.QueryContext(ctx, introspectQuery)
	if err != nil {
		return schema.Descriptor{}, fmt.Errorf("introspect schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var desc schema.Descriptor
	for rows.Next() {
		var tableName, columnName, dataType string
		if err := rows.Scan(&tableName, &columnName, &dataType); err != nil {
			return schema.Descriptor{}, fmt.Errorf("scan schema row: %w", err)
		}
		if len(desc.Tables) == 0 || desc.Tables[len(desc.Tables)-1].Name != tableName {
			desc.Tables = append(desc.Tables, schema.Table{Name: tableName})
		}
		last := &desc.Tables[len(desc.Tables)-1]
		last.Columns = append(last.Columns, schema.Column{Name: columnName, Type: dataType})
	}
	if err := rows.Err(); err != nil {
		return schema.Descriptor{}, fmt.Errorf("iterate schema rows: %w", err)
	}
	return desc, nil
}

func (e *Engine) HealthCheck(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

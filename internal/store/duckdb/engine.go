// Package duckdb is the embedded query engine used by the dev profile and
// local demos: the same contract as the postgres engine against a local
// database file (or in-memory when the DSN is empty).
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/reconquery/reconquery/internal/schema"
	"github.com/reconquery/reconquery/internal/store"
)

type Config struct {
	// Path to the database file; empty opens an in-memory database.
	Path         string
	QueryTimeout time.Duration
	MaxRows      int
}

type Engine struct {
	db           *sql.DB
	queryTimeout time.Duration
	maxRows      int
}

func Open(ctx context.Context, cfg Config) (*Engine, error) {
	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return &Engine{db: db, queryTimeout: cfg.QueryTimeout, maxRows: cfg.MaxRows}, nil
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
WHERE table_schema = 'main'
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
		return fmt.Errorf("ping duckdb: %w", err)
	}
	return nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

// Package store runs generated queries against the relational store. Engines
// wrap a pooled database handle; a request borrows a connection for the
// duration of one query and releases it on every path.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/reconquery/reconquery/internal/schema"
)

// ExecutionError wraps any database-reported failure (syntax, permission,
// timeout) and pre-execution guard rejections. A single query is a single
// attempt; it is never retried with the same SQL.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute query: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ResultSet is the uniform tabular shape of a query result. Columns preserve
// the statement's output order; each row is positionally aligned with
// Columns. The set belongs to the request that produced it.
type ResultSet struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

func (rs ResultSet) Empty() bool {
	return len(rs.Rows) == 0
}

func (rs ResultSet) RowCount() int {
	return len(rs.Rows)
}

// RowMap returns row i as a column-name to value mapping.
func (rs ResultSet) RowMap(i int) map[string]any {
	row := make(map[string]any, len(rs.Columns))
	for j, column := range rs.Columns {
		if j < len(rs.Rows[i]) {
			row[column] = rs.Rows[i][j]
		}
	}
	return row
}

type Engine interface {
	// Execute runs one read-only statement. Statements rejected by the
	// read-only guard fail with ExecutionError before touching the database.
	Execute(ctx context.Context, sql string) (ResultSet, error)
	// Introspect reports the queryable tables and columns.
	Introspect(ctx context.Context) (schema.Descriptor, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

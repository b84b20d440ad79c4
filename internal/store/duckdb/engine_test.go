package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/reconquery/reconquery/internal/store"
)

func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reconquery.db")
	db, err := sql.Open("duckdb", path)
	if err != nil {
		t.Fatalf("open seed database: %v", err)
	}
	defer func() { _ = db.Close() }()

	statements := []string{
		`CREATE TABLE payment_transactions (id BIGINT, reference VARCHAR, amount DECIMAL(12,2), status VARCHAR)`,
		`INSERT INTO payment_transactions VALUES
			(1, 'TXN-001', 120.50, 'settled'),
			(2, 'TXN-002', 45.00, 'pending'),
			(3, 'TXN-003', 800.00, 'settled')`,
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			t.Fatalf("seed statement failed: %v", err)
		}
	}
	return path
}

func TestExecuteAgainstEmbeddedDatabase(t *testing.T) {
	engine, err := Open(context.Background(), Config{Path: seedDatabase(t), MaxRows: 100})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = engine.Close() }()

	result, err := engine.Execute(context.Background(),
		"SELECT status, count(*) AS n FROM payment_transactions GROUP BY status ORDER BY status")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.RowCount() != 2 {
		t.Fatalf("RowCount() = %d", result.RowCount())
	}
	first := result.RowMap(0)
	if first["status"] != "pending" {
		t.Fatalf("first row = %v", first)
	}
}

func TestExecuteRejectsMutation(t *testing.T) {
	engine, err := Open(context.Background(), Config{Path: seedDatabase(t)})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = engine.Close() }()

	_, err = engine.Execute(context.Background(), "DELETE FROM payment_transactions")
	var execErr *store.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("error = %T, want *store.ExecutionError", err)
	}

	result, err := engine.Execute(context.Background(), "SELECT count(*) AS n FROM payment_transactions")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.RowCount() != 1 {
		t.Fatalf("RowCount() = %d", result.RowCount())
	}
}

func TestIntrospectEmbeddedDatabase(t *testing.T) {
	engine, err := Open(context.Background(), Config{Path: seedDatabase(t)})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = engine.Close() }()

	desc, err := engine.Introspect(context.Background())
	if err != nil {
		t.Fatalf("Introspect() error = %v", err)
	}
	if !desc.HasTable("payment_transactions") {
		t.Fatalf("descriptor missing table: %+v", desc)
	}
	if !desc.HasColumn("payment_transactions", "amount") {
		t.Fatal("descriptor missing amount column")
	}
}

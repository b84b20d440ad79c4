package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ScanResultSet drains rows into a ResultSet, failing once maxRows is
// exceeded so an overly broad query is rejected instead of truncated
// silently. maxRows <= 0 disables the cap.
func ScanResultSet(rows *sql.Rows, maxRows int, start time.Time) (ResultSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return ResultSet{}, fmt.Errorf("read result columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		if maxRows > 0 && len(resultRows) >= maxRows {
			return ResultSet{}, fmt.Errorf("result exceeds %d rows, refine the question", maxRows)
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return ResultSet{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, fmt.Errorf("iterate rows: %w", err)
	}

	return ResultSet{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

// normalizeValues converts driver byte slices to strings so rows serialize
// cleanly to JSON and CSV.
func normalizeValues(values []any) []any {
	for i, value := range values {
		if raw, ok := value.([]byte); ok {
			values[i] = string(raw)
		}
	}
	return values
}

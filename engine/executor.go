package engine

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// openDB opens a short-lived in-memory DuckDB handle. One handle serves the
// sequential queries of a single request and is closed when the request ends.
func openDB() (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return db, nil
}

// streamRows runs the query and hands every row to scan. Cancellation is
// observed at row granularity: on a cancelled context the partial rows are
// abandoned and the context error is returned.
func streamRows(ctx context.Context, db *sql.DB, query string, scan func(*sql.Rows) error) (int, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := scan(rows); err != nil {
			return 0, err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

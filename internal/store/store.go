// Package store is the persistence adapter of the indexer. Every method is
// set-oriented: one call issues a bounded number of statements regardless of
// how many rows it handles.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// maxParams stays under SQLITE_MAX_VARIABLE_NUMBER.
const maxParams = 32000

var (
	// ErrNotFound is returned by single row lookups.
	ErrNotFound = errors.New("not found")

	// ErrMissingRows is returned when a lookup by hash yields fewer rows than requested.
	// The store and the chain have diverged, the block must not be committed.
	ErrMissingRows = errors.New("missing rows")

	// ErrDoubleSpend is returned when an input spends an output that is already spent.
	ErrDoubleSpend = errors.New("output already spent")
)

// DBTX is implemented by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store reads and writes index rows through one database handle.
// Within the block pipeline the handle is the block's transaction.
type Store struct {
	db        DBTX
	batchRows int
}

// New creates a store over db. batchRows caps the rows of one multi-row statement.
func New(db DBTX, batchRows int) *Store {
	if batchRows <= 0 {
		batchRows = 500
	}
	return &Store{db: db, batchRows: batchRows}
}

// chunkSize returns how many rows of the given width fit in one statement.
func (s *Store) chunkSize(columns int) int {
	return max(1, min(s.batchRows, maxParams/columns))
}

// chunks splits n items into [start, end) ranges of at most size items.
func chunks(n, size int) [][2]int {
	if n == 0 {
		return nil
	}
	out := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}

// placeholders renders "(?, ?), (?, ?)" for rows of width columns.
func placeholders(rows, columns int) string {
	tuple := "(" + inList(columns) + ")"
	var b strings.Builder
	for i := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
	}
	return b.String()
}

// insertRows writes rows in chunked multi-row INSERT statements.
// When scan is set the statement carries suffix (typically a RETURNING clause)
// and scan is called for every returned row.
func (s *Store) insertRows(
	ctx context.Context,
	table string,
	columns []string,
	rows [][]any,
	suffix string,
	scan func(*sql.Rows) error,
) error {
	for _, c := range chunks(len(rows), s.chunkSize(len(columns))) {
		batch := rows[c[0]:c[1]]

		args := make([]any, 0, len(batch)*len(columns))
		for _, row := range batch {
			args = append(args, row...)
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s %s",
			table, strings.Join(columns, ", "), placeholders(len(batch), len(columns)), suffix)

		if scan == nil {
			if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to insert into %s: %w", table, err)
			}
			continue
		}

		if err := s.queryRows(ctx, query, args, scan); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) queryRows(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

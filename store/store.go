// Package store provides a SQL-backed existence and snapshot probe for
// PersistenceContext implementations. The transience core consults it as a
// last resort, when no interceptor hint, descriptor strategy, or caller
// assumption decides an object's state.
//
// The probe works with *sql.DB, *sql.Tx, or *sql.Conn, so existence checks
// can see uncommitted changes within a transaction:
//
//	src := store.NewSnapshotSource(tx)
//	ok, err := src.Exists(ctx, "orders", "id", orderID)
//
// Queries use $1 placeholders, which both PostgreSQL drivers and SQLite
// accept, so the same source serves either backend.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for probe failures caused by schema drift rather than
// data. A probe against a missing table or column means the mapping
// document and the database no longer agree; run `tether doctor` to see
// the full picture.
var (
	// ErrMissingTable is returned when the probed table does not exist.
	ErrMissingTable = errors.New("store: table not found")

	// ErrMissingColumn is returned when the probed identifier column does
	// not exist on the table.
	ErrMissingColumn = errors.New("store: column not found")
)

// IsMissingTableErr returns true if err is or wraps ErrMissingTable.
func IsMissingTableErr(err error) bool {
	return errors.Is(err, ErrMissingTable)
}

// IsMissingColumnErr returns true if err is or wraps ErrMissingColumn.
func IsMissingColumnErr(err error) bool {
	return errors.Is(err, ErrMissingColumn)
}

// PostgreSQL error codes used to classify probe failures.
const (
	pgUndefinedTable  = "42P01" // undefined_table
	pgUndefinedColumn = "42703" // undefined_column
)

// Querier is the database handle the probe needs. It is satisfied by
// *sql.DB, *sql.Tx, and *sql.Conn, enabling probes to run seamlessly in
// transaction or connection-pooled contexts without different APIs.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SnapshotSource answers "does this identifier have a row" and fetches
// snapshot rows by identifier. Sources are lightweight and safe to create
// per operation; they hold no state beyond the database handle.
type SnapshotSource struct {
	q Querier
}

// NewSnapshotSource creates a probe over the given database handle.
func NewSnapshotSource(q Querier) *SnapshotSource {
	return &SnapshotSource{q: q}
}

// Exists reports whether a row with the identifier exists.
func (s *SnapshotSource) Exists(ctx context.Context, table, idColumn string, id any) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = $1", quoteIdent(table), quoteIdent(idColumn))

	var one int
	err := s.q.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, s.mapError("exists", table, idColumn, err)
	}
	return true, nil
}

// Snapshot fetches the named columns of the row with the identifier, in
// the given column order. A nil row with a nil error means no such row
// exists, matching the PersistenceContext.Snapshot contract.
func (s *SnapshotSource) Snapshot(ctx context.Context, table, idColumn string, columns []string, id any) ([]any, error) {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = quoteIdent(c)
	}
	if len(cols) == 0 {
		cols = []string{quoteIdent(idColumn)}
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		strings.Join(cols, ", "), quoteIdent(table), quoteIdent(idColumn))

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	err := s.q.QueryRowContext(ctx, query, id).Scan(ptrs...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.mapError("snapshot", table, idColumn, err)
	}
	return values, nil
}

// mapError maps database errors to sentinel errors.
// Uses interface-based detection to work with any PostgreSQL driver (pq, pgx).
func (s *SnapshotSource) mapError(operation, table, idColumn string, err error) error {
	switch sqlState(err) {
	case pgUndefinedTable:
		return fmt.Errorf("%w: %q: %v", ErrMissingTable, table, err)
	case pgUndefinedColumn:
		return fmt.Errorf("%w: %q.%q: %v", ErrMissingColumn, table, idColumn, err)
	}
	// SQLite reports missing schema objects by message only.
	errStr := err.Error()
	if strings.Contains(errStr, "no such table") {
		return fmt.Errorf("%w: %q: %v", ErrMissingTable, table, err)
	}
	if strings.Contains(errStr, "no such column") {
		return fmt.Errorf("%w: %q.%q: %v", ErrMissingColumn, table, idColumn, err)
	}
	return fmt.Errorf("store: %s %q: %w", operation, table, err)
}

// sqlState extracts the SQLSTATE code from a database error.
// Works with multiple drivers via interface detection:
//   - pgx/pgconn: SQLState() string
//   - lib/pq: Code field (via error interface)
//
// Returns empty string if the error doesn't carry a SQLSTATE.
func sqlState(err error) string {
	type sqlStateErr interface{ SQLState() string }
	var se sqlStateErr
	if errors.As(err, &se) {
		return se.SQLState()
	}

	type codeErr interface{ Code() string }
	var ce codeErr
	if errors.As(err, &ce) {
		return ce.Code()
	}

	// Fallback: extract from "... (SQLSTATE 42P01)" style messages.
	errStr := err.Error()
	for _, prefix := range []string{"SQLSTATE ", "SQLSTATE: "} {
		if idx := strings.Index(errStr, prefix); idx >= 0 {
			start := idx + len(prefix)
			if start+5 <= len(errStr) {
				return errStr[start : start+5]
			}
		}
	}
	return ""
}

// quoteIdent quotes a SQL identifier, doubling any embedded quotes.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

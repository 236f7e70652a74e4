// Package store provides the table-oriented key/value storage contract the
// rest of the backend is written against: insert/select/update/delete/upsert
// against named tables, narrowed by a composable REST-style filter grammar
// ("field=eq.value", "field=in.(a,b)").
//
// Three interchangeable implementations exist: a gorm/SQLite backend for
// embedded deployments, an HTTP client for a remote REST table store, and an
// in-memory fake for tests. The backend is selected at startup.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Backend identifies a storage implementation.
type Backend string

const (
	// BackendSQLite is the embedded gorm/SQLite backend.
	BackendSQLite Backend = "sqlite"
	// BackendREST talks to a remote REST table store.
	BackendREST Backend = "rest"
)

// Table names. Every durable record the backend owns lives in one of these.
const (
	TableWardApprovals     = "ward_approval_requests"
	TableApprovals         = "approval_requests"
	TableTransactions      = "transactions"
	TableSwapExecutions    = "swap_executions"
	TableSwapSteps         = "swap_execution_steps"
	TableWardConfigs       = "ward_configs"
	TableOutboxEvents      = "outbox_events"
	TableOutboxDeadLetters = "outbox_dead_letters"
)

// ErrNotFound is returned by helpers that expect exactly one row.
var ErrNotFound = errors.New("store: row not found")

// TimeFormat is the canonical wire form for timestamp columns. Fixed-width
// fractional seconds keep lexicographic order equal to chronological order,
// which the gt filter and result ordering rely on.
const TimeFormat = "2006-01-02T15:04:05.000000Z07:00"

// FormatTime renders a timestamp in the canonical wire form (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// Row is a single record keyed by column name.
type Row map[string]any

// Query narrows a Select/Update/Delete to a subset of a table.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
	Offset     int
}

// Where returns a query with the given filters and no ordering or paging.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

// Store is the storage contract. Update returns the rows as they stand after
// the patch was applied; a conditioned update that matched nothing returns an
// empty slice, which is how compare-and-swap misses are observed.
type Store interface {
	Insert(ctx context.Context, table string, record Row) (Row, error)
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Update(ctx context.Context, table string, q Query, patch Row) ([]Row, error)
	Delete(ctx context.Context, table string, q Query) error
	Upsert(ctx context.Context, table string, record Row, conflictColumns ...string) (Row, error)
}

// SelectOne returns the single row matching q, or ErrNotFound.
func SelectOne(ctx context.Context, s Store, table string, q Query) (Row, error) {
	q.Limit = 1
	rows, err := s.Select(ctx, table, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

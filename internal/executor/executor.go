// Package executor implements the §6.3 transactional SQL-like executor
// contract the storage engine is built against, plus the concrete
// classification of backend errors into the taxonomy used throughout
// internal/shard.
package executor

import "context"

// QueryClass tags a query with the replica/timeout routing group it
// belongs to. A single-process SQLite backend has nothing to route to,
// so SQLExecutor only uses the class for metrics labeling — the tag
// exists so the engine's call sites stay shaped the way a sharded
// multi-replica backend would need them.
type QueryClass string

const (
	Select       QueryClass = "select"
	SelectModify QueryClass = "select_modify"
	SelectCopy   QueryClass = "select_copy"
)

// Rows is satisfied by *sql.Rows; kept as an interface so callers in
// internal/shard never import database/sql directly.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Row is satisfied by *sql.Row.
type Row interface {
	Scan(dest ...any) error
}

// RowStatus is the per-row outcome of an ExecuteBatch call. A negative
// Code means the row failed (typically an integrity violation); Err
// carries the classified cause.
type RowStatus struct {
	Code int
	Err  error
}

// Failed reports whether this row's batch status is a failure.
func (s RowStatus) Failed() bool { return s.Code < 0 }

// Querier is the read surface shared by Executor and an open Tx.
type Querier interface {
	Select(ctx context.Context, class QueryClass, query string, args []any, fn func(Rows) error) error
	SelectOne(ctx context.Context, class QueryClass, query string, args []any, fn func(Row) error) (bool, error)
}

// Tx is a Querier plus the write operations valid inside an open
// transaction. It is handed to the function passed to Executor.Transaction.
type Tx interface {
	Querier
	Execute(ctx context.Context, query string, args ...any) (int64, error)
	ExecuteBatch(ctx context.Context, query string, argSets [][]any) ([]RowStatus, error)
}

// Executor is the full contract internal/shard depends on: it never
// imports database/sql, mysql, or sqlite directly.
type Executor interface {
	Querier
	Execute(ctx context.Context, query string, args ...any) (int64, error)
	ExecuteBatch(ctx context.Context, query string, argSets [][]any) ([]RowStatus, error)
	Transaction(ctx context.Context, fn func(Tx) error) error
}

package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mindcrime/flockdb/internal/metrics"
	sqlite3 "modernc.org/sqlite"
	_ "modernc.org/sqlite"
)

// sqlite primary result codes this package classifies. See sqlite3.h.
// The driver reports extended result codes; classify compares only their
// low byte, which is the primary code.
const (
	sqliteConstraint = 19
	sqliteBusy       = 5
	sqliteLocked     = 6
)

// SQLExecutor implements Executor against a *sql.DB opened with the
// modernc.org/sqlite pure-Go driver — the one real SQL/transactional
// backend present in the reference pool, and the same driver the
// teacher package uses for its own on-disk indices.
type SQLExecutor struct {
	db           *sql.DB
	shardID      string
	queryTimeout time.Duration
}

// SetQueryTimeout configures the per-call deadline applied to every
// query/exec this executor issues from now on. d <= 0 disables the
// deadline (every call runs with the caller's own ctx only).
func (e *SQLExecutor) SetQueryTimeout(d time.Duration) { e.queryTimeout = d }

// Timeout wraps ctx so a query that exceeds d is classified as
// ErrQueryTimeout rather than a generic cancellation. d <= 0 returns ctx
// unchanged with a no-op cancel.
func Timeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// Open opens (or creates) a SQLite database at path and wraps it as an
// Executor. WAL mode is enabled so readers are not blocked by a writer;
// SQLite still admits one writer transaction at a time, so write
// transactions on different sources serialize on the database's write
// lock.
func Open(shardID, path string) (*SQLExecutor, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	db.SetMaxOpenConns(8)
	return &SQLExecutor{db: db, shardID: shardID}, nil
}

// OpenDB wraps an already-open *sql.DB (used by tests that share one
// in-memory database across several shards).
func OpenDB(shardID string, db *sql.DB) *SQLExecutor {
	return &SQLExecutor{db: db, shardID: shardID}
}

// Close closes the underlying database handle.
func (e *SQLExecutor) Close() error { return e.db.Close() }

func (e *SQLExecutor) Select(ctx context.Context, class QueryClass, query string, args []any, fn func(Rows) error) error {
	timer := metrics.ObserveQueryClass(string(class))
	defer timer()

	ctx, cancel := Timeout(ctx, e.queryTimeout)
	defer cancel()

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	if err := fn(rows); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return classify(err)
	}
	return nil
}

func (e *SQLExecutor) SelectOne(ctx context.Context, class QueryClass, query string, args []any, fn func(Row) error) (bool, error) {
	timer := metrics.ObserveQueryClass(string(class))
	defer timer()

	ctx, cancel := Timeout(ctx, e.queryTimeout)
	defer cancel()

	row := e.db.QueryRowContext(ctx, query, args...)
	err := fn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classify(err)
	}
	return true, nil
}

func (e *SQLExecutor) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, cancel := Timeout(ctx, e.queryTimeout)
	defer cancel()

	res, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

// ExecuteBatch prepares query once (a single-row statement) and executes
// it once per argset inside one transaction, recording a per-row status
// code for each: 0 on success, -1 with the classified cause on failure.
// If any row failed, the whole transaction is rolled back and the
// statuses are returned so the caller can fall back row by row.
func (e *SQLExecutor) ExecuteBatch(ctx context.Context, query string, argSets [][]any) ([]RowStatus, error) {
	ctx, cancel := Timeout(ctx, e.queryTimeout)
	defer cancel()

	statuses := make([]RowStatus, len(argSets))

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback() // safe to ignore
		}
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = stmt.Close() }() // safe to ignore

	anyFailed := false
	for i, args := range argSets {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			cerr := classify(err)
			statuses[i] = RowStatus{Code: -1, Err: cerr}
			anyFailed = true
			continue
		}
		statuses[i] = RowStatus{Code: 0}
	}

	if anyFailed {
		// Partial batch failure: roll back the whole attempt and report
		// per-row status so the caller can fall back row-by-row, per
		// spec.md §4.3 step 3.
		return statuses, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}
	committed = true
	return statuses, nil
}

func (e *SQLExecutor) Transaction(ctx context.Context, fn func(Tx) error) error {
	ctx, cancel := Timeout(ctx, e.queryTimeout)
	defer cancel()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}

	// Individual statements issued against t share the deadline already
	// placed on ctx above — BeginTx(ctx, ...) rolls the transaction back
	// if that deadline fires, so no per-statement Timeout wrap is needed.
	t := &sqlTx{tx: tx}
	if err := fn(t); err != nil {
		_ = tx.Rollback() // safe to ignore
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

// sqlTx implements Tx over an open *sql.Tx.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Select(ctx context.Context, _ QueryClass, query string, args []any, fn func(Rows) error) error {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore
	if err := fn(rows); err != nil {
		return err
	}
	return classify(rows.Err())
}

func (t *sqlTx) SelectOne(ctx context.Context, _ QueryClass, query string, args []any, fn func(Row) error) (bool, error) {
	row := t.tx.QueryRowContext(ctx, query, args...)
	err := fn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, classify(err)
	}
	return true, nil
}

func (t *sqlTx) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	return res.RowsAffected()
}

func (t *sqlTx) ExecuteBatch(ctx context.Context, query string, argSets [][]any) ([]RowStatus, error) {
	statuses := make([]RowStatus, len(argSets))
	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = stmt.Close() }() // safe to ignore

	for i, args := range argSets {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			statuses[i] = RowStatus{Code: -1, Err: classify(err)}
			continue
		}
		statuses[i] = RowStatus{Code: 0}
	}
	return statuses, nil
}

// classify maps a driver error into the §7 taxonomy. nil stays nil.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrQueryTimeout, err)
	}

	var sqliteErr *sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqliteConstraint:
			return fmt.Errorf("%w: %v", ErrIntegrityViolation, err)
		case sqliteBusy, sqliteLocked:
			return fmt.Errorf("%w: %v", ErrDeadlock, err)
		}
	}
	return err
}

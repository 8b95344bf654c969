package executor

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *SQLExecutor {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, value TEXT NOT NULL)`)
	require.NoError(t, err)

	return OpenDB(t.Name(), db)
}

func TestExecuteAndSelectOne(t *testing.T) {
	e := newTestDB(t)
	ctx := context.Background()

	n, err := e.Execute(ctx, "INSERT INTO items (id, value) VALUES (?, ?)", 1, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var value string
	found, err := e.SelectOne(ctx, Select, "SELECT value FROM items WHERE id = ?", []any{1}, func(row Row) error {
		return row.Scan(&value)
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", value)

	found, err = e.SelectOne(ctx, Select, "SELECT value FROM items WHERE id = ?", []any{999}, func(row Row) error {
		return row.Scan(&value)
	})
	require.NoError(t, err)
	assert.False(t, found, "SelectOne reports false, not an error, when no row matches")
}

func TestSelectIteratesAllRows(t *testing.T) {
	e := newTestDB(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		_, err := e.Execute(ctx, "INSERT INTO items (id, value) VALUES (?, ?)", i, "v")
		require.NoError(t, err)
	}

	var ids []int
	err := e.Select(ctx, Select, "SELECT id FROM items ORDER BY id", nil, func(rows Rows) error {
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ids)
}

func TestExecuteClassifiesIntegrityViolation(t *testing.T) {
	e := newTestDB(t)
	ctx := context.Background()
	_, err := e.Execute(ctx, "INSERT INTO items (id, value) VALUES (?, ?)", 1, "a")
	require.NoError(t, err)

	_, err = e.Execute(ctx, "INSERT INTO items (id, value) VALUES (?, ?)", 1, "b")
	require.Error(t, err)
	assert.True(t, IsIntegrityViolation(err))
}

func TestExecuteBatchReportsPerRowFailure(t *testing.T) {
	e := newTestDB(t)
	ctx := context.Background()
	_, err := e.Execute(ctx, "INSERT INTO items (id, value) VALUES (?, ?)", 1, "existing")
	require.NoError(t, err)

	statuses, err := e.ExecuteBatch(ctx, "INSERT INTO items (id, value) VALUES (?, ?)", [][]any{
		{2, "ok"},
		{1, "collides"},
	})
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.False(t, statuses[0].Failed())
	assert.True(t, statuses[1].Failed())
	assert.True(t, IsIntegrityViolation(statuses[1].Err))

	// The whole batch transaction rolled back on partial failure: row 2's
	// insert must not have persisted either.
	_, found, err := func() (int, bool, error) {
		var id int
		found, err := e.SelectOne(ctx, Select, "SELECT id FROM items WHERE id = ?", []any{2}, func(row Row) error {
			return row.Scan(&id)
		})
		return id, found, err
	}()
	require.NoError(t, err)
	assert.False(t, found, "a partially failed batch rolls back its successful rows too")
}

func TestTransactionCommitsOnSuccess(t *testing.T) {
	e := newTestDB(t)
	ctx := context.Background()

	err := e.Transaction(ctx, func(tx Tx) error {
		_, err := tx.Execute(ctx, "INSERT INTO items (id, value) VALUES (?, ?)", 1, "a")
		return err
	})
	require.NoError(t, err)

	var value string
	found, err := e.SelectOne(ctx, Select, "SELECT value FROM items WHERE id = ?", []any{1}, func(row Row) error {
		return row.Scan(&value)
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "a", value)
}

func TestTransactionRollsBackOnCallbackError(t *testing.T) {
	e := newTestDB(t)
	ctx := context.Background()

	sentinel := assert.AnError
	err := e.Transaction(ctx, func(tx Tx) error {
		if _, err := tx.Execute(ctx, "INSERT INTO items (id, value) VALUES (?, ?)", 1, "a"); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	found, err := e.SelectOne(ctx, Select, "SELECT value FROM items WHERE id = ?", []any{1}, func(row Row) error {
		var v string
		return row.Scan(&v)
	})
	require.NoError(t, err)
	assert.False(t, found, "a callback error rolls back the whole transaction")
}

func TestTimeoutDisabledForNonPositiveDuration(t *testing.T) {
	ctx := context.Background()
	wrapped, cancel := Timeout(ctx, 0)
	defer cancel()
	_, hasDeadline := wrapped.Deadline()
	assert.False(t, hasDeadline, "a non-positive duration must not attach a deadline")
}

func TestTimeoutAttachesDeadline(t *testing.T) {
	ctx := context.Background()
	wrapped, cancel := Timeout(ctx, time.Minute)
	defer cancel()
	_, hasDeadline := wrapped.Deadline()
	assert.True(t, hasDeadline, "a positive duration must attach a deadline")
}

func TestExecuteClassifiesTimeout(t *testing.T) {
	e := newTestDB(t)
	e.SetQueryTimeout(time.Nanosecond)
	ctx := context.Background()

	_, err := e.Execute(ctx, "INSERT INTO items (id, value) VALUES (?, ?)", 1, "a")
	require.Error(t, err)
	assert.True(t, IsQueryTimeout(err), "a query issued after the deadline already elapsed classifies as a timeout")
}

func TestTxExecuteBatchDoesNotRollBackOnPartialFailure(t *testing.T) {
	e := newTestDB(t)
	ctx := context.Background()
	_, err := e.Execute(ctx, "INSERT INTO items (id, value) VALUES (?, ?)", 1, "existing")
	require.NoError(t, err)

	err = e.Transaction(ctx, func(tx Tx) error {
		statuses, err := tx.ExecuteBatch(ctx, "INSERT INTO items (id, value) VALUES (?, ?)", [][]any{
			{2, "ok"},
			{1, "collides"},
		})
		if err != nil {
			return err
		}
		assert.True(t, statuses[1].Failed())
		return nil
	})
	require.NoError(t, err)

	// Unlike the top-level Executor.ExecuteBatch, the Tx variant leaves
	// row 2's successful insert intact for the caller's transaction to
	// commit, since shard.writeBurst relies on retrying only the failed
	// rows within the same already-open transaction.
	found, err := e.SelectOne(ctx, Select, "SELECT id FROM items WHERE id = ?", []any{2}, func(row Row) error {
		var id int
		return row.Scan(&id)
	})
	require.NoError(t, err)
	assert.True(t, found)
}

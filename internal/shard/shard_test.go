package shard

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindcrime/flockdb/api"
	"github.com/mindcrime/flockdb/internal/executor"
)

// newTestShard bootstraps an in-memory SQLite database with the two
// tables a shard owns and returns a Shard bound to it, plus a fixed
// clock the caller can advance between calls. Table DDL lives only in
// test code, never in the engine itself.
func newTestShard(t *testing.T, prefix string) (*Shard, *fakeClock) {
	t.Helper()

	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	names := namesFor(prefix)
	ddl := []string{
		fmt.Sprintf(`CREATE TABLE %s (
			source_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			destination_id INTEGER NOT NULL,
			count INTEGER NOT NULL,
			state INTEGER NOT NULL,
			PRIMARY KEY (source_id, destination_id)
		)`, names.edges),
		fmt.Sprintf(`CREATE UNIQUE INDEX %s_position ON %s (source_id, state, position)`, names.edges, names.edges),
		fmt.Sprintf(`CREATE TABLE %s (
			source_id INTEGER PRIMARY KEY,
			count INTEGER NOT NULL,
			state INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`, names.metadata),
	}
	for _, stmt := range ddl {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	exec := executor.OpenDB(prefix, db)
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cfg := api.Config{TablePrefix: prefix}
	return New(prefix, exec, cfg, clock.Now), clock
}

// fakeClock lets tests drive Shard.now() deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

package shard

import (
	"time"

	"github.com/mindcrime/flockdb/api"
	"github.com/mindcrime/flockdb/internal/executor"
)

// Clock is the monotonic-time dependency the engine consumes instead of
// calling time.Now() directly, so tests can drive updated_at values
// deterministically. Shard.now converts its result to seconds since the
// Unix epoch.
type Clock func() time.Time

// Shard is one logical storage engine bound to one physical backing
// store holding a pair of (prefix_edges, prefix_metadata) tables. It
// knows nothing about sibling shards, replication, or RPC — those are
// external collaborators per spec.md §1.
type Shard struct {
	id           string
	exec         executor.Executor
	cfg          api.Config
	names        tableNames
	clock        Clock
	retries      int
	queryTimeout time.Duration
}

// New binds a Shard to an already-open Executor and an already-loaded
// Config. id identifies this shard for error tagging (§7). If exec is a
// *executor.SQLExecutor, cfg.QueryTimeout() is also pushed down onto it
// so every backend call it issues is bounded by the same deadline
// reported in a ShardTimeout.
func New(id string, exec executor.Executor, cfg api.Config, clock Clock) *Shard {
	if clock == nil {
		clock = time.Now
	}
	timeout := cfg.QueryTimeout()
	if sqlExec, ok := exec.(*executor.SQLExecutor); ok {
		sqlExec.SetQueryTimeout(timeout)
	}
	return &Shard{
		id:           id,
		exec:         exec,
		cfg:          cfg,
		names:        namesFor(cfg.TablePrefix),
		clock:        clock,
		retries:      cfg.Retries(),
		queryTimeout: timeout,
	}
}

// ID returns the shard identity used to tag errors at the boundary.
func (s *Shard) ID() string { return s.id }

// now returns the current time as seconds since the epoch, matching the
// edges/metadata updated_at column's resolution.
func (s *Shard) now() uint32 { return uint32(s.clock().Unix()) }

func (s *Shard) wrap(err error) error {
	if err == nil {
		return nil
	}
	if executor.IsQueryTimeout(err) {
		return &ShardTimeout{ShardID: s.id, Timeout: s.queryTimeout, Cause: err}
	}
	return &ShardError{ShardID: s.id, Cause: err}
}

package api

import "time"

// Config is the set of shard-level settings the engine consumes. Loading
// one from disk (HCL, flags, environment) is a concern of the calling
// process — see internal/config — the engine itself only ever receives an
// already-populated Config value.
type Config struct {
	// TablePrefix is prepended to "edges" and "metadata" to form the two
	// table names this shard owns (see §6.2).
	TablePrefix string `hcl:"table_prefix"`

	// EdgesDBName names the database this shard's tables live in.
	EdgesDBName string `hcl:"db_name"`

	DBUsername string `hcl:"username,optional"`
	DBPassword string `hcl:"password,optional"`

	// DeadlockRetries bounds the writer's outer retry loop on a deadlock
	// signal from the backend (errors.deadlock_retries, §6.4).
	DeadlockRetries int `hcl:"deadlock_retries,optional"`

	// SourceColumnType and DestColumnType document the <SRC_TYPE> /
	// <DST_TYPE> integer column types named in §6.2. They are informational:
	// the engine never emits DDL, so these never reach a query.
	SourceColumnType string `hcl:"source_column_type,optional"`
	DestColumnType   string `hcl:"dest_column_type,optional"`

	// QueryTimeoutMS bounds every backend call the shard issues
	// (errors.query_timeout_ms, §6.4/§7). A query still running past this
	// many milliseconds is cancelled and surfaced as a ShardTimeout.
	QueryTimeoutMS int `hcl:"query_timeout_ms,optional"`
}

// DefaultDeadlockRetries is used when a Config leaves DeadlockRetries unset.
const DefaultDeadlockRetries = 3

// DefaultQueryTimeout is used when a Config leaves QueryTimeoutMS unset.
const DefaultQueryTimeout = 5 * time.Second

// Retries returns the configured deadlock retry budget, or
// DefaultDeadlockRetries if unset.
func (c Config) Retries() int {
	if c.DeadlockRetries <= 0 {
		return DefaultDeadlockRetries
	}
	return c.DeadlockRetries
}

// QueryTimeout returns the configured per-query deadline, or
// DefaultQueryTimeout if unset.
func (c Config) QueryTimeout() time.Duration {
	if c.QueryTimeoutMS <= 0 {
		return DefaultQueryTimeout
	}
	return time.Duration(c.QueryTimeoutMS) * time.Millisecond
}

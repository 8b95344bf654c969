package shard

import (
	"errors"
	"fmt"
	"time"
)

// ShardError wraps any backend error that isn't individually recovered
// by the writer or transactor, tagged with the shard identity so callers
// always see shard-tagged errors at the boundary (§7 propagation policy).
type ShardError struct {
	ShardID string
	Cause   error
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("shard %s: %v", e.ShardID, e.Cause)
}

func (e *ShardError) Unwrap() error { return e.Cause }

// ShardTimeout is the shard-tagged form of a backend query timeout.
type ShardTimeout struct {
	Timeout time.Duration
	ShardID string
	Cause   error
}

func (e *ShardTimeout) Error() string {
	return fmt.Sprintf("shard %s: query timed out after %s: %v", e.ShardID, e.Timeout, e.Cause)
}

func (e *ShardTimeout) Unwrap() error { return e.Cause }

// errMissingMetadataRow is the transactor's internal sentinel: it never
// escapes atomically(), which catches it, lazily inserts a default row,
// and retries (§4.1).
var errMissingMetadataRow = errors.New("shard: metadata row missing")

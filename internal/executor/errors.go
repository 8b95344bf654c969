package executor

import "errors"

// ErrIntegrityViolation is the classified form of a unique-key collision.
// The writer and transactor recover from it by position perturbation or
// by switching the insert/update path; it should never reach a caller.
var ErrIntegrityViolation = errors.New("executor: integrity constraint violation")

// ErrDeadlock is the classified form of a backend transaction rollback
// under lock contention. The writer retries the whole transaction up to
// a bounded number of times; it should never reach a caller.
var ErrDeadlock = errors.New("executor: deadlock detected, transaction rolled back")

// ErrQueryTimeout is the classified form of a backend query timeout. It
// is surfaced to callers wrapped as a ShardTimeout.
var ErrQueryTimeout = errors.New("executor: query timeout")

// IsIntegrityViolation reports whether err (or something it wraps) is an
// integrity-constraint violation.
func IsIntegrityViolation(err error) bool { return errors.Is(err, ErrIntegrityViolation) }

// IsDeadlock reports whether err (or something it wraps) is a deadlock
// signal.
func IsDeadlock(err error) bool { return errors.Is(err, ErrDeadlock) }

// IsQueryTimeout reports whether err (or something it wraps) is a query
// timeout.
func IsQueryTimeout(err error) bool { return errors.Is(err, ErrQueryTimeout) }

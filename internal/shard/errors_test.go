package shard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mindcrime/flockdb/internal/executor"
)

func TestWrapTagsTimeoutWithConfiguredDuration(t *testing.T) {
	s := &Shard{id: "s1", queryTimeout: 250 * time.Millisecond}

	err := s.wrap(executor.ErrQueryTimeout)
	var timeout *ShardTimeout
	if assert.ErrorAs(t, err, &timeout) {
		assert.Equal(t, "s1", timeout.ShardID)
		assert.Equal(t, 250*time.Millisecond, timeout.Timeout, "ShardTimeout carries the shard's actual configured deadline, not a zero value")
	}
}

func TestWrapTagsOtherErrorsAsShardError(t *testing.T) {
	s := &Shard{id: "s1", queryTimeout: time.Second}

	err := s.wrap(executor.ErrIntegrityViolation)
	var shardErr *ShardError
	assert.ErrorAs(t, err, &shardErr)
}

func TestWrapPassesNilThrough(t *testing.T) {
	s := &Shard{id: "s1"}
	assert.NoError(t, s.wrap(nil))
}

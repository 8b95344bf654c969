package shard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindcrime/flockdb/api"
)

func TestWithLockWritesMultipleEdgesAtomically(t *testing.T) {
	s, _ := newTestShard(t, "l1")
	ctx := context.Background()

	err := s.WithLock(ctx, 1, func(l *LockedShard) error {
		if err := l.Add(2, 10, 100); err != nil {
			return err
		}
		return l.Add(3, 20, 100)
	})
	require.NoError(t, err)

	count, err := s.Count(ctx, 1, []api.State{api.Normal})
	require.NoError(t, err)
	assert.Equal(t, int32(2), count)
}

func TestWithLockSeesMetadataSnapshot(t *testing.T) {
	s, _ := newTestShard(t, "l2")
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, 1, 2, 10, 100))

	var snapshot api.Metadata
	err := s.WithLock(ctx, 1, func(l *LockedShard) error {
		snapshot = l.Metadata()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snapshot.SourceID)
	assert.Equal(t, int32(1), snapshot.Count)
	assert.Equal(t, api.Normal, snapshot.State)
}

func TestUpdateMetadataRecountsOnStateChange(t *testing.T) {
	s, _ := newTestShard(t, "l3")
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, 1, 2, 10, 100))
	require.NoError(t, s.Add(ctx, 1, 3, 20, 100))

	require.NoError(t, s.ArchiveSource(ctx, 1, 200))

	count, err := s.Count(ctx, 1, []api.State{api.Archived})
	require.NoError(t, err)
	assert.Equal(t, int32(0), count, "archiving the source recounts edges in the Archived state, of which there are none")

	count, err = s.Count(ctx, 1, []api.State{api.Normal})
	require.NoError(t, err)
	assert.Equal(t, int32(0), count, "metadata now tracks Archived, so the Normal count is no longer surfaced")
}

func TestUpdateMetadataIgnoresEarlierTimestamp(t *testing.T) {
	s, _ := newTestShard(t, "l4")
	ctx := context.Background()

	require.NoError(t, s.AddSource(ctx, 1, 200))
	require.NoError(t, s.ArchiveSource(ctx, 1, 100)) // older than the stored row, and a no-op state change

	count, err := s.Count(ctx, 1, []api.State{api.Normal})
	require.NoError(t, err)
	assert.Equal(t, int32(0), count)
}

func TestWriteMetadataInsertsThenFallsBackToUpdate(t *testing.T) {
	s, _ := newTestShard(t, "l5")
	ctx := context.Background()

	require.NoError(t, s.WriteMetadata(ctx, api.Metadata{SourceID: 1, Count: 5, State: api.Normal, UpdatedAt: 100}))
	count, err := s.Count(ctx, 1, []api.State{api.Normal})
	require.NoError(t, err)
	assert.Equal(t, int32(5), count)

	// A second WriteMetadata for the same source collides on insert and
	// must fall back to the updated_at-guarded update path.
	require.NoError(t, s.WriteMetadata(ctx, api.Metadata{SourceID: 1, Count: 0, State: api.Archived, UpdatedAt: 200}))
	count, err = s.Count(ctx, 1, []api.State{api.Archived})
	require.NoError(t, err)
	assert.Equal(t, int32(0), count)
}

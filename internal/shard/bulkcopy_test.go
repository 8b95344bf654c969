package shard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindcrime/flockdb/api"
)

func TestWriteCopiesBatchInsertsContiguousBurst(t *testing.T) {
	s, _ := newTestShard(t, "b1")
	ctx := context.Background()

	edges := []api.Edge{
		{SourceID: 1, DestinationID: 2, Position: 10, UpdatedAt: 100, Count: 1, State: api.Normal},
		{SourceID: 1, DestinationID: 3, Position: 20, UpdatedAt: 100, Count: 1, State: api.Normal},
		{SourceID: 5, DestinationID: 9, Position: 30, UpdatedAt: 100, Count: 1, State: api.Normal},
	}
	require.NoError(t, s.WriteCopies(ctx, edges))

	count, err := s.Count(ctx, 1, []api.State{api.Normal})
	require.NoError(t, err)
	assert.Equal(t, int32(2), count)

	count, err = s.Count(ctx, 5, []api.State{api.Normal})
	require.NoError(t, err)
	assert.Equal(t, int32(1), count)
}

func TestWriteCopiesFallsBackOnCollision(t *testing.T) {
	s, _ := newTestShard(t, "b2")
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, 1, 2, 10, 100))

	// The second row collides on (source_id, destination_id): the batch
	// insert rejects it and write_copies must recover via writeCopy.
	edges := []api.Edge{
		{SourceID: 1, DestinationID: 3, Position: 20, UpdatedAt: 100, Count: 1, State: api.Normal},
		{SourceID: 1, DestinationID: 2, Position: 99, UpdatedAt: 200, Count: 1, State: api.Normal},
	}
	require.NoError(t, s.WriteCopies(ctx, edges))

	edge, found, err := s.Get(ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(99), edge.Position, "the fallback path still applies the monotonic update rules")

	count, err := s.Count(ctx, 1, []api.State{api.Normal})
	require.NoError(t, err)
	assert.Equal(t, int32(2), count)
}

func TestWriteCopiesEmptyInputIsANoop(t *testing.T) {
	s, _ := newTestShard(t, "b3")
	require.NoError(t, s.WriteCopies(context.Background(), nil))
}

package shard

import (
	"context"
	"fmt"
	"strings"

	"github.com/mindcrime/flockdb/api"
	"github.com/mindcrime/flockdb/internal/executor"
)

// Get is the point lookup (§4.4 get): returns the edge for
// (source, destination) if one exists. Readers never take a lock.
func (s *Shard) Get(ctx context.Context, sourceID, destinationID uint64) (api.Edge, bool, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE source_id = ? AND destination_id = ?", edgeColumns, s.names.edges)
	var e api.Edge
	found, err := s.exec.SelectOne(ctx, executor.Select, query, []any{sourceID, destinationID}, func(row executor.Row) error {
		var scanErr error
		e, scanErr = scanEdge(row)
		return scanErr
	})
	return e, found, s.wrap(err)
}

// Count implements count (§4.4): sums metadata.count over the states
// whose state matches the source's current metadata state. If the
// metadata row is missing, it is populated and the read retried once.
func (s *Shard) Count(ctx context.Context, sourceID uint64, states []api.State) (int32, error) {
	count, found, err := s.readMetadataCount(ctx, sourceID, states)
	if err != nil {
		return 0, s.wrap(err)
	}
	if found {
		return count, nil
	}

	if err := s.insertDefaultMetadata(ctx, sourceID); err != nil && !executor.IsIntegrityViolation(err) {
		return 0, s.wrap(err)
	}
	count, _, err = s.readMetadataCount(ctx, sourceID, states)
	return count, s.wrap(err)
}

func (s *Shard) readMetadataCount(ctx context.Context, sourceID uint64, states []api.State) (int32, bool, error) {
	query := fmt.Sprintf("SELECT count, state FROM %s WHERE source_id = ?", s.names.metadata)
	var count int32
	found, err := s.exec.SelectOne(ctx, executor.Select, query, []any{sourceID}, func(row executor.Row) error {
		var mdCount int32
		var state int8
		if err := row.Scan(&mdCount, &state); err != nil {
			return err
		}
		for _, want := range states {
			if api.State(state) == want {
				count = mdCount
				break
			}
		}
		return nil
	})
	return count, found, err
}

// Counts implements counts (§4.4): batch lookup, filling results with
// source_id -> metadata.count. Sources absent from the backing store
// remain absent from results.
func (s *Shard) Counts(ctx context.Context, sourceIDs []uint64, results map[uint64]int32) error {
	if len(sourceIDs) == 0 {
		return nil
	}
	placeholders := make([]string, len(sourceIDs))
	args := make([]any, len(sourceIDs))
	for i, id := range sourceIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(
		"SELECT source_id, count FROM %s WHERE source_id IN (%s)",
		s.names.metadata, strings.Join(placeholders, ", "),
	)
	err := s.exec.Select(ctx, executor.Select, query, args, func(r executor.Rows) error {
		for r.Next() {
			var id uint64
			var count int32
			if err := r.Scan(&id, &count); err != nil {
				return err
			}
			results[id] = count
		}
		return nil
	})
	return s.wrap(err)
}

// SelectAllMetadata implements select_all_metadata (§4.4): a full,
// ascending, copy-oriented scan of the metadata table.
func (s *Shard) SelectAllMetadata(ctx context.Context, cursor api.MetadataScanCursor, count int) (api.MetadataPage, error) {
	where, args := "1 = 1", []any{}
	if !cursor.AtStart {
		where, args = "source_id > ?", []any{cursor.SourceID}
	}
	query := fmt.Sprintf(
		"SELECT source_id, count, state, updated_at FROM %s WHERE %s ORDER BY source_id ASC LIMIT ?",
		s.names.metadata, where,
	)
	args = append(args, count+1)

	var rows []api.Metadata
	err := s.exec.Select(ctx, executor.SelectCopy, query, args, func(r executor.Rows) error {
		for r.Next() {
			m, err := scanMetadataRows(r)
			if err != nil {
				return err
			}
			rows = append(rows, m)
		}
		return nil
	})
	if err != nil {
		return api.MetadataPage{}, s.wrap(err)
	}

	if len(rows) > count {
		// rows[count] only proves a next page exists; the cursor must
		// exclude the last row actually returned (rows[count-1]), not the
		// peeked row, or that row is silently dropped from every scan.
		next := api.MetadataScanCursor{SourceID: rows[count-1].SourceID}
		return api.MetadataPage{Rows: rows[:count], Next: next}, nil
	}
	return api.MetadataPage{Rows: rows, Done: true}, nil
}

// SelectAll implements select_all (§4.4): a full, copy-oriented scan of
// the edges table ordered (source_id ASC, destination_id ASC).
func (s *Shard) SelectAll(ctx context.Context, cursor api.EdgeScanCursor, count int) (api.EdgePage, error) {
	where, args := "1 = 1", []any{}
	if !cursor.AtStart {
		where = "(source_id = ? AND destination_id > ?) OR source_id > ?"
		args = []any{cursor.SourceID, cursor.DestinationID, cursor.SourceID}
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s ORDER BY source_id ASC, destination_id ASC LIMIT ?",
		edgeColumns, s.names.edges, where,
	)
	args = append(args, count+1)

	var rows []api.Edge
	err := s.exec.Select(ctx, executor.SelectCopy, query, args, func(r executor.Rows) error {
		for r.Next() {
			e, err := scanEdgeRows(r)
			if err != nil {
				return err
			}
			rows = append(rows, e)
		}
		return nil
	})
	if err != nil {
		return api.EdgePage{}, s.wrap(err)
	}

	if len(rows) > count {
		// Same boundary-row correction as SelectAllMetadata above.
		last := rows[count-1]
		next := api.EdgeScanCursor{SourceID: last.SourceID, DestinationID: last.DestinationID}
		return api.EdgePage{Rows: rows[:count], Next: next}, nil
	}
	return api.EdgePage{Rows: rows, Done: true}, nil
}

// SelectByDestinationID implements select_by_destination_id (§4.4):
// paginated by destination_id, index (source_id, destination_id).
func (s *Shard) SelectByDestinationID(ctx context.Context, sourceID uint64, states []api.State, count int, cursor api.Cursor) (api.ResultWindow, error) {
	stateSQL, stateArgs := stateFilter(states)
	spec := pageSpec{
		table:     s.names.edges,
		columns:   edgeColumns,
		orderCol:  "destination_id",
		filterSQL: "source_id = ? AND " + stateSQL,
		filterArg: appendArgs([]any{sourceID}, stateArgs...),
		extract:   func(e api.Edge) int64 { return int64(e.DestinationID) },
	}
	w, err := s.pagedSelect(ctx, spec, cursor, count)
	return w, s.wrap(err)
}

// SelectIncludingArchived implements select_including_archived (§4.4):
// paginated by destination_id, predicate state != Removed.
func (s *Shard) SelectIncludingArchived(ctx context.Context, sourceID uint64, count int, cursor api.Cursor) (api.ResultWindow, error) {
	spec := pageSpec{
		table:     s.names.edges,
		columns:   edgeColumns,
		orderCol:  "destination_id",
		filterSQL: "source_id = ? AND state != ?",
		filterArg: []any{sourceID, int8(api.Removed)},
		extract:   func(e api.Edge) int64 { return int64(e.DestinationID) },
	}
	w, err := s.pagedSelect(ctx, spec, cursor, count)
	return w, s.wrap(err)
}

// IDWindow is the lightweight counterpart to ResultWindow returned by
// SelectByPosition: destination ids only, per spec.md's distinction
// between select_by_position and select_edges (the latter returns full
// edge rows over the same ordering).
type IDWindow struct {
	IDs        []uint64
	NextCursor api.Cursor
	PrevCursor api.Cursor
}

func (s *Shard) positionSpec(sourceID uint64, states []api.State) pageSpec {
	stateSQL, stateArgs := stateFilter(states)
	return pageSpec{
		table:     s.names.edges,
		columns:   edgeColumns,
		orderCol:  "position",
		filterSQL: "source_id = ? AND " + stateSQL,
		filterArg: appendArgs([]any{sourceID}, stateArgs...),
		extract:   func(e api.Edge) int64 { return e.Position },
	}
}

// SelectByPosition implements select_by_position (§4.4): paginated by
// position, the table's primary-key index. Returns destination ids only.
func (s *Shard) SelectByPosition(ctx context.Context, sourceID uint64, states []api.State, count int, cursor api.Cursor) (IDWindow, error) {
	w, err := s.pagedSelect(ctx, s.positionSpec(sourceID, states), cursor, count)
	if err != nil {
		return IDWindow{}, s.wrap(err)
	}
	ids := make([]uint64, len(w.Page))
	for i, e := range w.Page {
		ids[i] = e.DestinationID
	}
	return IDWindow{IDs: ids, NextCursor: w.NextCursor, PrevCursor: w.PrevCursor}, nil
}

// SelectEdges implements select_edges (§4.4): like SelectByPosition but
// returns full edge rows.
func (s *Shard) SelectEdges(ctx context.Context, sourceID uint64, states []api.State, count int, cursor api.Cursor) (api.ResultWindow, error) {
	w, err := s.pagedSelect(ctx, s.positionSpec(sourceID, states), cursor, count)
	return w, s.wrap(err)
}

// Intersect implements intersect (§4.4): destination ids matching any of
// destinationIDs, ordered destination_id DESC. Empty input returns empty
// output without a round trip.
func (s *Shard) Intersect(ctx context.Context, sourceID uint64, states []api.State, destinationIDs []uint64) ([]uint64, error) {
	edges, err := s.IntersectEdges(ctx, sourceID, states, destinationIDs)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(edges))
	for i, e := range edges {
		ids[i] = e.DestinationID
	}
	return ids, nil
}

// IntersectEdges implements intersect_edges (§4.4).
func (s *Shard) IntersectEdges(ctx context.Context, sourceID uint64, states []api.State, destinationIDs []uint64) ([]api.Edge, error) {
	if len(destinationIDs) == 0 {
		return nil, nil
	}

	stateSQL, stateArgs := stateFilter(states)
	placeholders := make([]string, len(destinationIDs))
	destArgs := make([]any, len(destinationIDs))
	for i, id := range destinationIDs {
		placeholders[i] = "?"
		destArgs[i] = id
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE source_id = ? AND %s AND destination_id IN (%s) ORDER BY destination_id DESC",
		edgeColumns, s.names.edges, stateSQL, strings.Join(placeholders, ", "),
	)
	args := appendArgs([]any{sourceID}, stateArgs...)
	args = appendArgs(args, destArgs...)

	var edges []api.Edge
	err := s.exec.Select(ctx, executor.Select, query, args, func(r executor.Rows) error {
		for r.Next() {
			e, err := scanEdgeRows(r)
			if err != nil {
				return err
			}
			edges = append(edges, e)
		}
		return nil
	})
	return edges, s.wrap(err)
}

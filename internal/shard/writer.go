package shard

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/mindcrime/flockdb/api"
	"github.com/mindcrime/flockdb/internal/executor"
	"github.com/mindcrime/flockdb/internal/metrics"
)

// Write is the single-edge upsert path (§4.2): open a metadata
// transaction on edge.SourceID, apply the monotonic write, reconcile the
// source's count, commit. It is the entry point every lifecycle wrapper
// funnels through.
func (s *Shard) Write(ctx context.Context, edge api.Edge) error {
	if !edge.State.Valid() {
		return s.wrap(invalidState(edge.State))
	}

	tries := s.retries
	var lastErr error
	for attempt := 0; attempt < tries; attempt++ {
		err := s.writeOnce(ctx, edge, true)
		if err == nil {
			return nil
		}
		lastErr = err

		switch {
		case executor.IsDeadlock(err):
			metrics.DeadlockRetries.WithLabelValues(boolLabel(attempt == tries-1)).Inc()
			continue // retry with identical arguments, per §4.2/§5
		case executor.IsIntegrityViolation(err):
			// Workaround retained for wire compatibility (spec Design Note
			// §9.3): positions are client-supplied, so a collision on
			// (source_id, state, position) is resolved by nudging the
			// position and retrying the whole write. TODO: positions
			// should be allocated by the engine, not supplied by the
			// client — see spec Design Note §9.3.
			metrics.PositionCollisionRetries.Inc()
			edge.Position++
			continue
		default:
			return s.wrap(err)
		}
	}
	return s.wrap(lastErr)
}

// writeCopy is the bulk-copy fallback path (§4.3 step 4): write_edge
// with predict_existence=false, run inside a transaction the caller
// already holds. It returns the count delta directly — there is no
// outer retry loop here, the retry belongs to write_copies' burst-level
// recovery.
func (s *Shard) writeCopy(ctx context.Context, tx executor.Tx, md api.Metadata, edge api.Edge) (int32, error) {
	return s.writeEdgeTx(ctx, tx, md, edge, false)
}

func (s *Shard) writeOnce(ctx context.Context, edge api.Edge, predictExistence bool) error {
	return s.atomically(ctx, edge.SourceID, func(tx executor.Tx, md api.Metadata) error {
		delta, err := s.writeEdgeTx(ctx, tx, md, edge, predictExistence)
		if err != nil {
			return err
		}
		if delta == 0 {
			return nil
		}
		return s.applyCountDelta(ctx, tx, edge.SourceID, delta, true)
	})
}

// writeEdgeTx implements write_edge (§4.2): dispatch to insert or update
// depending on predictExistence, then sign the resulting magnitude by
// whether edge.State matches the source's current metadata state.
func (s *Shard) writeEdgeTx(ctx context.Context, tx executor.Tx, md api.Metadata, edge api.Edge, predictExistence bool) (int32, error) {
	var magnitude int32
	var err error

	if predictExistence {
		existing, found, gerr := s.getEdgeTx(ctx, tx, edge.SourceID, edge.DestinationID)
		if gerr != nil {
			return 0, gerr
		}
		if found {
			magnitude, err = s.updateEdgeTx(ctx, tx, md, existing, edge)
		} else {
			magnitude, err = s.insertEdgeTx(ctx, tx, md, edge)
		}
	} else {
		magnitude, err = s.insertEdgeTx(ctx, tx, md, edge)
		if executor.IsIntegrityViolation(err) {
			existing, found, gerr := s.getEdgeTx(ctx, tx, edge.SourceID, edge.DestinationID)
			if gerr != nil {
				return 0, gerr
			}
			if !found {
				return 0, nil
			}
			magnitude, err = s.updateEdgeTx(ctx, tx, md, existing, edge)
		}
	}
	if err != nil {
		return 0, err
	}

	if edge.State == md.State {
		return magnitude, nil
	}
	return -magnitude, nil
}

// getEdgeTx is a point lookup by (source_id, destination_id) scoped to
// the open transaction, so it observes the transaction's own uncommitted
// writes.
func (s *Shard) getEdgeTx(ctx context.Context, tx executor.Tx, sourceID, destinationID uint64) (api.Edge, bool, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE source_id = ? AND destination_id = ?", edgeColumns, s.names.edges)
	var e api.Edge
	found, err := tx.SelectOne(ctx, executor.SelectModify, query, []any{sourceID, destinationID}, func(row executor.Row) error {
		var err error
		e, err = scanEdge(row)
		return err
	})
	return e, found, err
}

// insertEdgeTx implements insert_edge (§4.2).
func (s *Shard) insertEdgeTx(ctx context.Context, tx executor.Tx, md api.Metadata, edge api.Edge) (int32, error) {
	query := fmt.Sprintf(
		"INSERT INTO %s (source_id, position, updated_at, destination_id, count, state) VALUES (?, ?, ?, ?, ?, ?)",
		s.names.edges,
	)
	_, err := tx.Execute(ctx, query,
		edge.SourceID, edge.Position, edge.UpdatedAt, edge.DestinationID, edge.Count, int8(edge.State))
	if err != nil {
		return 0, err
	}
	if edge.State == md.State {
		return 1, nil
	}
	return 0, nil
}

// updateEdgeTx implements update_edge (§4.2), including the monotonic
// rejection at equal timestamps and the state-boundary-crossing count rule.
func (s *Shard) updateEdgeTx(ctx context.Context, tx executor.Tx, md api.Metadata, old, newEdge api.Edge) (int32, error) {
	if old.UpdatedAt == newEdge.UpdatedAt && api.MaxState(old.State, newEdge.State) != newEdge.State {
		return 0, nil
	}

	var query string
	var args []any
	reactivating := old.State != api.Archived && newEdge.State == api.Normal
	if reactivating {
		// Reactivation replaces position (§4.2, S4). A position collision
		// here is retried below with newEdge.Position perturbed.
		query = fmt.Sprintf(
			"UPDATE %s SET updated_at = ?, position = ?, count = 0, state = ? WHERE source_id = ? AND destination_id = ? AND updated_at <= ?",
			s.names.edges,
		)
		args = []any{newEdge.UpdatedAt, newEdge.Position, int8(newEdge.State), old.SourceID, old.DestinationID, newEdge.UpdatedAt}
	} else {
		query = fmt.Sprintf(
			"UPDATE %s SET updated_at = ?, position = ?, count = 0, state = ? WHERE source_id = ? AND destination_id = ? AND updated_at <= ?",
			s.names.edges,
		)
		args = []any{newEdge.UpdatedAt, old.Position, int8(newEdge.State), old.SourceID, old.DestinationID, newEdge.UpdatedAt}
	}

	rows, err := tx.Execute(ctx, query, args...)
	if executor.IsIntegrityViolation(err) {
		// Position kept from old unless this is the reactivation branch
		// above (which already supplied its own position); perturb whichever
		// position the update writes by a random offset in [1, 999] and
		// retry the update. Acknowledged hack retained for wire
		// compatibility (spec Design Note §9.3): positions should be
		// allocated, not client-supplied.
		offset := 1 + int64(rand.Intn(999))
		perturbedOld, perturbedNew := old, newEdge
		if reactivating {
			perturbedNew.Position += offset
		} else {
			perturbedOld.Position += offset
		}
		metrics.PositionCollisionRetries.Inc()
		return s.updateEdgeTx(ctx, tx, md, perturbedOld, perturbedNew)
	}
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		return 0, nil
	}

	if newEdge.State != old.State && (old.State == md.State || newEdge.State == md.State) {
		return int32(rows), nil
	}
	return 0, nil
}

// applyCountDelta updates the metadata row's count by delta. When clamp
// is true (the single-edge path, §4.2 step 3) the result is floored at
// zero — SQLite has no GREATEST(); the floor is expressed with CASE,
// the portable equivalent of the original GREATEST(count + delta, 0).
// When clamp is false (the bulk-copy path, §4.3 step 5) no floor is
// applied: copy paths assume non-negative totals by construction.
func (s *Shard) applyCountDelta(ctx context.Context, tx executor.Tx, sourceID uint64, delta int32, clamp bool) error {
	var query string
	if clamp {
		query = fmt.Sprintf(
			"UPDATE %s SET count = CASE WHEN count + ? < 0 THEN 0 ELSE count + ? END WHERE source_id = ?",
			s.names.metadata,
		)
		_, err := tx.Execute(ctx, query, delta, delta, sourceID)
		return err
	}
	query = fmt.Sprintf("UPDATE %s SET count = count + ? WHERE source_id = ?", s.names.metadata)
	_, err := tx.Execute(ctx, query, delta, sourceID)
	return err
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

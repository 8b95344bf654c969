package shard

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/mindcrime/flockdb/api"
	"github.com/mindcrime/flockdb/internal/executor"
	"github.com/mindcrime/flockdb/internal/metrics"
)

// WriteCopies implements write_copies (§4.3): edges must already be
// grouped contiguously by SourceID (caller-guaranteed, per spec — a
// burst boundary is detected by equality against the current group's
// head, not by a separate sort pass).
func (s *Shard) WriteCopies(ctx context.Context, edges []api.Edge) error {
	i := 0
	for i < len(edges) {
		sourceID := edges[i].SourceID
		j := i + 1
		for j < len(edges) && edges[j].SourceID == sourceID {
			j++
		}
		if err := s.writeBurst(ctx, sourceID, edges[i:j]); err != nil {
			return s.wrap(err)
		}
		i = j
	}
	return nil
}

// writeBurst implements one contiguous same-source burst of write_copies
// (§4.3 steps 1-6): attempt a batch insert, fall back row-by-row for
// whatever the batch rejected, reconcile the metadata count once, commit.
func (s *Shard) writeBurst(ctx context.Context, sourceID uint64, burst []api.Edge) error {
	stopTimer := metrics.ObserveBurst()
	outcome := "batch"

	err := s.atomically(ctx, sourceID, func(tx executor.Tx, md api.Metadata) error {
		delta, failed, err := s.insertBurst(ctx, tx, md, burst)
		if err != nil {
			return err
		}

		if !failed.IsEmpty() {
			metrics.BatchFallbacks.Inc()
			outcome = "fallback"

			it := failed.Iterator()
			for it.HasNext() {
				idx := it.Next()
				fallbackDelta, ferr := s.writeCopy(ctx, tx, md, burst[idx])
				if ferr != nil {
					return ferr
				}
				delta += fallbackDelta
			}
		}

		if delta == 0 {
			return nil
		}
		// No GREATEST clamp here (§4.3 step 5): copy paths assume
		// non-negative totals by construction.
		return s.applyCountDelta(ctx, tx, sourceID, delta, false)
	})

	stopTimer(outcome)
	return err
}

// insertBurst attempts a batched insert of burst (one ExecuteBatch call,
// one row per arg set) and returns
// the provisional count delta (rows whose state matches the source's
// metadata state) plus a bitmap of burst-relative indices that the
// batch rejected — typically on a (source_id, destination_id) or
// (source_id, state, position) collision.
func (s *Shard) insertBurst(ctx context.Context, tx executor.Tx, md api.Metadata, burst []api.Edge) (int32, *roaring.Bitmap, error) {
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?)",
		s.names.edges, edgeColumns,
	)
	argSets := make([][]any, len(burst))
	for i, e := range burst {
		argSets[i] = []any{e.SourceID, e.Position, e.UpdatedAt, e.DestinationID, e.Count, int8(e.State)}
	}

	statuses, err := tx.ExecuteBatch(ctx, query, argSets)
	if err != nil {
		return 0, nil, err
	}

	failed := roaring.New()
	var delta int32
	for i, st := range statuses {
		if st.Failed() {
			failed.Add(uint32(i))
			continue
		}
		if burst[i].State == md.State {
			delta++
		}
	}
	return delta, failed, nil
}

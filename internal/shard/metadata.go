package shard

import (
	"context"
	"errors"
	"fmt"

	"github.com/mindcrime/flockdb/api"
	"github.com/mindcrime/flockdb/internal/executor"
)

// atomically runs f inside a transaction that has locked the metadata
// row for sourceID, per §4.1. SQLite has no SELECT ... FOR UPDATE; the
// row lock is simulated by reading the row inside the same write
// transaction that will update it — under WAL, SQLite admits at most
// one writer transaction at a time, which serializes two callers
// atomically()-ing the same source exactly as a row lock would on a
// backend that supports one.
//
// If the metadata row does not exist, f never runs: atomically inserts a
// default row outside the transaction (ignoring a unique-violation race
// against another caller doing the same thing) and retries from scratch.
func (s *Shard) atomically(ctx context.Context, sourceID uint64, f func(tx executor.Tx, md api.Metadata) error) error {
	for {
		txErr := s.exec.Transaction(ctx, func(tx executor.Tx) error {
			md, ok, err := s.lockMetadata(ctx, tx, sourceID)
			if err != nil {
				return err
			}
			if !ok {
				return errMissingMetadataRow
			}
			return f(tx, md)
		})

		if errors.Is(txErr, errMissingMetadataRow) {
			if err := s.insertDefaultMetadata(ctx, sourceID); err != nil && !executor.IsIntegrityViolation(err) {
				return err
			}
			continue
		}
		return txErr
	}
}

// lockMetadata reads the metadata row for sourceID inside tx. The second
// return value is false if no row exists yet.
func (s *Shard) lockMetadata(ctx context.Context, tx executor.Tx, sourceID uint64) (api.Metadata, bool, error) {
	query := fmt.Sprintf("SELECT source_id, count, state, updated_at FROM %s WHERE source_id = ?", s.names.metadata)
	var md api.Metadata
	found, err := tx.SelectOne(ctx, executor.SelectModify, query, []any{sourceID}, func(row executor.Row) error {
		var state int8
		if err := row.Scan(&md.SourceID, &md.Count, &state, &md.UpdatedAt); err != nil {
			return err
		}
		md.State = api.State(state)
		return nil
	})
	if err != nil {
		return api.Metadata{}, false, err
	}
	return md, found, nil
}

// insertDefaultMetadata computes the Normal-state edge count for
// sourceID and inserts a default metadata row, per §4.1. A collision
// with another caller doing the same lazy insert is swallowed by the
// caller (atomically), not here, so this always reports the classified
// error it saw.
func (s *Shard) insertDefaultMetadata(ctx context.Context, sourceID uint64) error {
	count, err := s.countEdgesInState(ctx, sourceID, api.Normal)
	if err != nil {
		return err
	}

	md := defaultMetadata(sourceID, count)
	query := fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (source_id, count, state, updated_at) VALUES (?, ?, ?, ?)",
		s.names.metadata,
	)
	_, err = s.exec.Execute(ctx, query, md.SourceID, md.Count, int8(md.State), md.UpdatedAt)
	return err
}

// countEdgesInState scans edges for sourceID and returns how many carry
// state. Used to seed a lazily-created metadata row and by
// update_metadata's full recount (§4.5).
func (s *Shard) countEdgesInState(ctx context.Context, sourceID uint64, state api.State) (int32, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE source_id = ? AND state = ?", s.names.edges)
	var count int32
	_, err := s.exec.SelectOne(ctx, executor.Select, query, []any{sourceID, int8(state)}, func(row executor.Row) error {
		return row.Scan(&count)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// countEdgesInStateTx is the transaction-scoped variant, used when the
// recount must see uncommitted writes from the same transaction.
func (s *Shard) countEdgesInStateTx(ctx context.Context, tx executor.Tx, sourceID uint64, state api.State) (int32, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE source_id = ? AND state = ?", s.names.edges)
	var count int32
	_, err := tx.SelectOne(ctx, executor.SelectModify, query, []any{sourceID, int8(state)}, func(row executor.Row) error {
		return row.Scan(&count)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

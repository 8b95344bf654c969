// Package shard implements the per-shard graph-edge storage engine
// described by spec.md: the monotonic edge/metadata write protocol,
// locked metadata transactions with deadlock retry, cursor-paginated
// reads, and bulk copy ingestion. It depends only on internal/executor's
// Executor contract and a clock — never on a concrete SQL driver.
package shard

import (
	"fmt"

	"github.com/mindcrime/flockdb/api"
	"github.com/mindcrime/flockdb/internal/executor"
)

// tableNames is the Schema/codec component's row<->entity translation
// surface: the two table names this shard owns, derived from the
// configured prefix (§6.2).
type tableNames struct {
	edges    string
	metadata string
}

func namesFor(prefix string) tableNames {
	return tableNames{
		edges:    prefix + "_edges",
		metadata: prefix + "_metadata",
	}
}

// edgeColumns lists the edges table columns in the fixed order every
// SELECT/INSERT in this package uses.
const edgeColumns = "source_id, position, updated_at, destination_id, count, state"

// scanEdge reads one row shaped like edgeColumns into an api.Edge.
func scanEdge(row executor.Row) (api.Edge, error) {
	var e api.Edge
	var state int8
	if err := row.Scan(&e.SourceID, &e.Position, &e.UpdatedAt, &e.DestinationID, &e.Count, &state); err != nil {
		return api.Edge{}, err
	}
	e.State = api.State(state)
	return e, nil
}

// scanEdgeRows reads one row from an executor.Rows cursor shaped like
// edgeColumns into an api.Edge.
func scanEdgeRows(rows executor.Rows) (api.Edge, error) {
	var e api.Edge
	var state int8
	if err := rows.Scan(&e.SourceID, &e.Position, &e.UpdatedAt, &e.DestinationID, &e.Count, &state); err != nil {
		return api.Edge{}, err
	}
	e.State = api.State(state)
	return e, nil
}

// scanMetadataRows reads one (source_id, count, state, updated_at) row.
func scanMetadataRows(rows executor.Rows) (api.Metadata, error) {
	var m api.Metadata
	var state int8
	if err := rows.Scan(&m.SourceID, &m.Count, &state, &m.UpdatedAt); err != nil {
		return api.Metadata{}, err
	}
	m.State = api.State(state)
	return m, nil
}

// defaultMetadata builds the row the transactor lazily inserts on first
// reference: count computed from a scan of Normal-state edges, state
// Normal, updated_at 0.
func defaultMetadata(sourceID uint64, count int32) api.Metadata {
	return api.Metadata{SourceID: sourceID, Count: count, State: api.Normal, UpdatedAt: 0}
}

func invalidState(s api.State) error {
	return fmt.Errorf("shard: invalid state %d", int8(s))
}

package shard

import (
	"context"
	"fmt"
	"strings"

	"github.com/mindcrime/flockdb/api"
	"github.com/mindcrime/flockdb/internal/executor"
)

// pageSpec composes one bidirectionally-ordered, parameterized range
// query: a fixed WHERE prefix (the caller's filter) plus a single
// ordering column the paging protocol drives.
type pageSpec struct {
	table     string
	columns   string
	orderCol  string
	filterSQL string // e.g. "source_id = ? AND state IN (?, ?)"; may be ""
	filterArg []any
	extract   func(api.Edge) int64 // pulls the ordering column's value back out of a scanned row
}

func (p pageSpec) whereClause() string {
	if p.filterSQL == "" {
		return "1 = 1"
	}
	return p.filterSQL
}

// pagedSelect implements the §4.4 bidirectional paging protocol. Per
// spec Design Note §9.2, the "single UNION query" in the original is
// modeled here as two structured queries (page, then continuation
// probe) issued through the Executor and merged in Go — the contract
// that matters is one call in, one ResultWindow out, not a specific SQL
// dialect feature.
func (s *Shard) pagedSelect(ctx context.Context, spec pageSpec, cursor api.Cursor, count int) (api.ResultWindow, error) {
	forward := cursor.Forward()
	comparand := cursor.Magnitude()

	// oppOp/oppOrder are the OTHER direction's own dirOp/dirOrder: probing
	// with them from this page's near boundary answers exactly the
	// question "would paging the other way from here return anything."
	dirOp, dirOrder, oppOp, oppOrder := "<", "DESC", ">", "ASC"
	if !forward {
		dirOp, dirOrder, oppOp, oppOrder = ">", "ASC", "<", "DESC"
	}

	pageQuery := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s AND %s %s ? ORDER BY %s %s LIMIT ?",
		spec.columns, spec.table, spec.whereClause(), spec.orderCol, dirOp, spec.orderCol, dirOrder,
	)
	pageArgs := appendArgs(spec.filterArg, comparand, count+1)

	var rows []api.Edge
	err := s.exec.Select(ctx, executor.Select, pageQuery, pageArgs, func(r executor.Rows) error {
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
		return api.ResultWindow{}, err
	}

	next := api.End
	page := rows
	if len(rows) > count {
		// rows[count] only proves a next page exists; the boundary the
		// next page's query must exclude is the last row actually
		// returned (rows[count-1]), not the peeked row itself.
		last := rows[count-1]
		val := spec.extract(last)
		if forward {
			next = api.ForwardFrom(val)
		} else {
			next = api.BackwardFrom(val)
		}
		page = rows[:count]
	}

	prev := api.End
	if len(page) > 0 {
		// The near boundary of this page (page[0], still in query order)
		// is the anchor a "page the other way" cursor must use: querying
		// it with the opposite direction's own operator reconstructs
		// everything on the far side without skipping or repeating it.
		boundary := spec.extract(page[0])
		probeQuery := fmt.Sprintf(
			"SELECT %s FROM %s WHERE %s AND %s %s ? ORDER BY %s %s LIMIT 1",
			spec.columns, spec.table, spec.whereClause(), spec.orderCol, oppOp, spec.orderCol, oppOrder,
		)
		probeArgs := appendArgs(spec.filterArg, boundary)

		err = s.exec.Select(ctx, executor.Select, probeQuery, probeArgs, func(r executor.Rows) error {
			if r.Next() {
				if forward {
					prev = api.BackwardFrom(boundary)
				} else {
					prev = api.ForwardFrom(boundary)
				}
			}
			return nil
		})
		if err != nil {
			return api.ResultWindow{}, err
		}
	}

	if !forward {
		reverseEdges(page)
	}

	return api.ResultWindow{Page: page, NextCursor: next, PrevCursor: prev}, nil
}

func reverseEdges(edges []api.Edge) {
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
}

func appendArgs(base []any, extra ...any) []any {
	out := make([]any, 0, len(base)+len(extra))
	out = append(out, base...)
	out = append(out, extra...)
	return out
}

// stateFilter builds a "state IN (?, ?, ...)" fragment and its args for
// a non-empty state list.
func stateFilter(states []api.State) (string, []any) {
	if len(states) == 0 {
		return "1 = 0", nil // empty state set matches nothing
	}
	placeholders := make([]string, len(states))
	args := make([]any, len(states))
	for i, st := range states {
		placeholders[i] = "?"
		args[i] = int8(st)
	}
	return "state IN (" + strings.Join(placeholders, ", ") + ")", args
}

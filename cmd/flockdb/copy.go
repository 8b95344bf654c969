package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mindcrime/flockdb/api"
)

// parseEdgeLine parses "source_id,destination_id,position,updated_at,state".
func parseEdgeLine(line string) (api.Edge, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 5 {
		return api.Edge{}, fmt.Errorf("expected 5 comma-separated fields, got %d", len(fields))
	}
	sourceID, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return api.Edge{}, fmt.Errorf("source_id: %w", err)
	}
	destID, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return api.Edge{}, fmt.Errorf("destination_id: %w", err)
	}
	position, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return api.Edge{}, fmt.Errorf("position: %w", err)
	}
	updatedAt, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return api.Edge{}, fmt.Errorf("updated_at: %w", err)
	}
	state, err := strconv.ParseInt(fields[4], 10, 8)
	if err != nil {
		return api.Edge{}, fmt.Errorf("state: %w", err)
	}

	return api.Edge{
		SourceID:      sourceID,
		DestinationID: destID,
		Position:      position,
		UpdatedAt:     uint32(updatedAt),
		Count:         1,
		State:         api.State(state),
	}, nil
}

func newCopyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy <file>",
		Short: "Bulk-load edges grouped by source from a comma-delimited file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := uuid.New().String()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }() // safe to ignore

			var edges []api.Edge
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				edge, err := parseEdgeLine(line)
				if err != nil {
					return fmt.Errorf("line %q: %w", line, err)
				}
				edges = append(edges, edge)
			}
			if err := scanner.Err(); err != nil {
				return err
			}

			sh, closeFn, err := openShard()
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }() // safe to ignore

			if err := sh.WriteCopies(context.Background(), edges); err != nil {
				return fmt.Errorf("copy run %s: %w", runID, err)
			}
			fmt.Printf("copy run %s: copied %d edges\n", runID, len(edges))
			return nil
		},
	}
	return cmd
}

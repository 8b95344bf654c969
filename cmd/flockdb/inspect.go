package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/mindcrime/flockdb/api"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <source-id>",
		Short: "Print a source's metadata and a first page of Normal edges as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parse source id: %w", err)
			}

			sh, closeFn, err := openShard()
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }() // safe to ignore

			ctx := context.Background()
			count, err := sh.Count(ctx, sourceID, []api.State{api.Normal})
			if err != nil {
				return err
			}
			window, err := sh.SelectByDestinationID(ctx, sourceID, []api.State{api.Normal}, 20, api.Start)
			if err != nil {
				return err
			}

			out := map[string]any{
				"source_id":    sourceID,
				"normal_count": count,
				"page":         window.Page,
			}
			b, err := oj.Marshal(out)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		},
	}
	return cmd
}

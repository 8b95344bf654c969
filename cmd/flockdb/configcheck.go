package main

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/mindcrime/flockdb/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Shard configuration diagnostics",
	}
	cmd.AddCommand(newConfigCheckCmd())
	return cmd
}

func newConfigCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Decode an HCL shard config file and print it back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}

			password := ""
			if cfg.DBPassword != "" {
				password = "<redacted>"
			}

			out := map[string]any{
				"table_prefix":       cfg.TablePrefix,
				"db_name":            cfg.EdgesDBName,
				"username":           cfg.DBUsername,
				"password":           password,
				"deadlock_retries":   cfg.Retries(),
				"query_timeout_ms":   cfg.QueryTimeout().Milliseconds(),
				"source_column_type": cfg.SourceColumnType,
				"dest_column_type":   cfg.DestColumnType,
			}
			b, err := oj.Marshal(out)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		},
	}
}

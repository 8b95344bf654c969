// Command flockdb is an administrative CLI over one shard: inspect a
// source's metadata and edges, bulk-load edges from a file, or validate
// a shard configuration file. It never issues DDL — the tables it talks
// to must already exist (spec.md §1's schema-DDL boundary).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath     string
	configPath string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flockdb",
		Short: "Administrative CLI for a single flockdb shard",
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "shard.sqlite", "path to the shard's SQLite database file")
	root.PersistentFlags().StringVar(&configPath, "config", "shard.hcl", "path to the shard's HCL config file")

	root.AddCommand(newInspectCmd())
	root.AddCommand(newCopyCmd())
	root.AddCommand(newConfigCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

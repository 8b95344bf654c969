// Package config loads the shard-level settings the engine consumes
// (spec.md §6.4) from an HCL file. This is the "process-level
// configuration loading" spec.md §1 calls out as an external
// collaborator — the engine package itself never imports this package,
// it only ever receives an already-populated api.Config value.
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/mindcrime/flockdb/api"
)

// Load decodes an HCL shard configuration file, e.g.:
//
//	table_prefix     = "edges"
//	db_name          = "graph_shard_07"
//	username         = "flockdb"
//	password         = "changeme"
//	deadlock_retries = 3
//	query_timeout_ms = 5000
//	source_column_type = "BIGINT UNSIGNED"
//	dest_column_type   = "BIGINT UNSIGNED"
func Load(path string) (api.Config, error) {
	var cfg api.Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return api.Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if cfg.TablePrefix == "" {
		return api.Config{}, fmt.Errorf("config: %s: table_prefix is required", path)
	}
	return cfg, nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindcrime/flockdb/api"
)

func writeHCL(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shard.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDecodesRequiredAndOptionalFields(t *testing.T) {
	path := writeHCL(t, `
table_prefix     = "edges"
db_name          = "graph_shard_07"
username         = "flockdb"
password         = "changeme"
deadlock_retries = 5
query_timeout_ms = 1500
source_column_type = "BIGINT UNSIGNED"
dest_column_type   = "BIGINT UNSIGNED"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "edges", cfg.TablePrefix)
	assert.Equal(t, "graph_shard_07", cfg.EdgesDBName)
	assert.Equal(t, "flockdb", cfg.DBUsername)
	assert.Equal(t, 5, cfg.DeadlockRetries)
	assert.Equal(t, 5, cfg.Retries())
	assert.Equal(t, 1500*time.Millisecond, cfg.QueryTimeout())
}

func TestLoadAppliesDefaultRetries(t *testing.T) {
	path := writeHCL(t, `
table_prefix = "edges"
db_name      = "graph_shard_07"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Retries())
	assert.Equal(t, api.DefaultQueryTimeout, cfg.QueryTimeout())
}

func TestLoadRequiresTablePrefix(t *testing.T) {
	path := writeHCL(t, `db_name = "graph_shard_07"`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.hcl"))
	require.Error(t, err)
}

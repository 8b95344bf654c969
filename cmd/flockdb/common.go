package main

import (
	"fmt"

	"github.com/mindcrime/flockdb/internal/config"
	"github.com/mindcrime/flockdb/internal/executor"
	"github.com/mindcrime/flockdb/internal/shard"
)

func openShard() (*shard.Shard, func() error, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	exec, err := executor.Open(cfg.TablePrefix, dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	return shard.New(cfg.TablePrefix, exec, cfg, nil), exec.Close, nil
}

package main

import (
	"flag"
	"fmt"
)

const (
	defaultBatchSize = 500
	storeMemory      = "memory"
	storeSQLite      = "sqlite"
)

// Config holds the replay parameters
type Config struct {
	ConfigFile string // Subgraph config file; the network and RPC sections are used
	EnvPath    string
	FromBlock  uint64
	ToBlock    uint64
	BatchSize  uint64
	Store      string // memory or sqlite
	SQLitePath string
	OutputFile string // Output markdown file path (optional)
	Debug      bool
}

func parseFlags() (*Config, error) {
	cfg := &Config{}

	flag.StringVar(&cfg.ConfigFile, "config", "", "Path to subgraph configuration file")
	flag.StringVar(&cfg.EnvPath, "env", "config/", "Path to environment files")
	flag.Uint64Var(&cfg.FromBlock, "from", 0, "First block to replay (required)")
	flag.Uint64Var(&cfg.ToBlock, "to", 0, "Last block to replay (required)")
	flag.Uint64Var(&cfg.BatchSize, "batch", defaultBatchSize, "Blocks per log query")
	flag.StringVar(&cfg.Store, "store", storeMemory, "Entity store: memory or sqlite")
	flag.StringVar(&cfg.SQLitePath, "sqlite-path", "benchmark.db", "SQLite file used with -store=sqlite")
	flag.StringVar(&cfg.OutputFile, "output", "", "Output markdown file path (optional)")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")

	flag.Parse()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ToBlock == 0 {
		return fmt.Errorf("-to is required")
	}
	if c.FromBlock > c.ToBlock {
		return fmt.Errorf("-from %d is after -to %d", c.FromBlock, c.ToBlock)
	}
	if c.BatchSize == 0 {
		c.BatchSize = defaultBatchSize
	}
	switch c.Store {
	case storeMemory, storeSQLite:
	default:
		return fmt.Errorf("unsupported -store %q", c.Store)
	}
	return nil
}

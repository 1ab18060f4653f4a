package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/feral-file/ff-marketplace-subgraph/internal/adapter"
	"github.com/feral-file/ff-marketplace-subgraph/internal/attributes"
	"github.com/feral-file/ff-marketplace-subgraph/internal/block"
	"github.com/feral-file/ff-marketplace-subgraph/internal/config"
	"github.com/feral-file/ff-marketplace-subgraph/internal/indexer"
	"github.com/feral-file/ff-marketplace-subgraph/internal/ledger"
	"github.com/feral-file/ff-marketplace-subgraph/internal/listings"
	"github.com/feral-file/ff-marketplace-subgraph/internal/logger"
	"github.com/feral-file/ff-marketplace-subgraph/internal/mapping"
	"github.com/feral-file/ff-marketplace-subgraph/internal/providers/ethereum"
	"github.com/feral-file/ff-marketplace-subgraph/internal/store"
	"github.com/feral-file/ff-marketplace-subgraph/internal/uri"
)

// ReplayStats summarizes one replay of a block range
type ReplayStats struct {
	Network       string
	FromBlock     uint64
	ToBlock       uint64
	LastBlock     uint64
	Store         string
	StartTime     time.Time
	Duration      time.Duration
	Events        map[string]int
	HandlerErrors int
	Err           error
}

// TotalEvents returns the number of applied events
func (s *ReplayStats) TotalEvents() int {
	total := 0
	for _, n := range s.Events {
		total += n
	}
	return total
}

// Blocks returns the number of blocks the cursor moved over
func (s *ReplayStats) Blocks() int {
	if s.LastBlock < s.FromBlock {
		return 0
	}
	return int(s.LastBlock - s.FromBlock + 1)
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	stats, err := replay(ctx, cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n\n" + strings.Repeat("=", 80))
	if stats.Err != nil {
		fmt.Println("INTERRUPTED - PARTIAL RESULTS")
	} else {
		fmt.Println("REPLAY RESULTS")
	}
	fmt.Println(strings.Repeat("=", 80))
	printReplayStats(stats)

	// Write to markdown file if specified
	if cfg.OutputFile != "" {
		if err := writeMarkdownReport(cfg.OutputFile, stats); err != nil {
			fmt.Printf("\n⚠️  Warning: Failed to write markdown file: %v\n", err)
		} else {
			fmt.Printf("\n✓ Report written to: %s\n", cfg.OutputFile)
		}
	}

	if stats.Err != nil {
		os.Exit(1)
	}
}

// replay syncs [FromBlock, ToBlock] with the production components into a scratch store
func replay(ctx context.Context, cfg *Config) (*ReplayStats, error) {
	config.ChdirRepoRoot()
	subgraphCfg, err := config.LoadSubgraphConfig(cfg.ConfigFile, cfg.EnvPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		BreadcrumbLevel: zapcore.InfoLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Flush(2 * time.Second)

	network, err := config.BuildNetwork(subgraphCfg.Network)
	if err != nil {
		return nil, err
	}

	dataStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	ethClient, err := adapter.NewEthClientDialer().Dial(ctx, subgraphCfg.Ethereum.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial Ethereum RPC: %w", err)
	}
	ethereumClient := ethereum.NewClient(ethClient, subgraphCfg.Ethereum.ArchiveCalls)
	defer ethereumClient.Close()

	clockAdapter := adapter.NewClock()
	blocks := cappedBlocks{
		BlockProvider: block.NewBlockProvider(
			ethereum.NewEthereumBlockFetcher(ethClient),
			block.Config{TTL: time.Minute, StaleWindow: 5 * time.Minute},
			clockAdapter,
		),
		last: cfg.ToBlock,
	}

	pool := pond.NewPool(subgraphCfg.Indexer.Worker.WorkerPoolSize, pond.WithQueueSize(subgraphCfg.Indexer.Worker.WorkerQueueSize))
	defer pool.StopAndWait()

	fetcher := uri.NewFetcher(adapter.NewHTTPClient(subgraphCfg.IPFS.HTTPTimeout), adapter.NewBase64(), network)
	userLedger := ledger.NewLedger()
	handlers := mapping.NewHandlers(
		ethereumClient,
		fetcher,
		attributes.NewReconciler(fetcher, network),
		listings.NewReconciler(userLedger, network),
		userLedger,
		network,
	)

	registry := prometheus.NewRegistry()
	runner := indexer.NewRunner(
		ethereum.NewLogSource(ethereumClient, blocks, network, pool),
		blocks,
		handlers,
		dataStore,
		indexer.Config{
			Network:         network.Name(),
			StartBlock:      cfg.FromBlock,
			BatchSize:       cfg.BatchSize,
			ActivationBlock: network.RarityActivationBlock(),
		},
		clockAdapter,
		indexer.NewMetrics(registry),
	)

	stats := &ReplayStats{
		Network:   network.Name(),
		FromBlock: cfg.FromBlock,
		ToBlock:   cfg.ToBlock,
		Store:     cfg.Store,
		StartTime: time.Now(),
	}

	for {
		caughtUp, err := runner.Sync(ctx)
		if err != nil {
			stats.Err = err
			break
		}

		cursor, _, _ := dataStore.GetBlockCursor(ctx, network.Name())
		if !cfg.Debug {
			fmt.Printf("\r⏳ Replaying... (block %d/%d, %s, elapsed: %s)    ",
				cursor, cfg.ToBlock,
				percentageString(int(cursor-min(cursor, cfg.FromBlock)), int(cfg.ToBlock-cfg.FromBlock)),
				formatDuration(time.Since(stats.StartTime)))
		}
		if caughtUp {
			break
		}
	}

	stats.Duration = time.Since(stats.StartTime)
	stats.LastBlock, _, _ = dataStore.GetBlockCursor(context.Background(), network.Name())
	families, err := registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}
	collectMetrics(stats, families)
	return stats, nil
}

func openStore(cfg *Config) (store.TxStore, error) {
	if cfg.Store == storeMemory {
		return store.NewMemoryStore(), nil
	}

	db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		return nil, err
	}
	return store.NewGormStore(db), nil
}

// collectMetrics copies the runner's counters into stats
func collectMetrics(stats *ReplayStats, families []*dto.MetricFamily) {
	stats.Events = make(map[string]int)
	for _, family := range families {
		switch family.GetName() {
		case "subgraph_events_total":
			for _, m := range family.GetMetric() {
				for _, label := range m.GetLabel() {
					if label.GetName() == "event" {
						stats.Events[label.GetValue()] += int(m.GetCounter().GetValue())
					}
				}
			}
		case "subgraph_handler_errors_total":
			for _, m := range family.GetMetric() {
				stats.HandlerErrors += int(m.GetCounter().GetValue())
			}
		}
	}
}

// sortedEvents returns the event names by descending count, then by name
func sortedEvents(events map[string]int) []string {
	names := make([]string, 0, len(events))
	for name := range events {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if events[names[i]] != events[names[j]] {
			return events[names[i]] > events[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func printReplayStats(stats *ReplayStats) {
	fmt.Printf("\nNetwork:        %s\n", stats.Network)
	fmt.Printf("Range:          %d - %d\n", stats.FromBlock, stats.ToBlock)
	fmt.Printf("Last Block:     %d\n", stats.LastBlock)
	fmt.Printf("Store:          %s\n", stats.Store)
	fmt.Printf("Duration:       %s\n", formatDuration(stats.Duration))
	fmt.Printf("Blocks:         %d (%s)\n", stats.Blocks(), formatRate(stats.Blocks(), stats.Duration))
	fmt.Printf("Events:         %d (%s)\n", stats.TotalEvents(), formatRate(stats.TotalEvents(), stats.Duration))
	if stats.HandlerErrors > 0 {
		fmt.Printf("Handler Errors: %d\n", stats.HandlerErrors)
	}
	if stats.Err != nil {
		fmt.Printf("Error:          %v\n", stats.Err)
	}

	if len(stats.Events) == 0 {
		fmt.Println("\nNo events applied.")
		return
	}

	fmt.Println("\n" + strings.Repeat("-", 80))
	fmt.Printf("%-24s %10s %10s\n", "Event", "Count", "Share")
	fmt.Println(strings.Repeat("-", 80))
	total := stats.TotalEvents()
	for _, name := range sortedEvents(stats.Events) {
		fmt.Printf("%-24s %10d %10s\n", name, stats.Events[name], percentageString(stats.Events[name], total))
	}
}

func writeMarkdownReport(filepath string, stats *ReplayStats) error {
	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	// Write header
	_, _ = fmt.Fprintf(file, "# Replay Benchmark Report\n\n")
	_, _ = fmt.Fprintf(file, "Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	_, _ = fmt.Fprintf(file, "## Run\n\n")
	_, _ = fmt.Fprintf(file, "| Property | Value |\n")
	_, _ = fmt.Fprintf(file, "|----------|-------|\n")
	_, _ = fmt.Fprintf(file, "| **Network** | %s |\n", stats.Network)
	_, _ = fmt.Fprintf(file, "| **Range** | %d - %d |\n", stats.FromBlock, stats.ToBlock)
	_, _ = fmt.Fprintf(file, "| **Last Block** | %d |\n", stats.LastBlock)
	_, _ = fmt.Fprintf(file, "| **Store** | %s |\n", stats.Store)
	_, _ = fmt.Fprintf(file, "| **Start Time** | %s |\n", stats.StartTime.Format("2006-01-02 15:04:05"))
	_, _ = fmt.Fprintf(file, "| **Duration** | %s |\n", formatDuration(stats.Duration))
	_, _ = fmt.Fprintf(file, "| **Blocks** | %d (%s) |\n", stats.Blocks(), formatRate(stats.Blocks(), stats.Duration))
	_, _ = fmt.Fprintf(file, "| **Events** | %d (%s) |\n", stats.TotalEvents(), formatRate(stats.TotalEvents(), stats.Duration))
	if stats.HandlerErrors > 0 {
		_, _ = fmt.Fprintf(file, "| **Handler Errors** | %d |\n", stats.HandlerErrors)
	}
	if stats.Err != nil {
		_, _ = fmt.Fprintf(file, "| **Error** | `%v` |\n", stats.Err)
	}
	_, _ = fmt.Fprintf(file, "\n")

	if len(stats.Events) == 0 {
		_, _ = fmt.Fprintf(file, "*No events applied.*\n")
		return nil
	}

	_, _ = fmt.Fprintf(file, "## Events\n\n")
	_, _ = fmt.Fprintf(file, "| Event | Count | Share |\n")
	_, _ = fmt.Fprintf(file, "|-------|-------|-------|\n")
	total := stats.TotalEvents()
	for _, name := range sortedEvents(stats.Events) {
		_, _ = fmt.Fprintf(file, "| %s | %d | %s |\n", name, stats.Events[name], percentageString(stats.Events[name], total))
	}
	return nil
}

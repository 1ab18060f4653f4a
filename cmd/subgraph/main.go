package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
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

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadSubgraphConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "subgraph",
			"network": cfg.Network.Name,
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting marketplace subgraph")

	network, err := config.BuildNetwork(cfg.Network)
	if err != nil {
		logger.Fatal("Invalid network configuration", zap.Error(err))
	}

	// Connect to database
	db, err := openDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err), zap.String("driver", cfg.Database.Driver))
	}
	if err := store.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.String("driver", cfg.Database.Driver),
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Initialize store
	dataStore := store.NewGormStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	httpClient := adapter.NewHTTPClient(cfg.IPFS.HTTPTimeout)
	base64Adapter := adapter.NewBase64()

	// Initialize ethereum client
	dialCtx, dialCancel := context.WithTimeout(ctx, cfg.Ethereum.RequestTimeout)
	adapterEthClient, err := adapter.NewEthClientDialer().Dial(dialCtx, cfg.Ethereum.RPCURL)
	dialCancel()
	if err != nil {
		logger.Fatal("Failed to dial Ethereum RPC", zap.Error(err))
	}
	ethereumClient := ethereum.NewClient(adapterEthClient, cfg.Ethereum.ArchiveCalls)
	defer ethereumClient.Close()

	blockProvider := block.NewBlockProvider(
		ethereum.NewEthereumBlockFetcher(adapterEthClient),
		block.Config{
			TTL:                 cfg.Indexer.PollInterval,
			StaleWindow:         time.Minute,
			MaxCachedTimestamps: 100_000,
		},
		clockAdapter,
	)

	// Worker pool for per-block timestamp and sender lookups
	pool := pond.NewPool(cfg.Indexer.Worker.WorkerPoolSize, pond.WithQueueSize(cfg.Indexer.Worker.WorkerQueueSize))
	defer pool.StopAndWait()

	logSource := ethereum.NewLogSource(ethereumClient, blockProvider, network, pool)

	// Mapping
	fetcher := uri.NewFetcher(httpClient, base64Adapter, network)
	userLedger := ledger.NewLedger()
	handlers := mapping.NewHandlers(
		ethereumClient,
		fetcher,
		attributes.NewReconciler(fetcher, network),
		listings.NewReconciler(userLedger, network),
		userLedger,
		network,
	)

	runner := indexer.NewRunner(
		logSource,
		blockProvider,
		handlers,
		dataStore,
		indexer.Config{
			Network:         network.Name(),
			StartBlock:      cfg.Ethereum.StartBlock,
			Confirmations:   cfg.Ethereum.Confirmations,
			BatchSize:       cfg.Indexer.BatchSize,
			PollInterval:    cfg.Indexer.PollInterval,
			ActivationBlock: network.RarityActivationBlock(),
		},
		clockAdapter,
		indexer.NewMetrics(prometheus.DefaultRegisterer),
	)

	// Metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCtx(ctx, err, zap.String("component", "metrics"))
		}
	}()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel for runner errors
	errCh := make(chan error, 1)

	// Start the runner
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "runner"))
		exitCode = 1
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, zap.String("component", "metrics"))
	}

	// Use non-context logger for final shutdown message since context is already canceled
	logger.Info("Marketplace subgraph stopped")
	if exitCode != 0 {
		logger.Flush(2 * time.Second)
		os.Exit(exitCode)
	}
}

// openDatabase opens the configured database and applies the pool settings
func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	maxOpenConns := cfg.MaxOpenConns
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
		// SQLite allows one writer at a time
		maxOpenConns = 1
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := store.ConfigureConnectionPool(db, maxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime, cfg.ConnMaxIdleTime); err != nil {
		return nil, err
	}
	return db, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or sqlite
	Path            string        `mapstructure:"path"`   // sqlite file path
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // Maximum amount of time a connection may be reused (e.g., "5m", "1h")
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // Maximum amount of time a connection may be idle (e.g., "10m", "30m")
}

// EthereumConfig holds JSON-RPC configuration
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	StartBlock     uint64        `mapstructure:"start_block"`
	Confirmations  uint64        `mapstructure:"confirmations"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// ArchiveCalls makes contract reads at the block of the handled event; requires an archive node
	ArchiveCalls   bool          `mapstructure:"archive_calls"`
}

// IPFSConfig holds metadata fetcher configuration
type IPFSConfig struct {
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// WorkerConfig holds worker configuration
type WorkerConfig struct {
	WorkerPoolSize  int `mapstructure:"pool_size"`
	WorkerQueueSize int `mapstructure:"queue_size"`
}

// IndexerConfig holds block loop configuration
type IndexerConfig struct {
	BatchSize    uint64        `mapstructure:"batch_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Worker       WorkerConfig  `mapstructure:"worker"`
}

// MetricsConfig holds the prometheus endpoint configuration
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// SubgraphConfig holds configuration for the subgraph indexer
type SubgraphConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig  `mapstructure:"database"`
	Ethereum   EthereumConfig  `mapstructure:"ethereum"`
	IPFS       IPFSConfig      `mapstructure:"ipfs"`
	Indexer    IndexerConfig   `mapstructure:"indexer"`
	Metrics    MetricsConfig   `mapstructure:"metrics"`
	Network    NetworkSettings `mapstructure:"network"`
}

// LoadSubgraphConfig loads configuration for the subgraph indexer
func LoadSubgraphConfig(configFile string, envPath string) (*SubgraphConfig, error) {
	v := configureViper("subgraph", configFile, envPath)

	// Set defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("ethereum.confirmations", 6)
	v.SetDefault("ethereum.request_timeout", "30s")
	v.SetDefault("ipfs.http_timeout", "20s")
	v.SetDefault("indexer.batch_size", 500)
	v.SetDefault("indexer.poll_interval", "5s")
	v.SetDefault("indexer.worker.pool_size", 16)
	v.SetDefault("indexer.worker.queue_size", 1024)
	v.SetDefault("metrics.address", ":9090")
	v.SetDefault("network.name", NetworkArbitrumOne)
	v.SetDefault("network.explorer", "arbiscan.io")
	v.SetDefault("network.ipfs_gateway", DEFAULT_PINNED_GATEWAY)
	v.SetDefault("network.head_size_scaling", 50)
	v.SetDefault("network.head_size_max", 5)

	if err := v.ReadInConfig(); err != nil {
		var error viper.ConfigFileNotFoundError
		if errors.As(err, &error) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg SubgraphConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if cfg.Ethereum.RPCURL == "" {
		return nil, errors.New("ethereum.rpc_url is required")
	}
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Host == "" {
			return nil, errors.New("database.host is required")
		}
	case "sqlite":
		if cfg.Database.Path == "" {
			return nil, errors.New("database.path is required")
		}
	default:
		return nil, fmt.Errorf("unsupported database.driver %q", cfg.Database.Driver)
	}

	return &cfg, nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/subgraph/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("FF_SUBGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.driver",
		"database.path",
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Ethereum
		"ethereum.rpc_url",
		"ethereum.start_block",
		"ethereum.confirmations",
		"ethereum.request_timeout",
		"ethereum.archive_calls",
		// IPFS
		"ipfs.http_timeout",
		// Indexer
		"indexer.batch_size",
		"indexer.poll_interval",
		"indexer.worker.pool_size",
		"indexer.worker.queue_size",
		// Metrics
		"metrics.address",
		// Network scalars. Collections and rewrites come from the config file.
		"network.name",
		"network.explorer",
		"network.marketplace_address",
		"network.marketplace_buy_selector",
		"network.staking_address",
		"network.school_address",
		"network.gym_address",
		"network.rarity_activation_block",
		"network.ipfs_gateway",
		"network.head_size_scaling",
		"network.head_size_max",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

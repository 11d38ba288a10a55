// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full service configuration. Variables carry the ATLAS_
// prefix.
type Config struct {
	RPC      RPCConfig
	Snapshot SnapshotConfig
	Board    BoardConfig
	Live     LiveConfig
	Archive  ArchiveConfig

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

// RPCConfig locates the Solana node.
type RPCConfig struct {
	Endpoint   string        `envconfig:"RPC_ENDPOINT" required:"true"`
	WSEndpoint string        `envconfig:"WS_ENDPOINT"`
	Timeout    time.Duration `envconfig:"RPC_TIMEOUT" default:"30s"`
	MaxRetries int           `envconfig:"RPC_MAX_RETRIES" default:"3"`
}

// SnapshotConfig bounds the holder snapshot pipeline.
type SnapshotConfig struct {
	TopN           int           `envconfig:"SNAPSHOT_TOP_N" default:"20"`
	EdgeWallets    int           `envconfig:"SNAPSHOT_EDGE_WALLETS" default:"10"`
	SignatureLimit int           `envconfig:"SNAPSHOT_SIGNATURE_LIMIT" default:"20"`
	MaxSignatures  int           `envconfig:"SNAPSHOT_MAX_SIGNATURES" default:"100"`
	CacheTTL       time.Duration `envconfig:"SNAPSHOT_CACHE_TTL" default:"60s"`
}

// BoardConfig bounds the high-volume board pipeline.
type BoardConfig struct {
	Limit          int           `envconfig:"BOARD_LIMIT" default:"50"`
	MinTotal       string        `envconfig:"BOARD_MIN_TOTAL" default:"0"`
	SignatureLimit int           `envconfig:"BOARD_SIGNATURE_LIMIT" default:"50"`
	MaxSignatures  int           `envconfig:"BOARD_MAX_SIGNATURES" default:"100"`
	CacheTTL       time.Duration `envconfig:"BOARD_CACHE_TTL" default:"60s"`
}

// LiveConfig tunes the live refresh controller.
type LiveConfig struct {
	TickInterval  time.Duration `envconfig:"LIVE_TICK_INTERVAL" default:"15s"`
	ForceInterval time.Duration `envconfig:"LIVE_FORCE_INTERVAL" default:"2m"`
}

// ArchiveConfig configures the optional ClickHouse archive. An empty DSN
// selects the in-memory backend.
type ArchiveConfig struct {
	ClickHouseDSN string `envconfig:"CLICKHOUSE_DSN"`
}

// Load reads configuration from environment variables. A .env file is
// loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("ATLAS", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	return &cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Black-And-White-Club/shardboard/app/observability"
)

// Backend names.
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendGoChannel = "gochannel"
	BackendNATS      = "nats"
	BackendJetStream = "jetstream"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	HTTP          HTTPConfig          `yaml:"http"`
	Backends      BackendsConfig      `yaml:"backends"`
	Partition     PartitionConfig     `yaml:"partition"`
	Shard         ShardConfig         `yaml:"shard"`
	Leaderboard   LeaderboardConfig   `yaml:"leaderboard"`
	Player        PlayerConfig        `yaml:"player"`
	Discovery     DiscoveryConfig     `yaml:"discovery"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// HTTPConfig holds the API server configuration.
type HTTPConfig struct {
	Address string `yaml:"address"`
	// RateLimit is requests per second allowed per client IP. Zero disables
	// limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// BackendsConfig picks the implementation of each pluggable layer.
type BackendsConfig struct {
	Storage   string `yaml:"storage"`   // memory|postgres
	Transport string `yaml:"transport"` // gochannel|nats
	Discovery string `yaml:"discovery"` // memory|postgres|jetstream
}

// PartitionConfig tunes the per-partition mailboxes.
type PartitionConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// ShardConfig tunes score buffering.
type ShardConfig struct {
	FlushFactor         uint32 `yaml:"flush_factor"`
	WorkloadSampleEvery uint32 `yaml:"workload_sample_every"`
}

// LeaderboardConfig tunes the triggerer pool.
type LeaderboardConfig struct {
	TriggerInterval time.Duration `yaml:"trigger_interval"`
	PromoteAfter    time.Duration `yaml:"promote_after"`
	PoolCapacity    int           `yaml:"pool_capacity"`
}

// PlayerConfig tunes the triggerer client.
type PlayerConfig struct {
	TriggerTick     time.Duration `yaml:"trigger_tick"`
	TickConcurrency int           `yaml:"tick_concurrency"`
}

// DiscoveryConfig tunes discovery channels.
type DiscoveryConfig struct {
	Bucket  string `yaml:"bucket"`
	MaxScan int    `yaml:"max_scan"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json|text
}

// LoadConfig loads the configuration from a YAML file. A missing file falls
// back to environment variables alone.
func LoadConfig(filename string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// --- OVERRIDE WITH ENV VARS IF PRESENT ---
func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Backends.Storage = v
	}
	if v := os.Getenv("TRANSPORT_BACKEND"); v != "" {
		cfg.Backends.Transport = v
	}
	if v := os.Getenv("DISCOVERY_BACKEND"); v != "" {
		cfg.Backends.Discovery = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
	if v := os.Getenv("FLUSH_FACTOR"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid FLUSH_FACTOR value: %v", err)
		}
		cfg.Shard.FlushFactor = uint32(n)
	}
	if v := os.Getenv("WORKLOAD_SAMPLE_EVERY"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid WORKLOAD_SAMPLE_EVERY value: %v", err)
		}
		cfg.Shard.WorkloadSampleEvery = uint32(n)
	}
	if v := os.Getenv("TRIGGER_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TRIGGER_INTERVAL value: %v", err)
		}
		cfg.Leaderboard.TriggerInterval = d
	}
	if v := os.Getenv("PROMOTE_AFTER"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PROMOTE_AFTER value: %v", err)
		}
		cfg.Leaderboard.PromoteAfter = d
	}
	if v := os.Getenv("TRIGGER_TICK"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TRIGGER_TICK value: %v", err)
		}
		cfg.Player.TriggerTick = d
	}
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT value: %v", err)
		}
		cfg.HTTP.RateLimit = f
	}
	return nil
}

// applyDefaults fills every tunable left unset.
func applyDefaults(cfg *Config) {
	if cfg.HTTP.Address == "" {
		cfg.HTTP.Address = ":8080"
	}
	if cfg.HTTP.RateBurst <= 0 {
		cfg.HTTP.RateBurst = 20
	}
	if cfg.Backends.Storage == "" {
		cfg.Backends.Storage = BackendMemory
		if cfg.Postgres.DSN != "" {
			cfg.Backends.Storage = BackendPostgres
		}
	}
	if cfg.Backends.Transport == "" {
		cfg.Backends.Transport = BackendGoChannel
		if cfg.NATS.URL != "" {
			cfg.Backends.Transport = BackendNATS
		}
	}
	if cfg.Backends.Discovery == "" {
		switch {
		case cfg.Backends.Storage == BackendPostgres:
			cfg.Backends.Discovery = BackendPostgres
		case cfg.Backends.Transport == BackendNATS:
			cfg.Backends.Discovery = BackendJetStream
		default:
			cfg.Backends.Discovery = BackendMemory
		}
	}
	if cfg.Partition.IdleTimeout == 0 {
		cfg.Partition.IdleTimeout = 5 * time.Minute
	}
	if cfg.Shard.FlushFactor == 0 {
		cfg.Shard.FlushFactor = 10
	}
	if cfg.Shard.WorkloadSampleEvery == 0 {
		cfg.Shard.WorkloadSampleEvery = 25
	}
	if cfg.Leaderboard.TriggerInterval <= 0 {
		cfg.Leaderboard.TriggerInterval = 5 * time.Second
	}
	if cfg.Player.TriggerTick == 0 {
		cfg.Player.TriggerTick = cfg.Leaderboard.TriggerInterval / 5
	}
	if cfg.Discovery.Bucket == "" {
		cfg.Discovery.Bucket = "shardboard-discovery"
	}
	if cfg.Observability.Environment == "" {
		cfg.Observability.Environment = "development"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
		if cfg.Observability.Environment == "development" {
			cfg.Observability.LogFormat = "text"
		}
	}
}

// Validate checks that the chosen backends have what they need.
func (c *Config) Validate() error {
	switch c.Backends.Storage {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("storage backend %q needs DATABASE_URL", c.Backends.Storage)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backends.Storage)
	}

	switch c.Backends.Transport {
	case BackendGoChannel:
	case BackendNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("transport backend %q needs NATS_URL", c.Backends.Transport)
		}
	default:
		return fmt.Errorf("unknown transport backend %q", c.Backends.Transport)
	}

	switch c.Backends.Discovery {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("discovery backend %q needs DATABASE_URL", c.Backends.Discovery)
		}
	case BackendJetStream:
		if c.Backends.Transport != BackendNATS {
			return fmt.Errorf("discovery backend %q needs the nats transport", c.Backends.Discovery)
		}
	default:
		return fmt.Errorf("unknown discovery backend %q", c.Backends.Discovery)
	}
	return nil
}

// ToObsConfig maps the config onto the observability settings.
func ToObsConfig(appCfg *Config) observability.Config {
	return observability.Config{
		ServiceName: "shardboard",
		Environment: appCfg.Observability.Environment,
		LogLevel:    appCfg.Observability.LogLevel,
		LogFormat:   appCfg.Observability.LogFormat,
	}
}

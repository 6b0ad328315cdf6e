package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the node-process-owned configuration for wiring a RoutingTable.
// Loading it is explicitly outside the routing table's own scope (spec.md
// §1) — internal/routing never imports this package; cmd/routingtabled
// loads it and passes plain values into the routing constructors.
type Config struct {
	Service  ServiceConfig  `koanf:"service"`
	Postgres PostgresConfig `koanf:"postgres"`
	Routing  RoutingConfig  `koanf:"routing"`
}

type ServiceConfig struct {
	InstanceID             string `koanf:"instance_id"`
	HTTPListen             string `koanf:"http_listen"`
	LogLevel               string `koanf:"log_level"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
	// IdentitySeedHex is a hex-encoded ed25519.SeedSize seed used to derive
	// this node's stable PeerID. Left empty in dev/test, where a fresh
	// identity is generated on every start.
	IdentitySeedHex string `koanf:"identity_seed_hex"`
}

type PostgresConfig struct {
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`
}

// RoutingConfig carries overrides for the tunable constants named in
// spec.md §6. For the four cache fields, zero values fall back to the
// spec's defaults inside the routing package itself, so these fields exist
// only to let an operator dial them down in a small deployment. The three
// ingest fields get defaults in Load and must be positive (Validate).
type RoutingConfig struct {
	AnnounceAccountCacheSize int `koanf:"announce_account_cache_size"`
	RouteBackCacheSize       int `koanf:"route_back_cache_size"`
	RouteBackEvictMs         int `koanf:"route_back_evict_ms"`
	PingPongCacheSize        int `koanf:"ping_pong_cache_size"`
	IngestBatchSize          int `koanf:"ingest_batch_size"`
	IngestFlushIntervalMs    int `koanf:"ingest_flush_interval_ms"`
	UpdateIntervalMs         int `koanf:"update_interval_ms"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Overlay environment variables: ROUTING_TABLE_POSTGRES__DSN → postgres.dsn
	if err := k.Load(env.Provider("ROUTING_TABLE_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "ROUTING_TABLE_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			InstanceID:             "routing-table-1",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Postgres: PostgresConfig{
			MaxConns: 10,
			MinConns: 2,
		},
		Routing: RoutingConfig{
			IngestBatchSize:       256,
			IngestFlushIntervalMs: 200,
			UpdateIntervalMs:      1000,
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("config: postgres.dsn is required")
	}
	if c.Postgres.MaxConns <= 0 {
		return fmt.Errorf("config: postgres.max_conns must be > 0 (got %d)", c.Postgres.MaxConns)
	}
	if c.Postgres.MinConns < 0 {
		return fmt.Errorf("config: postgres.min_conns must be >= 0 (got %d)", c.Postgres.MinConns)
	}
	if c.Service.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: service.shutdown_timeout_seconds must be > 0 (got %d)", c.Service.ShutdownTimeoutSeconds)
	}
	if c.Routing.IngestBatchSize <= 0 {
		return fmt.Errorf("config: routing.ingest_batch_size must be > 0 (got %d)", c.Routing.IngestBatchSize)
	}
	if c.Routing.IngestFlushIntervalMs <= 0 {
		return fmt.Errorf("config: routing.ingest_flush_interval_ms must be > 0 (got %d)", c.Routing.IngestFlushIntervalMs)
	}
	if c.Routing.UpdateIntervalMs <= 0 {
		return fmt.Errorf("config: routing.update_interval_ms must be > 0 (got %d)", c.Routing.UpdateIntervalMs)
	}
	return nil
}

// Package config defines the top-level configuration for the foldmarket
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/foldmarket/foldmarket/internal/fees"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by FOLD_* environment variables.
type Config struct {
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Fees       FeesConfig       `toml:"fees"`
	Market     MarketConfig     `toml:"market"`
	Settlement SettlementConfig `toml:"settlement"`
	LogLevel   string           `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// FeesConfig holds the fee rates applied by the pricing engines.
type FeesConfig struct {
	CPMMLiquidity float64 `toml:"cpmm_liquidity"`
	CPMMPlatform  float64 `toml:"cpmm_platform"`
	CPMMCreator   float64 `toml:"cpmm_creator"`
	DPMPlatform   float64 `toml:"dpm_platform"`
	DPMCreator    float64 `toml:"dpm_creator"`
}

// Schedule converts the configured rates into an engine fee schedule.
func (f FeesConfig) Schedule() fees.Schedule {
	return fees.Schedule{
		CPMM: fees.CPMMRates{
			Liquidity: f.CPMMLiquidity,
			Platform:  f.CPMMPlatform,
			Creator:   f.CPMMCreator,
		},
		DPM: fees.DPMRates{
			Platform: f.DPMPlatform,
			Creator:  f.DPMCreator,
		},
	}
}

// MarketConfig holds market-level parameters.
type MarketConfig struct {
	// Ante is the creator subsidy required to open a contract.
	Ante float64 `toml:"ante"`
	// MaxLoanAmount caps the loan extended against a single contract position.
	MaxLoanAmount float64 `toml:"max_loan_amount"`
	// ProbCacheTTL bounds staleness of the cached market probability.
	ProbCacheTTL duration `toml:"prob_cache_ttl"`
	// LockTTL bounds how long a contract mutation may hold its lock.
	LockTTL duration `toml:"lock_ttl"`
}

// SettlementConfig holds settlement and archival parameters.
type SettlementConfig struct {
	// ArchiveEnabled turns on S3 archival of resolved contracts.
	ArchiveEnabled bool `toml:"archive_enabled"`
	// ArchiveAfter is how long after resolution a contract becomes archivable.
	ArchiveAfter duration `toml:"archive_after"`
	// ArchiveInterval is how often the background archiver sweeps.
	ArchiveInterval duration `toml:"archive_interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "foldmarket",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "foldmarket-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Fees: FeesConfig{
			CPMMLiquidity: 0.02,
			CPMMPlatform:  0.03,
			CPMMCreator:   0.05,
			DPMPlatform:   0.01,
			DPMCreator:    0.04,
		},
		Market: MarketConfig{
			Ante:          100,
			MaxLoanAmount: 0,
			ProbCacheTTL:  duration{30 * time.Second},
			LockTTL:       duration{10 * time.Second},
		},
		Settlement: SettlementConfig{
			ArchiveEnabled:  false,
			ArchiveAfter:    duration{30 * 24 * time.Hour},
			ArchiveInterval: duration{time.Hour},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only needed when archival is on.
	if c.Settlement.ArchiveEnabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when settlement.archive_enabled is set")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when settlement.archive_enabled is set")
		}
	}

	// Fees — rates are fractions of a trade; the combined take must stay
	// below 100%.
	for _, r := range []struct {
		name string
		rate float64
	}{
		{"cpmm_liquidity", c.Fees.CPMMLiquidity},
		{"cpmm_platform", c.Fees.CPMMPlatform},
		{"cpmm_creator", c.Fees.CPMMCreator},
		{"dpm_platform", c.Fees.DPMPlatform},
		{"dpm_creator", c.Fees.DPMCreator},
	} {
		if r.rate < 0 || r.rate >= 1 {
			errs = append(errs, fmt.Sprintf("fees: %s must be in [0, 1), got %v", r.name, r.rate))
		}
	}
	if t := c.Fees.CPMMLiquidity + c.Fees.CPMMPlatform + c.Fees.CPMMCreator; t >= 1 {
		errs = append(errs, fmt.Sprintf("fees: combined cpmm rate must be < 1, got %v", t))
	}
	if t := c.Fees.DPMPlatform + c.Fees.DPMCreator; t >= 1 {
		errs = append(errs, fmt.Sprintf("fees: combined dpm rate must be < 1, got %v", t))
	}

	// Market
	if c.Market.Ante < 0 {
		errs = append(errs, "market: ante must be >= 0")
	}
	if c.Market.LockTTL.Duration <= 0 {
		errs = append(errs, "market: lock_ttl must be > 0")
	}

	// Settlement
	if c.Settlement.ArchiveEnabled && c.Settlement.ArchiveInterval.Duration <= 0 {
		errs = append(errs, "settlement: archive_interval must be > 0 when archival is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FOLD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FOLD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "FOLD_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "FOLD_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "FOLD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FOLD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FOLD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FOLD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FOLD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FOLD_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FOLD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FOLD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FOLD_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "FOLD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FOLD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FOLD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FOLD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FOLD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FOLD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "FOLD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FOLD_S3_REGION")
	setStr(&cfg.S3.Bucket, "FOLD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FOLD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FOLD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FOLD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FOLD_S3_FORCE_PATH_STYLE")

	// ── Fees ──
	setFloat64(&cfg.Fees.CPMMLiquidity, "FOLD_FEES_CPMM_LIQUIDITY")
	setFloat64(&cfg.Fees.CPMMPlatform, "FOLD_FEES_CPMM_PLATFORM")
	setFloat64(&cfg.Fees.CPMMCreator, "FOLD_FEES_CPMM_CREATOR")
	setFloat64(&cfg.Fees.DPMPlatform, "FOLD_FEES_DPM_PLATFORM")
	setFloat64(&cfg.Fees.DPMCreator, "FOLD_FEES_DPM_CREATOR")

	// ── Market ──
	setFloat64(&cfg.Market.Ante, "FOLD_MARKET_ANTE")
	setFloat64(&cfg.Market.MaxLoanAmount, "FOLD_MARKET_MAX_LOAN_AMOUNT")
	setDuration(&cfg.Market.ProbCacheTTL, "FOLD_MARKET_PROB_CACHE_TTL")
	setDuration(&cfg.Market.LockTTL, "FOLD_MARKET_LOCK_TTL")

	// ── Settlement ──
	setBool(&cfg.Settlement.ArchiveEnabled, "FOLD_SETTLEMENT_ARCHIVE_ENABLED")
	setDuration(&cfg.Settlement.ArchiveAfter, "FOLD_SETTLEMENT_ARCHIVE_AFTER")
	setDuration(&cfg.Settlement.ArchiveInterval, "FOLD_SETTLEMENT_ARCHIVE_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "FOLD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

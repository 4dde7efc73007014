package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/foldmarket/foldmarket/internal/blob/s3"
	"github.com/foldmarket/foldmarket/internal/cache/redis"
	"github.com/foldmarket/foldmarket/internal/config"
	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/service"
	"github.com/foldmarket/foldmarket/internal/store/postgres"
)

// Dependencies bundles the infrastructure and services the engine needs to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Infrastructure
	Tx          domain.TxRunner
	Stores      domain.Stores
	LockManager domain.LockManager
	ProbCache   domain.ProbCache
	BlobWriter  domain.BlobWriter
	BlobReader  domain.BlobReader
	Archiver    domain.Archiver

	// Services
	Markets     *service.MarketService
	Trades      *service.TradeService
	Liquidity   *service.LiquidityService
	Resolutions *service.ResolutionService
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Tx = postgres.NewTxRunner(pool)
	deps.Stores = postgres.NewStores(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.LockManager = redis.NewLockManager(redisClient)
	deps.ProbCache = redis.NewProbCache(redisClient, cfg.Market.ProbCacheTTL.Duration)

	// --- S3 blob storage (only when settlement archival is enabled) ---
	if cfg.Settlement.ArchiveEnabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.BlobReader, deps.Stores.Contracts, deps.Stores.Payouts)
	}

	// --- Services ---
	sched := cfg.Fees.Schedule()
	lockTTL := cfg.Market.LockTTL.Duration
	deps.Markets = service.NewMarketService(deps.Tx, deps.ProbCache, cfg.Market.Ante, logger)
	deps.Trades = service.NewTradeService(deps.Tx, deps.LockManager, deps.ProbCache, sched, lockTTL, logger)
	deps.Liquidity = service.NewLiquidityService(deps.Tx, deps.LockManager, lockTTL, logger)
	deps.Resolutions = service.NewResolutionService(
		deps.Tx, deps.LockManager, deps.ProbCache, deps.Archiver, sched, lockTTL, logger,
	)

	return deps, cleanup, nil
}

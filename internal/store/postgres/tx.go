package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foldmarket/foldmarket/internal/domain"
)

// querier is the subset of pgx operations the stores need, satisfied by both
// *pgxpool.Pool and pgx.Tx so every store works pooled or transaction-scoped.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

var (
	_ querier = (*pgxpool.Pool)(nil)
	_ querier = (pgx.Tx)(nil)
)

// TxRunner implements domain.TxRunner on a pgx connection pool.
type TxRunner struct {
	pool *pgxpool.Pool
}

var _ domain.TxRunner = (*TxRunner)(nil)

// NewTxRunner creates a TxRunner backed by the given connection pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx begins a transaction, hands fn a set of stores scoped to it, and
// commits if fn returns nil. Any error rolls the whole transaction back.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(domain.Stores) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(NewStores(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// NewStores bundles all stores over one querier. Pass a pool for standalone
// reads or a transaction for atomic write paths.
func NewStores(db querier) domain.Stores {
	return domain.Stores{
		Contracts: &ContractStore{db: db},
		Bets:      &BetStore{db: db},
		Liquidity: &LiquidityStore{db: db},
		Payouts:   &PayoutStore{db: db},
		Users:     &UserStore{db: db},
	}
}

package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ContractStore persists contract snapshots.
type ContractStore interface {
	Create(ctx context.Context, contract Contract) error
	GetByID(ctx context.Context, id string) (Contract, error)
	Update(ctx context.Context, contract Contract) error
	ListOpen(ctx context.Context, opts ListOpts) ([]Contract, error)
	ListResolvedBefore(ctx context.Context, before time.Time) ([]Contract, error)
}

// BetStore persists bets, including resting limit orders.
type BetStore interface {
	Create(ctx context.Context, bet Bet) error
	CreateBatch(ctx context.Context, bets []Bet) error
	GetByID(ctx context.Context, id string) (Bet, error)
	ListByContract(ctx context.Context, contractID string) ([]Bet, error)
	ListByUser(ctx context.Context, contractID, userID string) ([]Bet, error)
	// ListUnfilled returns open limit orders: not fully filled, not cancelled.
	ListUnfilled(ctx context.Context, contractID string) ([]Bet, error)
	// ApplyFill appends a fill to a resting order and advances its filled
	// amount and share total.
	ApplyFill(ctx context.Context, betID string, fill Fill, isFilled bool) error
	Cancel(ctx context.Context, betID string) error
	MarkSold(ctx context.Context, betID string) error
}

// LiquidityStore persists liquidity provisions.
type LiquidityStore interface {
	Create(ctx context.Context, lp LiquidityProvision) error
	ListByContract(ctx context.Context, contractID string) ([]LiquidityProvision, error)
}

// PayoutStore persists settlement line items.
type PayoutStore interface {
	CreateBatch(ctx context.Context, contractID string, payouts []Payout) error
	ListByContract(ctx context.Context, contractID string) ([]Payout, error)
}

// UserStore tracks user balances for maker checks and payout credits.
type UserStore interface {
	GetBalance(ctx context.Context, userID string) (float64, error)
	GetBalances(ctx context.Context, userIDs []string) (map[string]float64, error)
	AddToBalance(ctx context.Context, userID string, delta float64) error
	AddToBalances(ctx context.Context, deltas map[string]float64) error
}

// Stores bundles all persistence interfaces scoped to one transaction.
type Stores struct {
	Contracts ContractStore
	Bets      BetStore
	Liquidity LiquidityStore
	Payouts   PayoutStore
	Users     UserStore
}

// TxRunner executes fn against transaction-scoped stores, committing on nil
// and rolling back on error. Mutating pricing paths must run inside a single
// transaction so pool, bet, and balance deltas land atomically.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(Stores) error) error
}

// LockManager provides distributed locking. Pricing calls are serialized
// per contract id: at most one in-flight mutation per contract.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// ProbCache caches the latest contract probability for read paths.
type ProbCache interface {
	SetProbability(ctx context.Context, contractID string, prob float64, ts time.Time) error
	GetProbability(ctx context.Context, contractID string) (float64, time.Time, error)
	Invalidate(ctx context.Context, contractID string) error
}

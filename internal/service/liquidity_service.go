package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/foldmarket/foldmarket/internal/cpmm"
	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/numeric"
)

// LiquidityService handles liquidity deposits and withdrawals on binary
// CPMM contracts.
type LiquidityService struct {
	tx      domain.TxRunner
	locks   domain.LockManager
	lockTTL time.Duration
	logger  *slog.Logger
}

// NewLiquidityService creates a LiquidityService.
func NewLiquidityService(tx domain.TxRunner, locks domain.LockManager, lockTTL time.Duration, logger *slog.Logger) *LiquidityService {
	return &LiquidityService{
		tx:      tx,
		locks:   locks,
		lockTTL: lockTTL,
		logger:  logger,
	}
}

// AddLiquidity deposits amount into the contract's pool at the current
// probability and records the provision.
func (s *LiquidityService) AddLiquidity(ctx context.Context, contractID, userID string, amount float64) (domain.LiquidityProvision, error) {
	if amount <= 0 {
		return domain.LiquidityProvision{}, fmt.Errorf("liquidity_service: add %v: %w", amount, domain.ErrInvalidAmount)
	}

	unlock, err := s.locks.Acquire(ctx, contractID, s.lockTTL)
	if err != nil {
		return domain.LiquidityProvision{}, fmt.Errorf("liquidity_service: add: %w", err)
	}
	defer unlock()

	now := time.Now().UTC()
	var provision domain.LiquidityProvision

	err = s.tx.RunInTx(ctx, func(stores domain.Stores) error {
		contract, err := stores.Contracts.GetByID(ctx, contractID)
		if err != nil {
			return fmt.Errorf("liquidity_service: load contract: %w", err)
		}
		if err := tradeable(&contract, now); err != nil {
			return err
		}
		if !contract.IsBinaryCPMM() {
			return fmt.Errorf("liquidity_service: %s/%s: %w",
				contract.Mechanism, contract.OutcomeType, domain.ErrUnsupportedMechanism)
		}

		balance, err := stores.Users.GetBalance(ctx, userID)
		if err != nil {
			return fmt.Errorf("liquidity_service: load balance: %w", err)
		}
		if !numeric.GreaterEqual(balance, amount) {
			return fmt.Errorf("liquidity_service: deposit %v with balance %v: %w",
				amount, balance, domain.ErrInsufficientBalance)
		}

		oldPool := contract.Pool
		oldP := contract.P
		newPool, newP, liquidity := cpmm.AddLiquidity(oldPool, oldP, amount)

		provision = domain.LiquidityProvision{
			ID:         uuid.NewString(),
			UserID:     userID,
			ContractID: contractID,
			Amount:     amount,
			Liquidity:  liquidity,
			P:          oldP,
			Pool:       oldPool,
			CreatedAt:  now,
		}
		if err := stores.Liquidity.Create(ctx, provision); err != nil {
			return fmt.Errorf("liquidity_service: create provision: %w", err)
		}

		contract.Pool = newPool
		contract.P = newP
		contract.TotalLiquidity += amount
		if err := stores.Contracts.Update(ctx, contract); err != nil {
			return fmt.Errorf("liquidity_service: update contract: %w", err)
		}

		if err := stores.Users.AddToBalance(ctx, userID, -amount); err != nil {
			return fmt.Errorf("liquidity_service: debit provider: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.LiquidityProvision{}, err
	}

	s.logger.InfoContext(ctx, "liquidity_service: liquidity added",
		slog.String("contract_id", contractID),
		slog.String("user_id", userID),
		slog.Float64("amount", amount),
	)
	return provision, nil
}

// WithdrawLiquidity removes amount from the contract's pool. The caller can
// withdraw at most their weighted claim on the pool, computed from their
// recorded provisions (past withdrawals shrink the claim). A zero or
// negative amount withdraws that maximum; withdrawals that would exceed the
// claim or leave a pool side under the retained minimum are rejected whole.
func (s *LiquidityService) WithdrawLiquidity(ctx context.Context, contractID, userID string, amount float64) (domain.LiquidityProvision, error) {
	unlock, err := s.locks.Acquire(ctx, contractID, s.lockTTL)
	if err != nil {
		return domain.LiquidityProvision{}, fmt.Errorf("liquidity_service: withdraw: %w", err)
	}
	defer unlock()

	now := time.Now().UTC()
	var provision domain.LiquidityProvision

	err = s.tx.RunInTx(ctx, func(stores domain.Stores) error {
		contract, err := stores.Contracts.GetByID(ctx, contractID)
		if err != nil {
			return fmt.Errorf("liquidity_service: load contract: %w", err)
		}
		if contract.IsResolved {
			return fmt.Errorf("liquidity_service: contract %s: %w", contractID, domain.ErrContractResolved)
		}
		if !contract.IsBinaryCPMM() {
			return fmt.Errorf("liquidity_service: %s/%s: %w",
				contract.Mechanism, contract.OutcomeType, domain.ErrUnsupportedMechanism)
		}

		liquidities, err := stores.Liquidity.ListByContract(ctx, contractID)
		if err != nil {
			return fmt.Errorf("liquidity_service: load provisions: %w", err)
		}

		// The caller funds a symmetric pool shrink, so their limit is the
		// smaller of their per-side claims, and never past the pool floor.
		claim := cpmm.UserLiquidityShares(userID, contract.Pool, contract.P, liquidities, false)
		max := math.Min(claim[domain.OutcomeYes], claim[domain.OutcomeNo])
		if removable := cpmm.MaximumRemovableLiquidity(contract.Pool); removable < max {
			max = removable
		}

		withdrawal := amount
		if withdrawal <= 0 {
			withdrawal = max
		}
		if withdrawal <= 0 || !numeric.GreaterEqual(max, withdrawal) {
			return fmt.Errorf("liquidity_service: withdraw %v with %v removable: %w",
				withdrawal, max, domain.ErrLiquidityTooLow)
		}

		oldPool := contract.Pool
		oldP := contract.P
		newPool, newP, liquidity, ok := cpmm.RemoveLiquidity(oldPool, oldP, withdrawal)
		if !ok {
			return fmt.Errorf("liquidity_service: withdraw %v: %w", withdrawal, domain.ErrLiquidityTooLow)
		}

		provision = domain.LiquidityProvision{
			ID:         uuid.NewString(),
			UserID:     userID,
			ContractID: contractID,
			Amount:     -withdrawal,
			Liquidity:  liquidity,
			P:          oldP,
			Pool:       oldPool,
			CreatedAt:  now,
		}
		if err := stores.Liquidity.Create(ctx, provision); err != nil {
			return fmt.Errorf("liquidity_service: create withdrawal: %w", err)
		}

		contract.Pool = newPool
		contract.P = newP
		contract.TotalLiquidity -= withdrawal
		if err := stores.Contracts.Update(ctx, contract); err != nil {
			return fmt.Errorf("liquidity_service: update contract: %w", err)
		}

		if err := stores.Users.AddToBalance(ctx, userID, withdrawal); err != nil {
			return fmt.Errorf("liquidity_service: credit provider: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.LiquidityProvision{}, err
	}

	s.logger.InfoContext(ctx, "liquidity_service: liquidity withdrawn",
		slog.String("contract_id", contractID),
		slog.String("user_id", userID),
		slog.Float64("amount", -provision.Amount),
	)
	return provision, nil
}

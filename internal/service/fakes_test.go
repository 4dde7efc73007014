package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/foldmarket/foldmarket/internal/domain"
)

// memStores is an in-memory domain.Stores implementation for service tests.
// It applies writes immediately; the tests that expect errors only exercise
// paths that fail before any write, so the missing rollback does not matter.
type memStores struct {
	contracts map[string]domain.Contract
	bets      map[string]domain.Bet
	liquidity map[string][]domain.LiquidityProvision
	payouts   map[string][]domain.Payout
	balances  map[string]float64
}

func newMemStores() *memStores {
	return &memStores{
		contracts: make(map[string]domain.Contract),
		bets:      make(map[string]domain.Bet),
		liquidity: make(map[string][]domain.LiquidityProvision),
		payouts:   make(map[string][]domain.Payout),
		balances:  make(map[string]float64),
	}
}

func (m *memStores) stores() domain.Stores {
	return domain.Stores{
		Contracts: (*memContracts)(m),
		Bets:      (*memBets)(m),
		Liquidity: (*memLiquidity)(m),
		Payouts:   (*memPayouts)(m),
		Users:     (*memUsers)(m),
	}
}

// RunInTx implements domain.TxRunner without transactional semantics.
func (m *memStores) RunInTx(_ context.Context, fn func(domain.Stores) error) error {
	return fn(m.stores())
}

type memContracts memStores

func (m *memContracts) Create(_ context.Context, contract domain.Contract) error {
	if _, ok := m.contracts[contract.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.contracts[contract.ID] = contract
	return nil
}

func (m *memContracts) GetByID(_ context.Context, id string) (domain.Contract, error) {
	contract, ok := m.contracts[id]
	if !ok {
		return domain.Contract{}, domain.ErrNotFound
	}
	return contract, nil
}

func (m *memContracts) Update(_ context.Context, contract domain.Contract) error {
	if _, ok := m.contracts[contract.ID]; !ok {
		return domain.ErrNotFound
	}
	m.contracts[contract.ID] = contract
	return nil
}

func (m *memContracts) ListOpen(_ context.Context, _ domain.ListOpts) ([]domain.Contract, error) {
	var out []domain.Contract
	for _, contract := range m.contracts {
		if !contract.IsResolved {
			out = append(out, contract)
		}
	}
	return out, nil
}

func (m *memContracts) ListResolvedBefore(_ context.Context, before time.Time) ([]domain.Contract, error) {
	var out []domain.Contract
	for _, contract := range m.contracts {
		if contract.IsResolved && contract.ResolutionTime != nil && contract.ResolutionTime.Before(before) {
			out = append(out, contract)
		}
	}
	return out, nil
}

type memBets memStores

func (m *memBets) Create(_ context.Context, bet domain.Bet) error {
	if _, ok := m.bets[bet.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.bets[bet.ID] = bet
	return nil
}

func (m *memBets) CreateBatch(ctx context.Context, bets []domain.Bet) error {
	for _, bet := range bets {
		if err := m.Create(ctx, bet); err != nil {
			return err
		}
	}
	return nil
}

func (m *memBets) GetByID(_ context.Context, id string) (domain.Bet, error) {
	bet, ok := m.bets[id]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return bet, nil
}

func (m *memBets) ListByContract(_ context.Context, contractID string) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, bet := range m.bets {
		if bet.ContractID == contractID {
			out = append(out, bet)
		}
	}
	return out, nil
}

func (m *memBets) ListByUser(_ context.Context, contractID, userID string) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, bet := range m.bets {
		if bet.ContractID == contractID && bet.UserID == userID {
			out = append(out, bet)
		}
	}
	return out, nil
}

func (m *memBets) ListUnfilled(_ context.Context, contractID string) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, bet := range m.bets {
		if bet.ContractID == contractID && bet.LimitProb != nil && !bet.IsFilled && !bet.IsCancelled {
			out = append(out, bet)
		}
	}
	return out, nil
}

func (m *memBets) ApplyFill(_ context.Context, betID string, fill domain.Fill, isFilled bool) error {
	bet, ok := m.bets[betID]
	if !ok || bet.IsCancelled {
		return domain.ErrNotFound
	}
	bet.Fills = append(bet.Fills, fill)
	bet.Amount += fill.Amount
	bet.Shares += fill.Shares
	bet.IsFilled = isFilled
	m.bets[betID] = bet
	return nil
}

func (m *memBets) Cancel(_ context.Context, betID string) error {
	bet, ok := m.bets[betID]
	if !ok {
		return domain.ErrNotFound
	}
	bet.IsCancelled = true
	m.bets[betID] = bet
	return nil
}

func (m *memBets) MarkSold(_ context.Context, betID string) error {
	bet, ok := m.bets[betID]
	if !ok {
		return domain.ErrNotFound
	}
	bet.IsSold = true
	m.bets[betID] = bet
	return nil
}

type memLiquidity memStores

func (m *memLiquidity) Create(_ context.Context, lp domain.LiquidityProvision) error {
	m.liquidity[lp.ContractID] = append(m.liquidity[lp.ContractID], lp)
	return nil
}

func (m *memLiquidity) ListByContract(_ context.Context, contractID string) ([]domain.LiquidityProvision, error) {
	return m.liquidity[contractID], nil
}

type memPayouts memStores

func (m *memPayouts) CreateBatch(_ context.Context, contractID string, payouts []domain.Payout) error {
	m.payouts[contractID] = append(m.payouts[contractID], payouts...)
	return nil
}

func (m *memPayouts) ListByContract(_ context.Context, contractID string) ([]domain.Payout, error) {
	return m.payouts[contractID], nil
}

type memUsers memStores

func (m *memUsers) GetBalance(_ context.Context, userID string) (float64, error) {
	balance, ok := m.balances[userID]
	if !ok {
		return 0, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return balance, nil
}

func (m *memUsers) GetBalances(_ context.Context, userIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(userIDs))
	for _, id := range userIDs {
		if balance, ok := m.balances[id]; ok {
			out[id] = balance
		}
	}
	return out, nil
}

func (m *memUsers) AddToBalance(_ context.Context, userID string, delta float64) error {
	m.balances[userID] += delta
	return nil
}

func (m *memUsers) AddToBalances(ctx context.Context, deltas map[string]float64) error {
	for id, delta := range deltas {
		if err := m.AddToBalance(ctx, id, delta); err != nil {
			return err
		}
	}
	return nil
}

// memLocks counts acquisitions; it never contends.
type memLocks struct {
	acquired int
}

func (m *memLocks) Acquire(_ context.Context, _ string, _ time.Duration) (func(), error) {
	m.acquired++
	return func() {}, nil
}

// memProbs is an in-memory domain.ProbCache.
type memProbs struct {
	probs map[string]float64
}

func newMemProbs() *memProbs {
	return &memProbs{probs: make(map[string]float64)}
}

func (m *memProbs) SetProbability(_ context.Context, contractID string, prob float64, _ time.Time) error {
	m.probs[contractID] = prob
	return nil
}

func (m *memProbs) GetProbability(_ context.Context, contractID string) (float64, time.Time, error) {
	prob, ok := m.probs[contractID]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return prob, time.Time{}, nil
}

func (m *memProbs) Invalidate(_ context.Context, contractID string) error {
	delete(m.probs, contractID)
	return nil
}

var (
	_ domain.TxRunner    = (*memStores)(nil)
	_ domain.LockManager = (*memLocks)(nil)
	_ domain.ProbCache   = (*memProbs)(nil)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldmarket/foldmarket/internal/domain"
)

func newLiquidityHarness(t *testing.T) (*memStores, *LiquidityService) {
	t.Helper()
	mem := newMemStores()
	svc := NewLiquidityService(mem, &memLocks{}, 10*time.Second, testLogger())
	return mem, svc
}

func TestAddLiquidity(t *testing.T) {
	mem, svc := newLiquidityHarness(t)
	mem.contracts["c1"] = newCPMMContract("c1")
	mem.balances["lp"] = 500

	provision, err := svc.AddLiquidity(context.Background(), "c1", "lp", 50)
	require.NoError(t, err)

	assert.Equal(t, 50.0, provision.Amount)
	assert.False(t, provision.IsAnte)
	// The snapshot records the pool before the deposit.
	assert.InDelta(t, 100, provision.Pool[domain.OutcomeYes], 1e-9)

	contract := mem.contracts["c1"]
	assert.InDelta(t, 150, contract.TotalLiquidity, 1e-9)
	assert.InDelta(t, 150, contract.Pool[domain.OutcomeYes], 1e-9)
	assert.InDelta(t, 150, contract.Pool[domain.OutcomeNo], 1e-9)
	assert.InDelta(t, 450, mem.balances["lp"], 1e-9)
	assert.Len(t, mem.liquidity["c1"], 1)
}

func TestAddLiquidityRejectsBadInput(t *testing.T) {
	mem, svc := newLiquidityHarness(t)
	mem.contracts["c1"] = newCPMMContract("c1")
	mem.balances["lp"] = 10

	_, err := svc.AddLiquidity(context.Background(), "c1", "lp", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.AddLiquidity(context.Background(), "c1", "lp", 100)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	dpm := newCPMMContract("c2")
	dpm.Mechanism = domain.MechanismDPM
	mem.contracts["c2"] = dpm
	_, err = svc.AddLiquidity(context.Background(), "c2", "lp", 5)
	assert.ErrorIs(t, err, domain.ErrUnsupportedMechanism)
}

func TestWithdrawLiquidity(t *testing.T) {
	mem, svc := newLiquidityHarness(t)
	mem.contracts["c1"] = newCPMMContract("c1")
	mem.balances["lp"] = 500

	_, err := svc.AddLiquidity(context.Background(), "c1", "lp", 50)
	require.NoError(t, err)

	// Pool sits at 150/150; the retained minimum of 100 leaves 50 removable.
	provision, err := svc.WithdrawLiquidity(context.Background(), "c1", "lp", 30)
	require.NoError(t, err)
	assert.Equal(t, -30.0, provision.Amount)

	contract := mem.contracts["c1"]
	assert.InDelta(t, 120, contract.TotalLiquidity, 1e-9)
	assert.InDelta(t, 120, contract.Pool[domain.OutcomeYes], 1e-9)
	assert.InDelta(t, 480, mem.balances["lp"], 1e-9)

	// More than the removable remainder is rejected whole.
	_, err = svc.WithdrawLiquidity(context.Background(), "c1", "lp", 100)
	assert.ErrorIs(t, err, domain.ErrLiquidityTooLow)

	// Zero withdraws the maximum removable.
	provision, err = svc.WithdrawLiquidity(context.Background(), "c1", "lp", 0)
	require.NoError(t, err)
	assert.InDelta(t, -20, provision.Amount, 1e-9)
	assert.InDelta(t, 100, mem.contracts["c1"].Pool[domain.OutcomeYes], 1e-9)
}

func TestWithdrawLiquidityRequiresProvision(t *testing.T) {
	mem, svc := newLiquidityHarness(t)
	mem.contracts["c1"] = newCPMMContract("c1")
	mem.balances["lp"] = 500
	mem.balances["mallory"] = 0

	_, err := svc.AddLiquidity(context.Background(), "c1", "lp", 50)
	require.NoError(t, err)

	// The pool has 50 removable, but none of it belongs to mallory.
	_, err = svc.WithdrawLiquidity(context.Background(), "c1", "mallory", 30)
	assert.ErrorIs(t, err, domain.ErrLiquidityTooLow)
	assert.Equal(t, 0.0, mem.balances["mallory"])
	assert.InDelta(t, 150, mem.contracts["c1"].Pool[domain.OutcomeYes], 1e-9)

	// An explicit drain-the-rest request fails the same way.
	_, err = svc.WithdrawLiquidity(context.Background(), "c1", "mallory", 0)
	assert.ErrorIs(t, err, domain.ErrLiquidityTooLow)
}

func TestWithdrawLiquidityAtFloor(t *testing.T) {
	mem, svc := newLiquidityHarness(t)
	mem.contracts["c1"] = newCPMMContract("c1")
	mem.balances["lp"] = 500

	// The seed pool is already at the retained minimum.
	_, err := svc.WithdrawLiquidity(context.Background(), "c1", "lp", 10)
	assert.ErrorIs(t, err, domain.ErrLiquidityTooLow)
}

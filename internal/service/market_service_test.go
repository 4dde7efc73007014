package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/dpm"
)

func newMarketHarness(t *testing.T) (*memStores, *memProbs, *MarketService) {
	t.Helper()
	mem := newMemStores()
	probs := newMemProbs()
	svc := NewMarketService(mem, probs, 100, testLogger())
	return mem, probs, svc
}

func TestCreateCPMMContract(t *testing.T) {
	mem, _, svc := newMarketHarness(t)
	mem.balances["creator"] = 1000

	contract, err := svc.CreateContract(context.Background(), CreateContractRequest{
		CreatorID:          "creator",
		Question:           "Will the launch slip?",
		Mechanism:          domain.MechanismCPMM,
		OutcomeType:        domain.OutcomeTypeBinary,
		InitialProbPercent: 40,
	})
	require.NoError(t, err)

	assert.InDelta(t, 100, contract.Pool[domain.OutcomeYes], 1e-9)
	assert.InDelta(t, 100, contract.Pool[domain.OutcomeNo], 1e-9)
	assert.InDelta(t, 0.4, contract.P, 1e-9)
	assert.InDelta(t, 100, contract.TotalLiquidity, 1e-9)
	assert.InDelta(t, 900, mem.balances["creator"], 1e-9)

	provisions := mem.liquidity[contract.ID]
	require.Len(t, provisions, 1)
	assert.True(t, provisions[0].IsAnte)
	assert.InDelta(t, 100, provisions[0].Amount, 1e-9)
}

func TestCreateBinaryDPMContract(t *testing.T) {
	mem, _, svc := newMarketHarness(t)
	mem.balances["creator"] = 1000

	contract, err := svc.CreateContract(context.Background(), CreateContractRequest{
		CreatorID:          "creator",
		Question:           "Binary DPM",
		Mechanism:          domain.MechanismDPM,
		OutcomeType:        domain.OutcomeTypeBinary,
		InitialProbPercent: 30,
		Ante:               50,
	})
	require.NoError(t, err)

	// The ante splits across the two sides at the seeded odds.
	assert.InDelta(t, 50,
		contract.Pool[domain.OutcomeYes]+contract.Pool[domain.OutcomeNo], 1e-9)
	assert.Positive(t, contract.TotalShares[domain.OutcomeYes])
	assert.Positive(t, contract.TotalShares[domain.OutcomeNo])
	assert.InDelta(t, 950, mem.balances["creator"], 1e-9)

	bets, err := mem.stores().Bets.ListByContract(context.Background(), contract.ID)
	require.NoError(t, err)
	require.Len(t, bets, 2)
	for _, bet := range bets {
		assert.True(t, bet.IsAnte)
		assert.Equal(t, "creator", bet.UserID)
	}
}

func TestCreateNumericContractDefaults(t *testing.T) {
	mem, _, svc := newMarketHarness(t)
	mem.balances["creator"] = 1000

	contract, err := svc.CreateContract(context.Background(), CreateContractRequest{
		CreatorID:   "creator",
		Question:    "How many units ship?",
		Mechanism:   domain.MechanismDPM,
		OutcomeType: domain.OutcomeTypeNumeric,
		Min:         0,
		Max:         1000,
	})
	require.NoError(t, err)
	assert.Equal(t, dpm.DefaultBucketCount, contract.BucketCount)
	assert.Empty(t, contract.TotalShares)
}

func TestCreateContractRejectsBadInput(t *testing.T) {
	mem, _, svc := newMarketHarness(t)
	mem.balances["creator"] = 10

	_, err := svc.CreateContract(context.Background(), CreateContractRequest{
		CreatorID:          "creator",
		Mechanism:          domain.MechanismCPMM,
		OutcomeType:        domain.OutcomeTypeBinary,
		InitialProbPercent: 100,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidProbability)

	_, err = svc.CreateContract(context.Background(), CreateContractRequest{
		CreatorID:   "creator",
		Mechanism:   domain.MechanismDPM,
		OutcomeType: domain.OutcomeTypeNumeric,
		Min:         10,
		Max:         10,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.CreateContract(context.Background(), CreateContractRequest{
		CreatorID:          "creator",
		Mechanism:          domain.MechanismCPMM,
		OutcomeType:        domain.OutcomeTypeBinary,
		InitialProbPercent: 50,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = svc.CreateContract(context.Background(), CreateContractRequest{
		CreatorID:          "creator",
		Mechanism:          domain.MechanismCPMM,
		OutcomeType:        domain.OutcomeTypeFreeResponse,
		InitialProbPercent: 50,
	})
	assert.ErrorIs(t, err, domain.ErrUnsupportedMechanism)
}

func TestProbabilityUsesCacheThenStore(t *testing.T) {
	mem, probs, svc := newMarketHarness(t)
	contract := newCPMMContract("c1")
	mem.contracts["c1"] = contract

	// Cold cache: computed from the stored pool and written back.
	prob, err := svc.Probability(context.Background(), "c1")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, prob, 1e-9)
	assert.InDelta(t, 0.5, probs.probs["c1"], 1e-9)

	// Warm cache wins even when stale.
	probs.probs["c1"] = 0.77
	prob, err = svc.Probability(context.Background(), "c1")
	require.NoError(t, err)
	assert.InDelta(t, 0.77, prob, 1e-9)
}

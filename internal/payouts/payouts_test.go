package payouts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/fees"
)

func cpmmContract() *domain.Contract {
	return &domain.Contract{
		ID:          "c1",
		CreatorID:   "creator",
		Mechanism:   domain.MechanismCPMM,
		OutcomeType: domain.OutcomeTypeBinary,
		Pool:        map[string]float64{domain.OutcomeYes: 80, domain.OutcomeNo: 120},
		P:           0.5,
		CollectedFees: domain.Fees{
			CreatorFee: 5, PlatformFee: 3, LiquidityFee: 2,
		},
	}
}

func anteProvision(userID string, amount float64) domain.LiquidityProvision {
	return domain.LiquidityProvision{
		UserID: userID,
		Amount: amount,
		Pool:   map[string]float64{domain.OutcomeYes: 0, domain.OutcomeNo: 0},
		IsAnte: true,
	}
}

func TestFixedStandardPayouts(t *testing.T) {
	contract := cpmmContract()
	bets := []domain.Bet{
		{UserID: "alice", Outcome: domain.OutcomeYes, Amount: 10, Shares: 25},
		{UserID: "bob", Outcome: domain.OutcomeNo, Amount: 10, Shares: 20},
	}
	liquidities := []domain.LiquidityProvision{anteProvision("creator", 100)}

	info, err := Compute(domain.OutcomeYes, contract, bets, liquidities, nil, nil, fees.Default())
	require.NoError(t, err)

	// Winning shares pay 1:1; losers get nothing.
	require.Len(t, info.Payouts, 1)
	assert.Equal(t, "alice", info.Payouts[0].UserID)
	assert.InDelta(t, 25, info.Payouts[0].Payout, 1e-12)

	// Creator receives the accumulated creator fee.
	assert.InDelta(t, 5, info.CreatorPayout, 1e-12)

	// Sole provider claims the whole winning-side pool.
	require.Len(t, info.LiquidityPayouts, 1)
	assert.Equal(t, "creator", info.LiquidityPayouts[0].UserID)
	assert.InDelta(t, 80, info.LiquidityPayouts[0].Payout, 1e-9)
}

func TestFixedMktPayouts(t *testing.T) {
	contract := cpmmContract()
	p := 0.7
	bets := []domain.Bet{
		{UserID: "alice", Outcome: domain.OutcomeYes, Amount: 5, Shares: 10},
		{UserID: "bob", Outcome: domain.OutcomeNo, Amount: 5, Shares: 10},
	}

	info, err := Compute(domain.ResolutionMkt, contract, bets, nil, nil, &p, fees.Default())
	require.NoError(t, err)

	require.Len(t, info.Payouts, 2)
	assert.InDelta(t, 7, info.Payouts[0].Payout, 1e-12)
	assert.InDelta(t, 3, info.Payouts[1].Payout, 1e-12)
}

func TestFixedCancelPayouts(t *testing.T) {
	contract := cpmmContract()
	bets := []domain.Bet{
		{UserID: "alice", Outcome: domain.OutcomeYes, Amount: 10, Shares: 25},
		{UserID: "creator", Outcome: domain.OutcomeYes, Amount: 50, Shares: 50, IsAnte: true},
	}
	liquidities := []domain.LiquidityProvision{
		anteProvision("creator", 100),
		{UserID: "lp", Amount: 40, Pool: map[string]float64{domain.OutcomeYes: 100, domain.OutcomeNo: 100}},
	}

	info, err := Compute(domain.ResolutionCancel, contract, bets, liquidities, nil, nil, fees.Default())
	require.NoError(t, err)

	// Non-ante bettors get their stake back; antes are skipped.
	require.Len(t, info.Payouts, 1)
	assert.Equal(t, "alice", info.Payouts[0].UserID)
	assert.InDelta(t, 10, info.Payouts[0].Payout, 1e-12)

	// Every provider is refunded exactly their contribution.
	require.Len(t, info.LiquidityPayouts, 2)
	assert.InDelta(t, 100, info.LiquidityPayouts[0].Payout, 1e-12)
	assert.InDelta(t, 40, info.LiquidityPayouts[1].Payout, 1e-12)

	assert.Equal(t, 0.0, info.CreatorPayout)
}

func TestDpmStandardPayoutsConservation(t *testing.T) {
	contract := &domain.Contract{
		Mechanism:   domain.MechanismDPM,
		OutcomeType: domain.OutcomeTypeBinary,
		Pool:        map[string]float64{domain.OutcomeYes: 60, domain.OutcomeNo: 40},
		TotalShares: map[string]float64{domain.OutcomeYes: 80, domain.OutcomeNo: 50},
		TotalBets:   map[string]float64{domain.OutcomeYes: 60, domain.OutcomeNo: 40},
	}
	bets := []domain.Bet{
		{UserID: "alice", Outcome: domain.OutcomeYes, Amount: 40, Shares: 50},
		{UserID: "bob", Outcome: domain.OutcomeYes, Amount: 20, Shares: 30},
		{UserID: "carol", Outcome: domain.OutcomeNo, Amount: 40, Shares: 50},
	}

	info, err := Compute(domain.OutcomeYes, contract, bets, nil, nil, nil, fees.Default())
	require.NoError(t, err)
	require.Len(t, info.Payouts, 2)

	// Payouts plus the fees taken on profit equal the full pool.
	var total float64
	for _, p := range info.Payouts {
		total += p.Payout
	}
	assert.InDelta(t, 100, total+info.CollectedFees.Total(), 1e-9)

	// Creator payout is the creator's cut of resolution profits.
	assert.InDelta(t, info.CollectedFees.CreatorFee, info.CreatorPayout, 1e-12)
}

func TestDpmPayoutsExcludeSoldBets(t *testing.T) {
	contract := &domain.Contract{
		Mechanism:   domain.MechanismDPM,
		OutcomeType: domain.OutcomeTypeBinary,
		Pool:        map[string]float64{domain.OutcomeYes: 60, domain.OutcomeNo: 40},
		TotalShares: map[string]float64{domain.OutcomeYes: 80, domain.OutcomeNo: 50},
		TotalBets:   map[string]float64{domain.OutcomeYes: 60, domain.OutcomeNo: 40},
	}
	bets := []domain.Bet{
		{UserID: "alice", Outcome: domain.OutcomeYes, Amount: 40, Shares: 50},
		{UserID: "bob", Outcome: domain.OutcomeYes, Amount: 20, Shares: 30, IsSold: true},
		{UserID: "bob", Outcome: domain.OutcomeYes, Amount: -20, Shares: -30, Sale: &domain.SaleInfo{Amount: 20, BetID: "b2"}},
	}

	info, err := Compute(domain.OutcomeYes, contract, bets, nil, nil, nil, fees.None())
	require.NoError(t, err)
	require.Len(t, info.Payouts, 1)
	assert.Equal(t, "alice", info.Payouts[0].UserID)
}

func TestDpmMultiOutcomePayouts(t *testing.T) {
	contract := &domain.Contract{
		Mechanism:   domain.MechanismDPM,
		OutcomeType: domain.OutcomeTypeFreeResponse,
		Pool:        map[string]float64{"0": 50, "1": 30, "2": 20},
		TotalShares: map[string]float64{"0": 60, "1": 40, "2": 25},
		TotalBets:   map[string]float64{"0": 50, "1": 30, "2": 20},
	}
	bets := []domain.Bet{
		{UserID: "alice", Outcome: "0", Amount: 50, Shares: 60},
		{UserID: "bob", Outcome: "1", Amount: 30, Shares: 40},
		{UserID: "carol", Outcome: "2", Amount: 20, Shares: 25},
	}
	resolutions := map[string]float64{"0": 75, "1": 25}

	info, err := Compute(domain.ResolutionMkt, contract, bets, nil, resolutions, nil, fees.None())
	require.NoError(t, err)

	// Only outcomes named in the resolution weights win.
	require.Len(t, info.Payouts, 2)
	byUser := GroupByUser(info.Payouts)
	assert.InDelta(t, 75, byUser["alice"], 1e-9)
	assert.InDelta(t, 25, byUser["bob"], 1e-9)
	assert.NotContains(t, byUser, "carol")
}

func TestUnsupportedMechanism(t *testing.T) {
	contract := cpmmContract()
	contract.OutcomeType = domain.OutcomeTypeFreeResponse

	_, err := Compute(domain.OutcomeYes, contract, nil, nil, nil, nil, fees.Default())
	assert.ErrorIs(t, err, domain.ErrUnsupportedMechanism)
}

func TestLoanPayouts(t *testing.T) {
	bets := []domain.Bet{
		{UserID: "alice", LoanAmount: 10},
		{UserID: "alice", LoanAmount: 5},
		{UserID: "bob", LoanAmount: 0},
	}
	loans := LoanPayouts(bets)
	require.Len(t, loans, 1)
	assert.Equal(t, "alice", loans[0].UserID)
	assert.InDelta(t, -15, loans[0].Payout, 1e-12)
}

func TestGroupByUser(t *testing.T) {
	totals := GroupByUser([]domain.Payout{
		{UserID: "alice", Payout: 10},
		{UserID: "alice", Payout: -3},
		{UserID: "bob", Payout: 7},
	})
	assert.InDelta(t, 7, totals["alice"], 1e-12)
	assert.InDelta(t, 7, totals["bob"], 1e-12)
}

package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/fees"
)

func TestProbabilityDispatch(t *testing.T) {
	cpmmContract := &domain.Contract{
		Mechanism: domain.MechanismCPMM,
		Pool:      map[string]float64{domain.OutcomeYes: 50, domain.OutcomeNo: 150},
		P:         0.5,
	}
	p, err := Probability(cpmmContract)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, p, 1e-12)

	dpmContract := &domain.Contract{
		Mechanism:   domain.MechanismDPM,
		TotalShares: map[string]float64{domain.OutcomeYes: 30, domain.OutcomeNo: 40},
	}
	p, err = Probability(dpmContract)
	require.NoError(t, err)
	assert.InDelta(t, 900.0/2500.0, p, 1e-12)

	_, err = Probability(&domain.Contract{Mechanism: "amm-9"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedMechanism)
}

func TestOutcomeProbability(t *testing.T) {
	contract := &domain.Contract{
		Mechanism: domain.MechanismCPMM,
		Pool:      map[string]float64{domain.OutcomeYes: 50, domain.OutcomeNo: 150},
		P:         0.5,
	}

	yes, err := OutcomeProbability(contract, domain.OutcomeYes)
	require.NoError(t, err)
	no, err := OutcomeProbability(contract, domain.OutcomeNo)
	require.NoError(t, err)
	assert.InDelta(t, 1, yes+no, 1e-12)

	_, err = OutcomeProbability(contract, "MAYBE")
	assert.ErrorIs(t, err, domain.ErrInvalidOutcome)
}

func TestResolvedPayout(t *testing.T) {
	contract := &domain.Contract{
		Mechanism:  domain.MechanismCPMM,
		Pool:       map[string]float64{domain.OutcomeYes: 100, domain.OutcomeNo: 100},
		P:          0.5,
		IsResolved: true,
		Resolution: domain.OutcomeYes,
	}
	winner := &domain.Bet{Outcome: domain.OutcomeYes, Amount: 10, Shares: 18}
	loser := &domain.Bet{Outcome: domain.OutcomeNo, Amount: 10, Shares: 18}

	payout, err := ResolvedPayout(contract, winner, fees.Default())
	require.NoError(t, err)
	assert.InDelta(t, 18, payout, 1e-12)

	payout, err = ResolvedPayout(contract, loser, fees.Default())
	require.NoError(t, err)
	assert.Equal(t, 0.0, payout)

	contract.IsResolved = false
	_, err = ResolvedPayout(contract, winner, fees.Default())
	assert.ErrorIs(t, err, domain.ErrContractNotResolved)
}

func TestCPMMMktPayout(t *testing.T) {
	p := 0.7
	contract := &domain.Contract{
		Mechanism:             domain.MechanismCPMM,
		Pool:                  map[string]float64{domain.OutcomeYes: 100, domain.OutcomeNo: 100},
		P:                     0.5,
		ResolutionProbability: &p,
	}
	yes := &domain.Bet{Outcome: domain.OutcomeYes, Shares: 10}
	no := &domain.Bet{Outcome: domain.OutcomeNo, Shares: 10}

	payout, err := Payout(contract, yes, domain.ResolutionMkt, fees.Default())
	require.NoError(t, err)
	assert.InDelta(t, 7, payout, 1e-12)

	payout, err = Payout(contract, no, domain.ResolutionMkt, fees.Default())
	require.NoError(t, err)
	assert.InDelta(t, 3, payout, 1e-12)
}

func TestCPMMCancelPayout(t *testing.T) {
	contract := &domain.Contract{
		Mechanism: domain.MechanismCPMM,
		Pool:      map[string]float64{domain.OutcomeYes: 100, domain.OutcomeNo: 100},
		P:         0.5,
	}
	bet := &domain.Bet{Outcome: domain.OutcomeYes, Amount: 10, Shares: 18}

	payout, err := Payout(contract, bet, domain.ResolutionCancel, fees.Default())
	require.NoError(t, err)
	assert.InDelta(t, 10, payout, 1e-12)
}

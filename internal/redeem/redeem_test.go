package redeem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldmarket/foldmarket/internal/domain"
)

func TestRedeemableAmount(t *testing.T) {
	bets := []domain.Bet{
		{Outcome: domain.OutcomeYes, Shares: 30},
		{Outcome: domain.OutcomeNo, Shares: 20, LoanAmount: 6},
	}

	amount := RedeemableAmount(bets)
	assert.InDelta(t, 20, amount.Shares, 1e-12)
	// Loan repaid proportionally: 20/30 of 6.
	assert.InDelta(t, 4, amount.LoanPayment, 1e-12)
	assert.InDelta(t, 16, amount.NetAmount, 1e-12)
}

func TestRedeemableAmountOneSided(t *testing.T) {
	bets := []domain.Bet{{Outcome: domain.OutcomeYes, Shares: 30}}
	amount := RedeemableAmount(bets)
	assert.Equal(t, 0.0, amount.Shares)
	assert.Equal(t, 0.0, amount.LoanPayment)
}

func TestRedeemableAmountNegativeNet(t *testing.T) {
	// A net-short side clamps to zero rather than redeeming negative pairs.
	bets := []domain.Bet{
		{Outcome: domain.OutcomeYes, Shares: -10},
		{Outcome: domain.OutcomeNo, Shares: 20},
	}
	assert.Equal(t, 0.0, RedeemableAmount(bets).Shares)
}

func TestRedemptionBets(t *testing.T) {
	contract := &domain.Contract{
		ID:        "c1",
		Mechanism: domain.MechanismCPMM,
		Pool:      map[string]float64{domain.OutcomeYes: 100, domain.OutcomeNo: 100},
		P:         0.5,
	}

	bets := RedemptionBets(contract, "alice", 20, 4, time.Now())
	require.Len(t, bets, 2)

	yes, no := bets[0], bets[1]
	assert.Equal(t, domain.OutcomeYes, yes.Outcome)
	assert.Equal(t, domain.OutcomeNo, no.Outcome)

	// Both sides carry negative shares and the probability is untouched.
	assert.InDelta(t, -20, yes.Shares, 1e-12)
	assert.InDelta(t, -20, no.Shares, 1e-12)
	assert.Equal(t, yes.ProbBefore, yes.ProbAfter)
	assert.True(t, yes.IsRedemption)

	// Amounts split by probability; together they sum to -shares.
	assert.InDelta(t, -10, yes.Amount, 1e-12)
	assert.InDelta(t, -10, no.Amount, 1e-12)

	// Loan repayment is split across the pair.
	assert.InDelta(t, -2, yes.LoanAmount, 1e-12)
	assert.InDelta(t, -2, no.LoanAmount, 1e-12)
}

// Package redeem nets offsetting YES/NO positions on a binary CPMM
// contract into withdrawable collateral. A matched YES+NO share pair is
// worth exactly one currency unit regardless of the resolution, so it can
// be cashed out early without touching the pool.
package redeem

import (
	"math"
	"time"

	"github.com/foldmarket/foldmarket/internal/cpmm"
	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/google/uuid"
)

// Amount describes the redeemable portion of a user's open bets.
type Amount struct {
	// Shares is the matched YES/NO pair count.
	Shares float64
	// LoanPayment is the portion of outstanding loans repaid alongside,
	// proportional to the fraction of the larger side being netted.
	LoanPayment float64
	// NetAmount is what the user's balance gains: Shares - LoanPayment.
	NetAmount float64
}

// RedeemableAmount computes how much of the user's position nets out.
func RedeemableAmount(bets []domain.Bet) Amount {
	var yesShares, noShares, loanAmount float64
	for _, bet := range bets {
		switch bet.Outcome {
		case domain.OutcomeYes:
			yesShares += bet.Shares
		case domain.OutcomeNo:
			noShares += bet.Shares
		}
		loanAmount += bet.LoanAmount
	}

	shares := math.Max(math.Min(yesShares, noShares), 0)

	var soldFrac float64
	if shares > 0 {
		soldFrac = math.Min(yesShares, noShares) / math.Max(yesShares, noShares)
	}
	loanPayment := loanAmount * soldFrac

	return Amount{
		Shares:      shares,
		LoanPayment: loanPayment,
		NetAmount:   shares - loanPayment,
	}
}

// RedemptionBets builds the paired bookkeeping bets recording a netting:
// one per side, negative shares and amount, priced at the current
// probability so the pair has zero net probability impact. The pool is not
// touched.
func RedemptionBets(contract *domain.Contract, userID string, shares, loanPayment float64, now time.Time) []domain.Bet {
	p := cpmm.Probability(contract.Pool, contract.P)

	loanPerSide := 0.0
	if loanPayment != 0 {
		loanPerSide = -loanPayment / 2
	}

	bet := domain.Bet{
		UserID:       userID,
		ContractID:   contract.ID,
		Shares:       -shares,
		LoanAmount:   loanPerSide,
		ProbBefore:   p,
		ProbAfter:    p,
		Fees:         domain.NoFees,
		IsRedemption: true,
		CreatedAt:    now,
	}

	yesBet, noBet := bet, bet
	yesBet.ID = uuid.NewString()
	yesBet.Outcome = domain.OutcomeYes
	yesBet.Amount = p * -shares
	noBet.ID = uuid.NewString()
	noBet.Outcome = domain.OutcomeNo
	noBet.Amount = (1 - p) * -shares

	return []domain.Bet{yesBet, noBet}
}

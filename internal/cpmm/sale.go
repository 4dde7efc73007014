package cpmm

import (
	"fmt"
	"math"
	"time"

	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/fees"
	"github.com/foldmarket/foldmarket/internal/numeric"
)

// AmountToBuyShares finds the bet size whose fills (pool plus resting
// orders) add up to exactly the given share count. The search is bounded by
// [0, shares]: a share costs at least 0 and at most 1 currency unit.
func AmountToBuyShares(state State, shares float64, outcome string, unfilledBets []domain.Bet, balanceByUserID map[string]float64, sched fees.Schedule, now time.Time) float64 {
	return numeric.BinarySearch(0, shares, func(amount float64) float64 {
		res, err := ComputeFills(outcome, amount, state, nil, unfilledBets, balanceByUserID, sched, now)
		if err != nil {
			return 0
		}
		var total float64
		for _, taker := range res.Takers {
			total += taker.Shares
		}
		return total - shares
	})
}

// SaleResult is the outcome of selling shares back to the market.
type SaleResult struct {
	SaleValue      float64
	State          State
	Fees           domain.Fees
	Makers         []Maker
	Takers         []Taker
	OrdersToCancel []domain.Bet
}

// Sale sells shares of outcome by buying the equivalent number of shares of
// the opposite outcome, then relabeling the fills: bought opposite shares
// cancel against the shares being sold, and the money gained is the share
// count minus what the opposite purchase cost.
func Sale(state State, shares float64, outcome string, unfilledBets []domain.Bet, balanceByUserID map[string]float64, sched fees.Schedule, now time.Time) (SaleResult, error) {
	if math.Round(shares) < 0 {
		return SaleResult{}, fmt.Errorf("cpmm: cannot sell non-positive shares: %w", domain.ErrInvalidShares)
	}

	oppositeOutcome := domain.OutcomeNo
	if outcome == domain.OutcomeNo {
		oppositeOutcome = domain.OutcomeYes
	}

	buyAmount := AmountToBuyShares(state, shares, oppositeOutcome, unfilledBets, balanceByUserID, sched, now)

	res, err := ComputeFills(oppositeOutcome, buyAmount, state, nil, unfilledBets, balanceByUserID, sched, now)
	if err != nil {
		return SaleResult{}, err
	}

	saleTakers := make([]Taker, len(res.Takers))
	var saleValue float64
	for i, taker := range res.Takers {
		saleTakers[i] = Taker{
			MatchedBetID: taker.MatchedBetID,
			Shares:       -taker.Shares,
			Amount:       -(taker.Shares - taker.Amount),
			Timestamp:    taker.Timestamp,
		}
		saleValue -= saleTakers[i].Amount
	}

	return SaleResult{
		SaleValue:      saleValue,
		State:          res.State,
		Fees:           res.TotalFees,
		Makers:         res.Makers,
		Takers:         saleTakers,
		OrdersToCancel: res.OrdersToCancel,
	}, nil
}

// ProbabilityAfterSale returns the market probability after selling shares.
func ProbabilityAfterSale(state State, shares float64, outcome string, unfilledBets []domain.Bet, balanceByUserID map[string]float64, sched fees.Schedule, now time.Time) (float64, error) {
	res, err := Sale(state, shares, outcome, unfilledBets, balanceByUserID, sched, now)
	if err != nil {
		return 0, err
	}
	return Probability(res.State.Pool, res.State.P), nil
}

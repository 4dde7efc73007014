package cpmm

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/fees"
	"github.com/foldmarket/foldmarket/internal/numeric"
)

// Taker is one fill received by the incoming order: against the pool when
// MatchedBetID is empty, otherwise against the resting order it names.
type Taker struct {
	MatchedBetID string
	Amount       float64
	Shares       float64
	Timestamp    time.Time
}

// Maker is one fill given by a resting limit order.
type Maker struct {
	Bet       domain.Bet
	Amount    float64
	Shares    float64
	Timestamp time.Time
}

// FillResult is the full outcome of matching one incoming order.
type FillResult struct {
	Takers         []Taker
	Makers         []Maker
	TotalFees      domain.Fees
	State          State
	OrdersToCancel []domain.Bet
}

type fill struct {
	taker Taker
	maker *Maker
	// set when the fill came from the pool
	state State
	fees  domain.Fees
}

// computeFill matches as much of amount as possible against either the pool
// or the best resting order, whichever offers the better price, respecting
// the incoming order's own limit.
func computeFill(amount float64, outcome string, limitProb *float64, state State, matchedBet *domain.Bet, sched fees.Schedule, now time.Time) *fill {
	prob := Probability(state.Pool, state.P)

	if limitProb != nil {
		if outcome == domain.OutcomeYes {
			matchedLimit := 1.0
			if matchedBet != nil {
				matchedLimit = *matchedBet.LimitProb
			}
			if numeric.GreaterEqual(prob, *limitProb) && matchedLimit > *limitProb {
				// No fill: the book and pool are both above our limit.
				return nil
			}
		} else {
			matchedLimit := 0.0
			if matchedBet != nil {
				matchedLimit = *matchedBet.LimitProb
			}
			if numeric.LesserEqual(prob, *limitProb) && matchedLimit < *limitProb {
				return nil
			}
		}
	}

	poolIsBetter := matchedBet == nil
	if matchedBet != nil {
		if outcome == domain.OutcomeYes {
			poolIsBetter = !numeric.GreaterEqual(prob, *matchedBet.LimitProb)
		} else {
			poolIsBetter = !numeric.LesserEqual(prob, *matchedBet.LimitProb)
		}
	}

	if poolIsBetter {
		// Fill from the pool, up to the nearer of our limit and the
		// matched order's price.
		var limit *float64
		if matchedBet == nil {
			limit = limitProb
		} else if outcome == domain.OutcomeYes {
			l := *matchedBet.LimitProb
			if limitProb != nil && *limitProb < l {
				l = *limitProb
			}
			limit = &l
		} else {
			l := *matchedBet.LimitProb
			if limitProb != nil && *limitProb > l {
				l = *limitProb
			}
			limit = &l
		}

		buyAmount := amount
		if limit != nil {
			if toLimit := AmountToProb(state, *limit, outcome, sched); toLimit < buyAmount {
				buyAmount = toLimit
			}
		}

		res := Purchase(state, buyAmount, outcome, sched)
		return &fill{
			taker: Taker{Amount: buyAmount, Shares: res.Shares, Timestamp: now},
			state: res.State,
			fees:  res.Fees,
		}
	}

	// Fill from the matched order at its limit price.
	matchRemaining := matchedBet.OrderAmount - matchedBet.Amount
	takerProb := *matchedBet.LimitProb
	makerProb := 1 - *matchedBet.LimitProb
	if outcome == domain.OutcomeNo {
		takerProb, makerProb = makerProb, takerProb
	}
	shares := math.Min(amount/takerProb, matchRemaining/makerProb)

	return &fill{
		taker: Taker{
			MatchedBetID: matchedBet.ID,
			Amount:       shares * takerProb,
			Shares:       shares,
			Timestamp:    now,
		},
		maker: &Maker{
			Bet:       *matchedBet,
			Amount:    shares * makerProb,
			Shares:    shares,
			Timestamp: now,
		},
	}
}

// ComputeFills matches an incoming bet on outcome against the opposite
// side's resting limit orders and the pool, cheapest source first. Orders
// whose owner cannot cover the matched amount are returned in
// OrdersToCancel rather than filled.
func ComputeFills(outcome string, betAmount float64, state State, limitProb *float64, unfilledBets []domain.Bet, balanceByUserID map[string]float64, sched fees.Schedule, now time.Time) (FillResult, error) {
	if math.IsNaN(betAmount) {
		return FillResult{}, fmt.Errorf("cpmm: invalid bet amount: %w", domain.ErrInvalidAmount)
	}
	if limitProb != nil && math.IsNaN(*limitProb) {
		return FillResult{}, fmt.Errorf("cpmm: invalid limit prob: %w", domain.ErrInvalidProbability)
	}

	sorted := make([]domain.Bet, 0, len(unfilledBets))
	for _, bet := range unfilledBets {
		if bet.Outcome != outcome && bet.LimitProb != nil {
			sorted = append(sorted, bet)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := *sorted[i].LimitProb, *sorted[j].LimitProb
		if outcome == domain.OutcomeNo {
			pi, pj = -pi, -pj
		}
		if pi != pj {
			return pi < pj
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	result := FillResult{State: state}
	balances := make(map[string]float64, len(balanceByUserID))
	for userID, balance := range balanceByUserID {
		balances[userID] = balance
	}

	amount := betAmount
	i := 0
	for {
		var matchedBet *domain.Bet
		if i < len(sorted) {
			matchedBet = &sorted[i]
		}

		f := computeFill(amount, outcome, limitProb, result.State, matchedBet, sched, now)
		if f == nil {
			break
		}

		if f.maker == nil {
			// Matched against the pool.
			result.State = f.state
			result.TotalFees = result.TotalFees.Add(f.fees)
			result.Takers = append(result.Takers, f.taker)
		} else {
			// Matched against a resting order.
			i++
			makerBalance := balances[f.maker.Bet.UserID]
			if !numeric.GreaterEqual(makerBalance, f.maker.Amount) {
				result.OrdersToCancel = append(result.OrdersToCancel, f.maker.Bet)
				continue
			}
			balances[f.maker.Bet.UserID] = makerBalance - f.maker.Amount
			result.Takers = append(result.Takers, f.taker)
			result.Makers = append(result.Makers, *f.maker)
		}

		amount -= f.taker.Amount
		if numeric.ApproxEqual(amount, 0) {
			break
		}
	}

	return result, nil
}

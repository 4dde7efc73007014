// Package cpmm implements the weighted constant-product market maker.
//
// The pool invariant is YES^p * NO^(1-p) = k, where p is a per-contract
// weight exponent. Buying removes shares from the chosen side net of the bet
// added to both sides; fees are taken up front and the liquidity-fee
// portion is folded back into the pool as fresh liquidity.
package cpmm

import (
	"math"

	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/fees"
	"github.com/foldmarket/foldmarket/internal/numeric"
)

// MinPoolShares is the floor on either pool side after a trade. Trades that
// would push a side below it are rejected to avoid numeric singularities.
const MinPoolShares = 0.01

// State is an immutable CPMM pool snapshot.
type State struct {
	Pool map[string]float64
	P    float64
}

func (s State) yes() float64 { return s.Pool[domain.OutcomeYes] }
func (s State) no() float64  { return s.Pool[domain.OutcomeNo] }

func pool(yes, no float64) map[string]float64 {
	return map[string]float64{domain.OutcomeYes: yes, domain.OutcomeNo: no}
}

// Probability returns the market probability implied by the pool:
// p*NO / ((1-p)*YES + p*NO).
func Probability(poolShares map[string]float64, p float64) float64 {
	y := poolShares[domain.OutcomeYes]
	n := poolShares[domain.OutcomeNo]
	return (p * n) / ((1-p)*y + p*n)
}

// Shares solves the invariant for the shares received when adding bet to the
// chosen side. The two outcomes use mirrored closed forms (solve for YES vs
// solve for NO).
func Shares(poolShares map[string]float64, p, bet float64, outcome string) float64 {
	y := poolShares[domain.OutcomeYes]
	n := poolShares[domain.OutcomeNo]
	k := math.Pow(y, p) * math.Pow(n, 1-p)

	if outcome == domain.OutcomeYes {
		// (y+b-s)^p * (n+b)^(1-p) = k, solve s
		return y + bet - math.Pow(k*math.Pow(bet+n, p-1), 1/p)
	}
	// (y+b)^p * (n+b-s)^(1-p) = k, solve s
	return n + bet - math.Pow(k*math.Pow(bet+y, -p), 1/(1-p))
}

// ProbabilityAfterBetBeforeFees applies the full bet to the pool with no fee
// deduction and returns the resulting probability. The fee engine prices
// fees off this value.
func ProbabilityAfterBetBeforeFees(state State, outcome string, bet float64) float64 {
	shares := Shares(state.Pool, state.P, bet, outcome)
	y, n := state.yes(), state.no()

	var newY, newN float64
	if outcome == domain.OutcomeYes {
		newY, newN = y-shares+bet, n+bet
	} else {
		newY, newN = y+bet, n-shares+bet
	}
	return Probability(pool(newY, newN), state.P)
}

// TradeFees prices the fee split for a bet: each component is
// rate * betP * bet where betP is the post-trade-before-fee probability of
// the opposite side. Returns the fees and the bet remaining after them.
func TradeFees(state State, bet float64, outcome string, sched fees.Schedule) (domain.Fees, float64) {
	prob := ProbabilityAfterBetBeforeFees(state, outcome, bet)
	betP := prob
	if outcome == domain.OutcomeYes {
		betP = 1 - prob
	}
	return sched.CPMMTrade(betP, bet)
}

// SharesAfterFee returns the shares bought by a bet net of fees, without
// computing the new pool.
func SharesAfterFee(state State, bet float64, outcome string, sched fees.Schedule) float64 {
	_, remaining := TradeFees(state, bet, outcome, sched)
	return Shares(state.Pool, state.P, remaining, outcome)
}

// PurchaseResult is the outcome of applying one buy against the pool.
type PurchaseResult struct {
	Shares float64
	State  State
	Fees   domain.Fees
}

// Purchase applies a buy of bet on outcome: fees are deducted, shares are
// issued against the invariant, both pool sides grow by the remaining bet
// plus the liquidity fee, and the liquidity fee is then folded back in via
// AddLiquidity (which can shift p slightly at non-50% probabilities).
func Purchase(state State, bet float64, outcome string, sched fees.Schedule) PurchaseResult {
	tradeFees, remaining := TradeFees(state, bet, outcome, sched)
	shares := Shares(state.Pool, state.P, remaining, outcome)
	y, n := state.yes(), state.no()
	fee := tradeFees.LiquidityFee

	var newY, newN float64
	if outcome == domain.OutcomeYes {
		newY, newN = y-shares+remaining+fee, n+remaining+fee
	} else {
		newY, newN = y+remaining+fee, n-shares+remaining+fee
	}

	newPool, newP, _ := AddLiquidity(pool(newY, newN), state.P, fee)
	return PurchaseResult{
		Shares: shares,
		State:  State{Pool: newPool, P: newP},
		Fees:   tradeFees,
	}
}

// OutcomeProbabilityAfterBet returns the probability of the chosen outcome
// after a full purchase (fees included).
func OutcomeProbabilityAfterBet(state State, outcome string, bet float64, sched fees.Schedule) float64 {
	res := Purchase(state, bet, outcome, sched)
	p := Probability(res.State.Pool, res.State.P)
	if outcome == domain.OutcomeNo {
		return 1 - p
	}
	return p
}

// AmountToProb returns the bet size that moves the chosen outcome's
// probability to prob. There is no closed form: an upper bound is grown by
// a factor of 10 from a seed of 10 until the resulting probability
// overshoots, then the amount is binary-searched within [0, bound].
// Out-of-range probabilities return +Inf.
func AmountToProb(state State, prob float64, outcome string, sched fees.Schedule) float64 {
	if prob <= 0 || prob >= 1 || math.IsNaN(prob) {
		return math.Inf(1)
	}
	if outcome == domain.OutcomeNo {
		prob = 1 - prob
	}

	maxGuess := 10.0
	newProb := 0.0
	for {
		maxGuess *= 10
		newProb = OutcomeProbabilityAfterBet(state, outcome, maxGuess, sched)
		if newProb >= prob {
			break
		}
	}

	return numeric.BinarySearch(0, maxGuess, func(amount float64) float64 {
		return OutcomeProbabilityAfterBet(state, outcome, amount, sched) - prob
	})
}

// Package dpm implements the dynamic parimutuel market maker.
//
// Probabilities follow a quadratic scoring rule over cumulative issued
// shares; bets buy shares against a closed-form issuance curve and payouts
// split the pool pro rata at settlement, with fees charged on profit only.
package dpm

import (
	"math"

	"github.com/foldmarket/foldmarket/internal/domain"
)

// Probability returns the YES probability of a binary DPM contract.
func Probability(totalShares map[string]float64) float64 {
	return OutcomeProbability(totalShares, domain.OutcomeYes)
}

// OutcomeProbability returns shares^2 / sum of all squared shares.
func OutcomeProbability(totalShares map[string]float64, outcome string) float64 {
	var squareSum float64
	for _, shares := range totalShares {
		squareSum += shares * shares
	}
	if squareSum == 0 {
		return 0
	}
	shares := totalShares[outcome]
	return shares * shares / squareSum
}

// OutcomeProbabilities returns the quadratic-rule probability of every
// outcome at once.
func OutcomeProbabilities(totalShares map[string]float64) map[string]float64 {
	var squareSum float64
	for _, shares := range totalShares {
		squareSum += shares * shares
	}
	probs := make(map[string]float64, len(totalShares))
	for outcome, shares := range totalShares {
		if squareSum == 0 {
			probs[outcome] = 0
			continue
		}
		probs[outcome] = shares * shares / squareSum
	}
	return probs
}

// Shares returns the shares issued for a bet on the chosen outcome:
// sqrt(bet^2 + shares^2 + 2*bet*sqrt(sum of squared shares)) - shares.
func Shares(totalShares map[string]float64, bet float64, outcome string) float64 {
	var squareSum float64
	for _, shares := range totalShares {
		squareSum += shares * shares
	}
	shares := totalShares[outcome]

	c := 2 * bet * math.Sqrt(squareSum)
	return math.Sqrt(bet*bet+shares*shares+c) - shares
}

// OutcomeProbabilityAfterBet returns the outcome's probability once a bet's
// shares have been issued.
func OutcomeProbabilityAfterBet(totalShares map[string]float64, outcome string, bet float64) float64 {
	shares := Shares(totalShares, bet, outcome)
	newTotal := cloneShares(totalShares)
	newTotal[outcome] += shares
	return OutcomeProbability(newTotal, outcome)
}

// ProbabilityAfterSale returns the tracked probability after removing
// shares from the chosen outcome. For binary contracts the YES probability
// is always reported.
func ProbabilityAfterSale(totalShares map[string]float64, outcome string, shares float64) float64 {
	newTotal := cloneShares(totalShares)
	newTotal[outcome] -= shares

	predictionOutcome := outcome
	if outcome == domain.OutcomeNo {
		predictionOutcome = domain.OutcomeYes
	}
	return OutcomeProbability(newTotal, predictionOutcome)
}

// InitialPool seeds a binary DPM contract from an ante and a phantom ante at
// an initial probability expressed as a whole percentage.
type InitialPool struct {
	SharesYes  float64
	SharesNo   float64
	PoolYes    float64
	PoolNo     float64
	PhantomYes float64
	PhantomNo  float64
}

// NewInitialPool computes initial shares, pool balances, and phantom shares.
// Phantom shares carry the initial odds without a matching stake.
func NewInitialPool(initialProbPercent int, ante, phantomAnte float64) InitialPool {
	p := float64(initialProbPercent) / 100.0
	totalAnte := phantomAnte + ante

	sharesYes := math.Sqrt(p * totalAnte * totalAnte)
	sharesNo := math.Sqrt(totalAnte*totalAnte - sharesYes*sharesYes)

	return InitialPool{
		SharesYes:  sharesYes,
		SharesNo:   sharesNo,
		PoolYes:    p * ante,
		PoolNo:     (1 - p) * ante,
		PhantomYes: math.Sqrt(p) * phantomAnte,
		PhantomNo:  math.Sqrt(1-p) * phantomAnte,
	}
}

func cloneShares(totalShares map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(totalShares))
	for outcome, shares := range totalShares {
		out[outcome] = shares
	}
	return out
}

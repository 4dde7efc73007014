package dpm

import (
	"fmt"
	"math"

	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/fees"
)

// RawShareValue is the drop in the share-value measure sqrt(sum of squared
// shares) caused by removing shares from the chosen outcome.
func RawShareValue(totalShares map[string]float64, shares float64, outcome string) float64 {
	var currentSum, postSum float64
	for o, s := range totalShares {
		currentSum += s * s
		if o == outcome {
			remaining := math.Max(0, s-shares)
			postSum += remaining * remaining
		} else {
			postSum += s * s
		}
	}
	return math.Sqrt(currentSum) - math.Sqrt(postSum)
}

// MoneyRatio is the solvency clamp applied to a sale: the actual pool value
// left after the sale over the probability-weighted expected claims of all
// other bets. Non-positive numerators or denominators clamp to zero instead
// of producing NaN.
func MoneyRatio(contract *domain.Contract, bet *domain.Bet, shareValue float64) float64 {
	p := OutcomeProbability(contract.TotalShares, bet.Outcome)

	var poolTotal float64
	for _, balance := range contract.Pool {
		poolTotal += balance
	}
	actual := poolTotal - shareValue

	var expected float64
	for outcome, totalBet := range contract.TotalBets {
		expected += OutcomeProbability(contract.TotalShares, outcome) * totalBet
	}
	expected -= p * bet.Amount

	if actual <= 0 || expected <= 0 {
		return 0
	}
	return actual / expected
}

// ShareValue is the realizable sale value of a bet: the raw share value
// scaled by the solvency ratio (capped at 1) and bounded by the outcome's
// own pool balance.
func ShareValue(contract *domain.Contract, bet *domain.Bet) float64 {
	shareValue := RawShareValue(contract.TotalShares, bet.Shares, bet.Outcome)
	f := MoneyRatio(contract, bet, shareValue)
	if f > 1 {
		f = 1
	}
	adj := f * shareValue
	if myPool := contract.Pool[bet.Outcome]; adj > myPool {
		adj = myPool
	}
	return adj
}

// SaleAmount is the money returned when selling a bet back, after the
// profit fee.
func SaleAmount(contract *domain.Contract, bet *domain.Bet, sched fees.Schedule) float64 {
	winnings := ShareValue(contract, bet)
	return sched.DeductDPMFees(bet.Amount, winnings)
}

// Payout returns what a bet would pay under the given resolution outcome.
func Payout(contract *domain.Contract, bet *domain.Bet, outcome string, sched fees.Schedule) float64 {
	switch outcome {
	case domain.ResolutionCancel:
		return CancelPayout(contract, bet)
	case domain.ResolutionMkt:
		return MktPayout(contract, bet, sched)
	default:
		return StandardPayout(contract, bet, outcome, sched)
	}
}

// ResolvedPayout returns the bet's payout at the contract's recorded
// resolution.
func ResolvedPayout(contract *domain.Contract, bet *domain.Bet, sched fees.Schedule) (float64, error) {
	if contract.Resolution == "" {
		return 0, fmt.Errorf("dpm: resolved payout: %w", domain.ErrContractNotResolved)
	}
	return Payout(contract, bet, contract.Resolution, sched), nil
}

// CancelPayout refunds the bet's stake pro rata against the pool.
func CancelPayout(contract *domain.Contract, bet *domain.Bet) float64 {
	var betTotal, poolTotal float64
	for _, amount := range contract.TotalBets {
		betTotal += amount
	}
	for _, balance := range contract.Pool {
		poolTotal += balance
	}
	if betTotal == 0 {
		return 0
	}
	return bet.Amount / betTotal * poolTotal
}

// StandardPayout pays the bet's share of the pool for a single winning
// outcome, with the profit fee deducted. Numeric bets look up their shares
// in the winning bucket; phantom shares are excluded from the denominator.
func StandardPayout(contract *domain.Contract, bet *domain.Bet, outcome string, sched fees.Schedule) float64 {
	isNumeric := contract.OutcomeType == domain.OutcomeTypeNumeric
	if !isNumeric && bet.Outcome != outcome {
		return 0
	}

	shares := bet.Shares
	if isNumeric {
		shares = bet.AllOutcomeShares[outcome]
	}
	if shares == 0 {
		return 0
	}
	if contract.TotalShares[outcome] == 0 {
		return 0
	}

	var poolTotal float64
	for _, balance := range contract.Pool {
		poolTotal += balance
	}

	total := contract.TotalShares[outcome] - contract.PhantomShares[outcome]
	winnings := shares / total * poolTotal

	// Profit can be negative when phantom shares dilute the pool.
	return bet.Amount + (1-sched.DPM.Total())*math.Max(0, winnings-bet.Amount)
}

// PayoutAfterCorrectBet is the bet's standard payout assuming its own
// shares and stake have been applied to the contract and its outcome wins.
func PayoutAfterCorrectBet(contract *domain.Contract, bet *domain.Bet, sched fees.Schedule) float64 {
	outcome := bet.Outcome

	after := *contract
	after.TotalShares = cloneShares(contract.TotalShares)
	after.Pool = cloneShares(contract.Pool)
	after.TotalBets = cloneShares(contract.TotalBets)
	after.TotalShares[outcome] += bet.Shares
	after.Pool[outcome] += bet.Amount
	after.TotalBets[outcome] += bet.Amount

	return StandardPayout(&after, bet, outcome, sched)
}

// MktPayout pays a bet's probability-weighted claim when a contract
// resolves to the market value.
func MktPayout(contract *domain.Contract, bet *domain.Bet, sched fees.Schedule) float64 {
	if contract.OutcomeType == domain.OutcomeTypeBinary {
		return binaryMktPayout(contract, bet, sched)
	}

	var probs map[string]float64
	if len(contract.Resolutions) > 0 {
		var probTotal float64
		for _, pct := range contract.Resolutions {
			probTotal += pct
		}
		probs = make(map[string]float64, len(contract.TotalShares))
		for outcome := range contract.TotalShares {
			probs[outcome] = contract.Resolutions[outcome] / probTotal
		}
	} else {
		probs = OutcomeProbabilities(contract.TotalShares)
	}

	var weightedShareTotal float64
	for outcome, shares := range contract.TotalShares {
		weightedShareTotal += probs[outcome] * shares
	}

	var poolFrac float64
	if contract.OutcomeType == domain.OutcomeTypeNumeric {
		for outcome, shares := range bet.AllOutcomeShares {
			poolFrac += probs[outcome] * shares / weightedShareTotal
		}
	} else {
		poolFrac = probs[bet.Outcome] * bet.Shares / weightedShareTotal
	}

	var poolTotal float64
	for _, balance := range contract.Pool {
		poolTotal += balance
	}

	return sched.DeductDPMFees(bet.Amount, poolFrac*poolTotal)
}

func binaryMktPayout(contract *domain.Contract, bet *domain.Bet, sched fees.Schedule) float64 {
	p := Probability(contract.TotalShares)
	if contract.ResolutionProbability != nil {
		p = *contract.ResolutionProbability
	}

	poolTotal := contract.Pool[domain.OutcomeYes] + contract.Pool[domain.OutcomeNo]

	weightedShareTotal := p*(contract.TotalShares[domain.OutcomeYes]-contract.PhantomShares[domain.OutcomeYes]) +
		(1-p)*(contract.TotalShares[domain.OutcomeNo]-contract.PhantomShares[domain.OutcomeNo])

	betP := 1 - p
	if bet.Outcome == domain.OutcomeYes {
		betP = p
	}
	winnings := betP * bet.Shares / weightedShareTotal * poolTotal

	return sched.DeductDPMFees(bet.Amount, winnings)
}

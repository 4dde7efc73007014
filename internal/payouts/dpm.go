package payouts

import (
	"math"

	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/dpm"
	"github.com/foldmarket/foldmarket/internal/fees"
)

func dpmPayouts(outcome string, contract *domain.Contract, bets []domain.Bet, resolutions map[string]float64, resolutionProbability *float64, sched fees.Schedule) (Info, error) {
	openBets := OpenBets(bets)

	switch outcome {
	case domain.OutcomeYes, domain.OutcomeNo:
		return dpmStandardPayouts(outcome, contract, openBets, sched), nil
	case domain.ResolutionMkt:
		if contract.OutcomeType == domain.OutcomeTypeFreeResponse ||
			contract.OutcomeType == domain.OutcomeTypeMultipleChoice {
			return dpmMultiOutcomePayouts(resolutions, contract, openBets, sched), nil
		}
		return dpmMktPayouts(contract, openBets, resolutionProbability, sched), nil
	case domain.ResolutionCancel, "":
		return dpmCancelPayouts(contract, openBets), nil
	default:
		if contract.OutcomeType == domain.OutcomeTypeNumeric {
			return dpmNumericPayouts(outcome, contract, openBets, sched), nil
		}
		// Outcome is a free-response answer id.
		return dpmStandardPayouts(outcome, contract, openBets, sched), nil
	}
}

// dpmCancelPayouts refunds stakes pro rata against the whole pool.
func dpmCancelPayouts(contract *domain.Contract, openBets []domain.Bet) Info {
	var betTotal, poolTotal float64
	for _, amount := range contract.TotalBets {
		betTotal += amount
	}
	for _, balance := range contract.Pool {
		poolTotal += balance
	}

	var payouts []domain.Payout
	for _, bet := range openBets {
		if betTotal == 0 {
			continue
		}
		payouts = append(payouts, domain.Payout{
			UserID: bet.UserID,
			Payout: bet.Amount / betTotal * poolTotal,
		})
	}

	return Info{
		Payouts:       payouts,
		CreatorPayout: 0,
		CollectedFees: contract.CollectedFees,
	}
}

type profitPayout struct {
	userID string
	payout float64
	profit float64
}

// assemble aggregates profit fees across payouts and produces the final
// Info: the creator's payout is the creator fee on this resolution's
// profits.
func assemble(contract *domain.Contract, payouts []profitPayout, sched fees.Schedule) Info {
	var profits float64
	for _, p := range payouts {
		profits += math.Max(0, p.profit)
	}
	resolutionFees := sched.DPMProfitFees(profits)

	out := make([]domain.Payout, len(payouts))
	for i, p := range payouts {
		out[i] = domain.Payout{UserID: p.userID, Payout: p.payout}
	}

	return Info{
		Payouts:       out,
		CreatorPayout: resolutionFees.CreatorFee,
		CollectedFees: resolutionFees.Add(contract.CollectedFees),
	}
}

// dpmStandardPayouts pays winning bets pro rata by shares against the whole
// pool, fee on profit.
func dpmStandardPayouts(outcome string, contract *domain.Contract, openBets []domain.Bet, sched fees.Schedule) Info {
	var totalShares float64
	winners := make([]domain.Bet, 0, len(openBets))
	for _, bet := range openBets {
		if bet.Outcome == outcome {
			winners = append(winners, bet)
			totalShares += bet.Shares
		}
	}

	var poolTotal float64
	for _, balance := range contract.Pool {
		poolTotal += balance
	}

	var payouts []profitPayout
	for _, bet := range winners {
		if totalShares == 0 {
			continue
		}
		winnings := bet.Shares / totalShares * poolTotal
		payouts = append(payouts, profitPayout{
			userID: bet.UserID,
			payout: sched.DeductDPMFees(bet.Amount, winnings),
			profit: winnings - bet.Amount,
		})
	}
	return assemble(contract, payouts, sched)
}

// dpmNumericPayouts pays bets holding shares in the winning bucket, using
// each bet's per-bucket share allocation.
func dpmNumericPayouts(outcome string, contract *domain.Contract, openBets []domain.Bet, sched fees.Schedule) Info {
	var totalShares float64
	winners := make([]domain.Bet, 0, len(openBets))
	for _, bet := range openBets {
		if bet.AllOutcomeShares[outcome] > 0 {
			winners = append(winners, bet)
			totalShares += bet.AllOutcomeShares[outcome]
		}
	}

	var poolTotal float64
	for _, balance := range contract.Pool {
		poolTotal += balance
	}

	var payouts []profitPayout
	for _, bet := range winners {
		if totalShares == 0 {
			continue
		}
		winnings := bet.AllOutcomeShares[outcome] / totalShares * poolTotal
		payouts = append(payouts, profitPayout{
			userID: bet.UserID,
			payout: sched.DeductDPMFees(bet.Amount, winnings),
			profit: winnings - bet.Amount,
		})
	}
	return assemble(contract, payouts, sched)
}

// dpmMktPayouts weights each bet's shares by the probability of its outcome
// at resolution (explicit probability, or the live quadratic probability).
func dpmMktPayouts(contract *domain.Contract, openBets []domain.Bet, resolutionProbability *float64, sched fees.Schedule) Info {
	p := dpm.Probability(contract.TotalShares)
	if resolutionProbability != nil {
		p = *resolutionProbability
	}

	var weightedShareTotal float64
	for _, bet := range openBets {
		if bet.Outcome == domain.OutcomeYes {
			weightedShareTotal += p * bet.Shares
		} else {
			weightedShareTotal += (1 - p) * bet.Shares
		}
	}

	var poolTotal float64
	for _, balance := range contract.Pool {
		poolTotal += balance
	}

	var payouts []profitPayout
	for _, bet := range openBets {
		if weightedShareTotal == 0 {
			continue
		}
		betP := 1 - p
		if bet.Outcome == domain.OutcomeYes {
			betP = p
		}
		winnings := betP * bet.Shares / weightedShareTotal * poolTotal
		payouts = append(payouts, profitPayout{
			userID: bet.UserID,
			payout: sched.DeductDPMFees(bet.Amount, winnings),
			profit: winnings - bet.Amount,
		})
	}
	return assemble(contract, payouts, sched)
}

// dpmMultiOutcomePayouts splits the pool across the weighted resolution
// outcomes, then pro rata by shares within each winning outcome.
func dpmMultiOutcomePayouts(resolutions map[string]float64, contract *domain.Contract, openBets []domain.Bet, sched fees.Schedule) Info {
	var probTotal float64
	for _, pct := range resolutions {
		probTotal += pct
	}

	var poolTotal float64
	for _, balance := range contract.Pool {
		poolTotal += balance
	}

	sharesByOutcome := make(map[string]float64)
	winners := make([]domain.Bet, 0, len(openBets))
	for _, bet := range openBets {
		if resolutions[bet.Outcome] > 0 {
			winners = append(winners, bet)
			sharesByOutcome[bet.Outcome] += bet.Shares
		}
	}

	var payouts []profitPayout
	for _, bet := range winners {
		if probTotal == 0 || sharesByOutcome[bet.Outcome] == 0 {
			continue
		}
		probPortion := resolutions[bet.Outcome] / probTotal
		winnings := bet.Shares / sharesByOutcome[bet.Outcome] * probPortion * poolTotal
		payouts = append(payouts, profitPayout{
			userID: bet.UserID,
			payout: sched.DeductDPMFees(bet.Amount, winnings),
			profit: winnings - bet.Amount,
		})
	}
	return assemble(contract, payouts, sched)
}

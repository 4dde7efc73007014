// Package calc is the mechanism-agnostic read side: callers hand it a
// contract and it dispatches to the right pricing engine.
package calc

import (
	"fmt"

	"github.com/foldmarket/foldmarket/internal/cpmm"
	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/dpm"
	"github.com/foldmarket/foldmarket/internal/fees"
)

// Probability returns the contract's current YES probability.
func Probability(contract *domain.Contract) (float64, error) {
	switch contract.Mechanism {
	case domain.MechanismCPMM:
		return cpmm.Probability(contract.Pool, contract.P), nil
	case domain.MechanismDPM:
		return dpm.Probability(contract.TotalShares), nil
	default:
		return 0, fmt.Errorf("calc: probability: mechanism %q: %w", contract.Mechanism, domain.ErrUnsupportedMechanism)
	}
}

// OutcomeProbability returns the current probability of a single outcome.
func OutcomeProbability(contract *domain.Contract, outcome string) (float64, error) {
	switch contract.Mechanism {
	case domain.MechanismCPMM:
		p := cpmm.Probability(contract.Pool, contract.P)
		switch outcome {
		case domain.OutcomeYes:
			return p, nil
		case domain.OutcomeNo:
			return 1 - p, nil
		default:
			return 0, fmt.Errorf("calc: outcome %q: %w", outcome, domain.ErrInvalidOutcome)
		}
	case domain.MechanismDPM:
		return dpm.OutcomeProbability(contract.TotalShares, outcome), nil
	default:
		return 0, fmt.Errorf("calc: outcome probability: mechanism %q: %w", contract.Mechanism, domain.ErrUnsupportedMechanism)
	}
}

// Shares returns how many shares a bet of the given size buys right now,
// ignoring resting limit orders.
func Shares(contract *domain.Contract, amount float64, outcome string) (float64, error) {
	switch contract.Mechanism {
	case domain.MechanismCPMM:
		return cpmm.Shares(contract.Pool, contract.P, amount, outcome), nil
	case domain.MechanismDPM:
		return dpm.Shares(contract.TotalShares, amount, outcome), nil
	default:
		return 0, fmt.Errorf("calc: shares: mechanism %q: %w", contract.Mechanism, domain.ErrUnsupportedMechanism)
	}
}

// Payout returns what a bet would pay under the given resolution outcome.
func Payout(contract *domain.Contract, bet *domain.Bet, outcome string, sched fees.Schedule) (float64, error) {
	switch contract.Mechanism {
	case domain.MechanismCPMM:
		return cpmmPayout(contract, bet, outcome), nil
	case domain.MechanismDPM:
		return dpm.Payout(contract, bet, outcome, sched), nil
	default:
		return 0, fmt.Errorf("calc: payout: mechanism %q: %w", contract.Mechanism, domain.ErrUnsupportedMechanism)
	}
}

// ResolvedPayout returns the bet's payout at the contract's recorded
// resolution.
func ResolvedPayout(contract *domain.Contract, bet *domain.Bet, sched fees.Schedule) (float64, error) {
	if !contract.IsResolved || contract.Resolution == "" {
		return 0, fmt.Errorf("calc: resolved payout: %w", domain.ErrContractNotResolved)
	}
	return Payout(contract, bet, contract.Resolution, sched)
}

func cpmmPayout(contract *domain.Contract, bet *domain.Bet, outcome string) float64 {
	switch outcome {
	case domain.ResolutionCancel:
		return bet.Amount
	case domain.ResolutionMkt:
		p := cpmm.Probability(contract.Pool, contract.P)
		if contract.ResolutionProbability != nil {
			p = *contract.ResolutionProbability
		}
		betP := 1 - p
		if bet.Outcome == domain.OutcomeYes {
			betP = p
		}
		return betP * bet.Shares
	default:
		if bet.Outcome == outcome {
			return bet.Shares
		}
		return 0
	}
}

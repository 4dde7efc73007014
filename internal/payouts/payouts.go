// Package payouts computes settlement payouts for a resolved contract.
//
// Dispatch is two-level: mechanism first (fixed-payout CPMM binary versus
// DPM everything-else), then resolution outcome (YES/NO, MKT, CANCEL, or an
// explicit answer id / weighted multi-outcome set).
package payouts

import (
	"fmt"
	"sort"

	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/fees"
)

// Info is the full settlement output for one contract.
type Info struct {
	Payouts          []domain.Payout
	CreatorPayout    float64
	LiquidityPayouts []domain.Payout
	CollectedFees    domain.Fees
}

// Compute returns the payouts for resolving the contract to outcome.
// resolutions holds weighted multi-outcome percentages for free-response
// MKT resolutions; resolutionProbability the probability for binary MKT.
func Compute(outcome string, contract *domain.Contract, bets []domain.Bet, liquidities []domain.LiquidityProvision, resolutions map[string]float64, resolutionProbability *float64, sched fees.Schedule) (Info, error) {
	switch contract.Mechanism {
	case domain.MechanismCPMM:
		if contract.OutcomeType != domain.OutcomeTypeBinary {
			return Info{}, fmt.Errorf("payouts: cpmm %s: %w", contract.OutcomeType, domain.ErrUnsupportedMechanism)
		}
		return fixedPayouts(outcome, contract, bets, liquidities, resolutionProbability)
	case domain.MechanismDPM:
		return dpmPayouts(outcome, contract, bets, resolutions, resolutionProbability, sched)
	default:
		return Info{}, fmt.Errorf("payouts: mechanism %s: %w", contract.Mechanism, domain.ErrUnsupportedMechanism)
	}
}

// LoanPayouts nets each user's outstanding loans against their payouts:
// one negative line item per user with open loans.
func LoanPayouts(openBets []domain.Bet) []domain.Payout {
	loans := make(map[string]float64)
	for _, bet := range openBets {
		if bet.LoanAmount != 0 {
			loans[bet.UserID] -= bet.LoanAmount
		}
	}

	userIDs := make([]string, 0, len(loans))
	for userID := range loans {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	payouts := make([]domain.Payout, 0, len(loans))
	for _, userID := range userIDs {
		payouts = append(payouts, domain.Payout{UserID: userID, Payout: loans[userID]})
	}
	return payouts
}

// GroupByUser sums payout line items per user.
func GroupByUser(payouts []domain.Payout) map[string]float64 {
	totals := make(map[string]float64)
	for _, p := range payouts {
		totals[p.UserID] += p.Payout
	}
	return totals
}

// OpenBets filters out sold and sale bets, which were settled at sale time.
func OpenBets(bets []domain.Bet) []domain.Bet {
	open := make([]domain.Bet, 0, len(bets))
	for _, bet := range bets {
		if bet.IsOpen() {
			open = append(open, bet)
		}
	}
	return open
}

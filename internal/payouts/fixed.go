package payouts

import (
	"sort"

	"github.com/foldmarket/foldmarket/internal/cpmm"
	"github.com/foldmarket/foldmarket/internal/domain"
)

// smallest pool worth distributing to liquidity providers
const minFinalPool = 1e-3

func fixedPayouts(outcome string, contract *domain.Contract, bets []domain.Bet, liquidities []domain.LiquidityProvision, resolutionProbability *float64) (Info, error) {
	switch outcome {
	case domain.OutcomeYes, domain.OutcomeNo:
		return standardFixedPayouts(outcome, contract, bets, liquidities), nil
	case domain.ResolutionMkt:
		return mktFixedPayouts(contract, bets, liquidities, resolutionProbability), nil
	default:
		return fixedCancelPayouts(contract, bets, liquidities), nil
	}
}

// fixedCancelPayouts refunds every trader their stake and every liquidity
// provider their contribution. Ante and liquidity-provision bets are
// excluded; the creator gets nothing.
func fixedCancelPayouts(contract *domain.Contract, bets []domain.Bet, liquidities []domain.LiquidityProvision) Info {
	var payouts []domain.Payout
	for _, bet := range bets {
		if bet.IsAnte || bet.IsLiquidityProvision {
			continue
		}
		payouts = append(payouts, domain.Payout{UserID: bet.UserID, Payout: bet.Amount})
	}

	liquidityPayouts := make([]domain.Payout, 0, len(liquidities))
	for _, lp := range liquidities {
		liquidityPayouts = append(liquidityPayouts, domain.Payout{UserID: lp.UserID, Payout: lp.Amount})
	}

	return Info{
		Payouts:          payouts,
		CreatorPayout:    0,
		LiquidityPayouts: liquidityPayouts,
		CollectedFees:    contract.CollectedFees,
	}
}

// standardFixedPayouts pays each winning share one currency unit and gives
// liquidity providers their weighted claim on the winning side's pool.
func standardFixedPayouts(outcome string, contract *domain.Contract, bets []domain.Bet, liquidities []domain.LiquidityProvision) Info {
	var payouts []domain.Payout
	for _, bet := range bets {
		if bet.Outcome != outcome {
			continue
		}
		payouts = append(payouts, domain.Payout{UserID: bet.UserID, Payout: bet.Shares})
	}

	return Info{
		Payouts:          payouts,
		CreatorPayout:    contract.CollectedFees.CreatorFee,
		LiquidityPayouts: liquidityPoolPayouts(contract, contract.Pool[outcome], liquidities),
		CollectedFees:    contract.CollectedFees,
	}
}

// mktFixedPayouts pays each bet betP * shares, where betP is the
// probability of the bet's own outcome at the resolution probability
// (falling back to the final market probability).
func mktFixedPayouts(contract *domain.Contract, bets []domain.Bet, liquidities []domain.LiquidityProvision, resolutionProbability *float64) Info {
	p := cpmm.Probability(contract.Pool, contract.P)
	if resolutionProbability != nil {
		p = *resolutionProbability
	}

	var payouts []domain.Payout
	for _, bet := range bets {
		betP := 1 - p
		if bet.Outcome == domain.OutcomeYes {
			betP = p
		}
		payouts = append(payouts, domain.Payout{UserID: bet.UserID, Payout: betP * bet.Shares})
	}

	blendedPool := p*contract.Pool[domain.OutcomeYes] + (1-p)*contract.Pool[domain.OutcomeNo]

	return Info{
		Payouts:          payouts,
		CreatorPayout:    contract.CollectedFees.CreatorFee,
		LiquidityPayouts: liquidityPoolPayouts(contract, blendedPool, liquidities),
		CollectedFees:    contract.CollectedFees,
	}
}

// liquidityPoolPayouts distributes the final pool (plus any unspent
// subsidy) among providers by their invariant-delta weights. Antes are
// included here: the creator's seed claim is paid out like any other
// provision, which keeps settlement conservative.
func liquidityPoolPayouts(contract *domain.Contract, finalPool float64, liquidities []domain.LiquidityProvision) []domain.Payout {
	finalPool += contract.SubsidyPool
	if finalPool < minFinalPool {
		return nil
	}

	weights := cpmm.PoolWeights(contract.P, liquidities, false)

	userIDs := make([]string, 0, len(weights))
	for userID := range weights {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	payouts := make([]domain.Payout, 0, len(weights))
	for _, userID := range userIDs {
		payouts = append(payouts, domain.Payout{UserID: userID, Payout: weights[userID] * finalPool})
	}
	return payouts
}

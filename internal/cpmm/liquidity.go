package cpmm

import (
	"math"

	"github.com/foldmarket/foldmarket/internal/domain"
)

// MinRetainedLiquidity is the minimum YES and NO pool balance that must
// remain after a liquidity withdrawal.
const MinRetainedLiquidity = 100

// Liquidity returns the invariant value k = YES^p * NO^(1-p) of a pool.
func Liquidity(poolShares map[string]float64, p float64) float64 {
	return math.Pow(poolShares[domain.OutcomeYes], p) * math.Pow(poolShares[domain.OutcomeNo], 1-p)
}

// AddLiquidity grows both pool sides by amount and solves for the new p
// that keeps the pre-injection probability unchanged. It returns the new
// pool, the new p, and the increase in the invariant value measured at the
// new p.
func AddLiquidity(poolShares map[string]float64, p, amount float64) (newPool map[string]float64, newP, liquidity float64) {
	prob := Probability(poolShares, p)
	y := poolShares[domain.OutcomeYes]
	n := poolShares[domain.OutcomeNo]

	// Solve p(n+b) / ((1-p)(y+b) + p(n+b)) = prob for p.
	numerator := prob * (amount + y)
	denominator := amount - n*(prob-1) + prob*y
	newP = numerator / denominator

	newPool = pool(y+amount, n+amount)
	liquidity = Liquidity(newPool, newP) - Liquidity(poolShares, newP)
	return newPool, newP, liquidity
}

// RemoveLiquidity shrinks both pool sides by amount. ok is false when a
// side would fall below MinRetainedLiquidity; callers must reject the
// withdrawal in that case.
func RemoveLiquidity(poolShares map[string]float64, p, amount float64) (newPool map[string]float64, newP, liquidity float64, ok bool) {
	newPool, newP, liquidity = AddLiquidity(poolShares, p, -amount)
	ok = newPool[domain.OutcomeYes] >= MinRetainedLiquidity &&
		newPool[domain.OutcomeNo] >= MinRetainedLiquidity
	return newPool, newP, liquidity, ok
}

// MaximumRemovableLiquidity is the largest withdrawal RemoveLiquidity will
// accept for the given pool.
func MaximumRemovableLiquidity(poolShares map[string]float64) float64 {
	y := poolShares[domain.OutcomeYes]
	n := poolShares[domain.OutcomeNo]
	m := y
	if n < m {
		m = n
	}
	if m-MinRetainedLiquidity < 0 {
		return 0
	}
	return m - MinRetainedLiquidity
}

// PoolWeights computes each provider's share of the final pool: the
// invariant-value delta of each provision priced at the current p,
// normalized by the total delta, aggregated by user. Ante provisions can be
// excluded; exclusion happens after normalization so the remaining weights
// intentionally sum to less than one.
func PoolWeights(p float64, liquidities []domain.LiquidityProvision, excludeAntes bool) map[string]float64 {
	shares := make([]float64, len(liquidities))
	var total float64
	for i, l := range liquidities {
		before := Liquidity(l.Pool, p)
		grown := pool(l.Pool[domain.OutcomeYes]+l.Amount, l.Pool[domain.OutcomeNo]+l.Amount)
		shares[i] = Liquidity(grown, p) - before
		total += shares[i]
	}

	weights := make(map[string]float64)
	if total == 0 {
		return weights
	}
	for i, l := range liquidities {
		if excludeAntes && l.IsAnte {
			continue
		}
		weights[l.UserID] += shares[i] / total
	}
	return weights
}

// UserLiquidityShares returns the user's weighted claim on each pool side.
func UserLiquidityShares(userID string, poolShares map[string]float64, p float64, liquidities []domain.LiquidityProvision, excludeAntes bool) map[string]float64 {
	weights := PoolWeights(p, liquidities, excludeAntes)
	w := weights[userID]

	claim := make(map[string]float64, len(poolShares))
	for outcome, balance := range poolShares {
		claim[outcome] = w * balance
	}
	return claim
}

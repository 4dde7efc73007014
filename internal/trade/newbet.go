// Package trade builds candidate bets: it runs the pricing engines against
// a contract snapshot and assembles the bet record plus the state deltas
// the host must commit. Nothing here touches storage.
package trade

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/foldmarket/foldmarket/internal/cpmm"
	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/dpm"
	"github.com/foldmarket/foldmarket/internal/fees"
	"github.com/foldmarket/foldmarket/internal/numeric"
)

func validAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return fmt.Errorf("trade: amount %v: %w", amount, domain.ErrInvalidAmount)
	}
	return nil
}

// BinaryCPMMResult carries a candidate CPMM bet and the deltas to commit.
type BinaryCPMMResult struct {
	Bet               domain.Bet
	NewPool           map[string]float64
	NewP              float64
	NewTotalLiquidity float64
	Makers            []cpmm.Maker
	OrdersToCancel    []domain.Bet
}

// NewBinaryCPMMBet prices a (possibly limit) bet on a binary CPMM
// contract. The result is rejected whole when the new p is non-finite or a
// pool side would fall below the minimum quantity floor.
func NewBinaryCPMMBet(contract *domain.Contract, userID, outcome string, amount float64, limitProb *float64, unfilledBets []domain.Bet, balanceByUserID map[string]float64, sched fees.Schedule, now time.Time) (BinaryCPMMResult, error) {
	if err := validAmount(amount); err != nil {
		return BinaryCPMMResult{}, err
	}
	if outcome != domain.OutcomeYes && outcome != domain.OutcomeNo {
		return BinaryCPMMResult{}, fmt.Errorf("trade: outcome %q: %w", outcome, domain.ErrInvalidOutcome)
	}
	if limitProb != nil && (*limitProb <= 0 || *limitProb >= 1) {
		return BinaryCPMMResult{}, fmt.Errorf("trade: limit prob %v: %w", *limitProb, domain.ErrInvalidProbability)
	}

	state := cpmm.State{Pool: contract.Pool, P: contract.P}
	res, err := cpmm.ComputeFills(outcome, amount, state, limitProb, unfilledBets, balanceByUserID, sched, now)
	if err != nil {
		return BinaryCPMMResult{}, err
	}

	if err := checkPoolBounds(res.State); err != nil {
		return BinaryCPMMResult{}, err
	}

	probBefore := cpmm.Probability(contract.Pool, contract.P)
	probAfter := cpmm.Probability(res.State.Pool, res.State.P)

	var takerAmount, takerShares float64
	fills := make([]domain.Fill, len(res.Takers))
	for i, taker := range res.Takers {
		takerAmount += taker.Amount
		takerShares += taker.Shares
		fills[i] = domain.Fill{
			MatchedBetID: taker.MatchedBetID,
			Amount:       taker.Amount,
			Shares:       taker.Shares,
			Timestamp:    taker.Timestamp,
		}
	}

	bet := domain.Bet{
		ID:          uuid.NewString(),
		UserID:      userID,
		ContractID:  contract.ID,
		Outcome:     outcome,
		OrderAmount: amount,
		Amount:      takerAmount,
		Shares:      takerShares,
		LimitProb:   limitProb,
		IsFilled:    numeric.ApproxEqual(amount, takerAmount),
		Fills:       fills,
		ProbBefore:  probBefore,
		ProbAfter:   probAfter,
		Fees:        res.TotalFees,
		CreatedAt:   now,
	}

	return BinaryCPMMResult{
		Bet:               bet,
		NewPool:           res.State.Pool,
		NewP:              res.State.P,
		NewTotalLiquidity: contract.TotalLiquidity + res.TotalFees.LiquidityFee,
		Makers:            res.Makers,
		OrdersToCancel:    res.OrdersToCancel,
	}, nil
}

func checkPoolBounds(state cpmm.State) error {
	if math.IsNaN(state.P) || math.IsInf(state.P, 0) || state.P == 0 {
		return fmt.Errorf("trade: %w", domain.ErrTradeTooLarge)
	}
	for _, balance := range state.Pool {
		if balance < cpmm.MinPoolShares {
			return fmt.Errorf("trade: %w", domain.ErrTradeTooLarge)
		}
	}
	return nil
}

// DPMResult carries a candidate DPM bet and the deltas to commit.
type DPMResult struct {
	Bet            domain.Bet
	NewPool        map[string]float64
	NewTotalShares map[string]float64
	NewTotalBets   map[string]float64
}

// NewBinaryDPMBet prices a bet on a binary DPM contract.
func NewBinaryDPMBet(contract *domain.Contract, userID, outcome string, amount float64, now time.Time) (DPMResult, error) {
	if err := validAmount(amount); err != nil {
		return DPMResult{}, err
	}
	if outcome != domain.OutcomeYes && outcome != domain.OutcomeNo {
		return DPMResult{}, fmt.Errorf("trade: outcome %q: %w", outcome, domain.ErrInvalidOutcome)
	}

	shares := dpm.Shares(contract.TotalShares, amount, outcome)

	newPool := clone(contract.Pool)
	newPool[outcome] += amount
	newTotalShares := clone(contract.TotalShares)
	newTotalShares[outcome] += shares
	newTotalBets := clone(contract.TotalBets)
	newTotalBets[outcome] += amount

	bet := domain.Bet{
		ID:         uuid.NewString(),
		UserID:     userID,
		ContractID: contract.ID,
		Outcome:    outcome,
		Amount:     amount,
		Shares:     shares,
		ProbBefore: dpm.Probability(contract.TotalShares),
		ProbAfter:  dpm.Probability(newTotalShares),
		Fees:       domain.NoFees,
		CreatedAt:  now,
	}

	return DPMResult{
		Bet:            bet,
		NewPool:        newPool,
		NewTotalShares: newTotalShares,
		NewTotalBets:   newTotalBets,
	}, nil
}

// NewMultiDPMBet prices a bet on one answer of a free-response or
// multiple-choice DPM contract.
func NewMultiDPMBet(contract *domain.Contract, userID, outcome string, amount float64, now time.Time) (DPMResult, error) {
	if err := validAmount(amount); err != nil {
		return DPMResult{}, err
	}

	shares := dpm.Shares(contract.TotalShares, amount, outcome)

	newPool := clone(contract.Pool)
	newPool[outcome] += amount
	newTotalShares := clone(contract.TotalShares)
	newTotalShares[outcome] += shares
	newTotalBets := clone(contract.TotalBets)
	newTotalBets[outcome] += amount

	bet := domain.Bet{
		ID:         uuid.NewString(),
		UserID:     userID,
		ContractID: contract.ID,
		Outcome:    outcome,
		Amount:     amount,
		Shares:     shares,
		ProbBefore: dpm.OutcomeProbability(contract.TotalShares, outcome),
		ProbAfter:  dpm.OutcomeProbability(newTotalShares, outcome),
		Fees:       domain.NoFees,
		CreatedAt:  now,
	}

	return DPMResult{
		Bet:            bet,
		NewPool:        newPool,
		NewTotalShares: newTotalShares,
		NewTotalBets:   newTotalBets,
	}, nil
}

// NewNumericDPMBet spreads a stake across buckets around the chosen bucket
// and issues shares for every touched bucket.
func NewNumericDPMBet(contract *domain.Contract, userID, bucket string, amount float64, now time.Time) (DPMResult, error) {
	if err := validAmount(amount); err != nil {
		return DPMResult{}, err
	}

	bucketBets := dpm.BucketBets(contract.BucketCount, bucket, amount, dpm.FixedVariance)
	if len(bucketBets) == 0 {
		return DPMResult{}, fmt.Errorf("trade: bucket %q: %w", bucket, domain.ErrInvalidOutcome)
	}

	allBetAmounts := make(map[string]float64, len(bucketBets))
	newPool := clone(contract.Pool)
	newTotalBets := clone(contract.TotalBets)
	for _, b := range bucketBets {
		allBetAmounts[b.Bucket] = b.Amount
		newPool[b.Bucket] += b.Amount
		newTotalBets[b.Bucket] += b.Amount
	}

	shares, newTotalShares := dpm.NumericShares(contract.TotalShares, bucketBets)

	allOutcomeShares := make(map[string]float64, len(bucketBets))
	var bucketShares float64
	for i, b := range bucketBets {
		allOutcomeShares[b.Bucket] = shares[i]
		if b.Bucket == bucket {
			bucketShares = shares[i]
		}
	}

	bet := domain.Bet{
		ID:               uuid.NewString(),
		UserID:           userID,
		ContractID:       contract.ID,
		Outcome:          bucket,
		Amount:           amount,
		Shares:           bucketShares,
		AllBetAmounts:    allBetAmounts,
		AllOutcomeShares: allOutcomeShares,
		ProbBefore:       dpm.OutcomeProbability(contract.TotalShares, bucket),
		ProbAfter:        dpm.OutcomeProbability(newTotalShares, bucket),
		Fees:             domain.NoFees,
		CreatedAt:        now,
	}

	return DPMResult{
		Bet:            bet,
		NewPool:        newPool,
		NewTotalShares: newTotalShares,
		NewTotalBets:   newTotalBets,
	}, nil
}

func clone(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

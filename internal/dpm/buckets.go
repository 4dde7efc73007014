package dpm

import (
	"math"
	"sort"
	"strconv"

	"github.com/foldmarket/foldmarket/internal/numeric"
)

// FixedVariance is the density spread used when splitting a numeric stake
// across neighboring buckets.
const FixedVariance = 0.005

// DefaultBucketCount is the bucket resolution for numeric contracts.
const DefaultBucketCount = 200

// BucketBet is a stake allocated to a single numeric bucket.
type BucketBet struct {
	Bucket string
	Amount float64
}

// BucketBets splits a stake across buckets with normal-density weights
// centered on the chosen bucket. Densities below 1/bucketCount are dropped
// and the remainder rescaled so the full amount is still staked.
func BucketBets(bucketCount int, bucket string, betAmount, variance float64) []BucketBet {
	bucketNumber, err := strconv.Atoi(bucket)
	if err != nil {
		return nil
	}
	mean := float64(bucketNumber) / float64(bucketCount)

	densities := make([]float64, bucketCount)
	var densitySum float64
	for i := range densities {
		densities[i] = numeric.NormPDF(float64(i)/float64(bucketCount), mean, variance)
		densitySum += densities[i]
	}

	raw := make([]float64, bucketCount)
	var rawSum float64
	for i, d := range densities {
		x := d / densitySum * betAmount
		if x >= 1/float64(bucketCount) {
			raw[i] = x
			rawSum += x
		}
	}

	var bets []BucketBet
	for i, x := range raw {
		if scaled := x / rawSum * betAmount; scaled > 0 {
			bets = append(bets, BucketBet{Bucket: strconv.Itoa(i), Amount: scaled})
		}
	}
	return bets
}

// MappedBucket maps a numeric value in [min, max] onto its bucket label.
func MappedBucket(value, min, max float64, bucketCount int) string {
	index := int(math.Floor((value - min) / (max - min) * float64(bucketCount)))
	if index > bucketCount-1 {
		index = bucketCount - 1
	}
	if index < 0 {
		index = 0
	}
	return strconv.Itoa(index)
}

// BucketValue maps a bucket label back to its numeric value, rounded to
// four decimal places.
func BucketValue(bucket string, min, max float64, bucketCount int) float64 {
	index, err := strconv.Atoi(bucket)
	if err != nil {
		return min
	}
	value := min + float64(index)/float64(bucketCount)*(max-min)
	return math.Round(value*1e4) / 1e4
}

// NumericShares issues shares for a multi-bucket allocation. Buckets are
// processed in ascending order of individual bet size, updating the running
// share totals between buckets, so larger bets see the shares already
// issued to smaller ones. The returned shares align with the input order.
func NumericShares(totalShares map[string]float64, bets []BucketBet) (shares []float64, newTotalShares map[string]float64) {
	shares = make([]float64, len(bets))
	running := cloneShares(totalShares)

	order := make([]int, len(bets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return bets[order[a]].Amount < bets[order[b]].Amount
	})

	for _, i := range order {
		bucket, bet := bets[i].Bucket, bets[i].Amount
		shares[i] = Shares(running, bet, bucket)
		running[bucket] += shares[i]
	}
	return shares, running
}

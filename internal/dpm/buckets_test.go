package dpm

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketBets(t *testing.T) {
	bets := BucketBets(DefaultBucketCount, "100", 500, FixedVariance)
	require.NotEmpty(t, bets)

	// The full amount is staked even after thresholding.
	var total float64
	peak := bets[0]
	for _, b := range bets {
		total += b.Amount
		if b.Amount > peak.Amount {
			peak = b
		}
	}
	assert.InDelta(t, 500, total, 1e-9)

	// The chosen bucket carries the highest stake.
	assert.Equal(t, "100", peak.Bucket)

	// Invalid bucket label yields nothing.
	assert.Nil(t, BucketBets(DefaultBucketCount, "not-a-bucket", 500, FixedVariance))
}

func TestMappedBucketAndValue(t *testing.T) {
	min, max := 0.0, 100.0
	n := DefaultBucketCount

	assert.Equal(t, "0", MappedBucket(0, min, max, n))
	assert.Equal(t, strconv.Itoa(n-1), MappedBucket(100, min, max, n))
	assert.Equal(t, strconv.Itoa(n/2), MappedBucket(50, min, max, n))

	// Out-of-range values clamp to the edge buckets.
	assert.Equal(t, "0", MappedBucket(-10, min, max, n))
	assert.Equal(t, strconv.Itoa(n-1), MappedBucket(150, min, max, n))

	// Bucket -> value round trip lands on the bucket's lower edge.
	assert.InDelta(t, 50, BucketValue(strconv.Itoa(n/2), min, max, n), 1e-9)
}

func TestNumericSharesAscendingOrder(t *testing.T) {
	totalShares := map[string]float64{}
	bets := []BucketBet{
		{Bucket: "3", Amount: 30},
		{Bucket: "1", Amount: 10},
		{Bucket: "2", Amount: 20},
	}

	shares, newTotal := NumericShares(totalShares, bets)
	require.Len(t, shares, 3)

	// Smallest bet processed first against an empty market: its shares
	// equal its stake. Later bets see earlier issuance in the share totals
	// and receive more shares for their stake.
	assert.InDelta(t, 10, shares[1], 1e-9)
	assert.InDelta(t, 28.284271, shares[2], 1e-5)
	assert.InDelta(t, 51.961524, shares[0], 1e-5)

	// Running totals carry all issued shares.
	assert.InDelta(t, shares[0], newTotal["3"], 1e-9)
	assert.InDelta(t, shares[1], newTotal["1"], 1e-9)
	assert.InDelta(t, shares[2], newTotal["2"], 1e-9)

	// Input totals are untouched.
	assert.Empty(t, totalShares)
}

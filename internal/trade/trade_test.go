package trade

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldmarket/foldmarket/internal/cpmm"
	"github.com/foldmarket/foldmarket/internal/domain"
	"github.com/foldmarket/foldmarket/internal/fees"
)

func cpmmContract() *domain.Contract {
	return &domain.Contract{
		ID:          "c1",
		Mechanism:   domain.MechanismCPMM,
		OutcomeType: domain.OutcomeTypeBinary,
		Pool:        map[string]float64{domain.OutcomeYes: 100, domain.OutcomeNo: 100},
		P:           0.5,
	}
}

func dpmContract() *domain.Contract {
	return &domain.Contract{
		ID:          "c2",
		Mechanism:   domain.MechanismDPM,
		OutcomeType: domain.OutcomeTypeBinary,
		Pool:        map[string]float64{},
		TotalShares: map[string]float64{},
		TotalBets:   map[string]float64{},
	}
}

func TestNewBinaryCPMMBet(t *testing.T) {
	contract := cpmmContract()
	now := time.Now()

	res, err := NewBinaryCPMMBet(contract, "alice", domain.OutcomeYes, 10, nil, nil, nil, fees.None(), now)
	require.NoError(t, err)

	assert.True(t, res.Bet.IsFilled)
	assert.InDelta(t, 10, res.Bet.Amount, 1e-9)
	assert.Greater(t, res.Bet.Shares, 10.0)
	assert.Less(t, res.Bet.Shares, 20.0)
	assert.Greater(t, res.Bet.ProbAfter, res.Bet.ProbBefore)
	assert.Equal(t, res.Bet.ProbAfter, cpmm.Probability(res.NewPool, res.NewP))

	// Pool the bet saw is untouched.
	assert.Equal(t, 100.0, contract.Pool[domain.OutcomeYes])
}

func TestNewBinaryCPMMBetLiquidityFeeAccrues(t *testing.T) {
	contract := cpmmContract()
	contract.TotalLiquidity = 200

	res, err := NewBinaryCPMMBet(contract, "alice", domain.OutcomeYes, 10, nil, nil, nil, fees.Default(), time.Now())
	require.NoError(t, err)

	assert.Greater(t, res.Bet.Fees.LiquidityFee, 0.0)
	assert.InDelta(t, 200+res.Bet.Fees.LiquidityFee, res.NewTotalLiquidity, 1e-12)
}

func TestNewBinaryCPMMBetRejectsBadInput(t *testing.T) {
	contract := cpmmContract()
	now := time.Now()

	_, err := NewBinaryCPMMBet(contract, "alice", domain.OutcomeYes, 0, nil, nil, nil, fees.None(), now)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = NewBinaryCPMMBet(contract, "alice", domain.OutcomeYes, math.NaN(), nil, nil, nil, fees.None(), now)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = NewBinaryCPMMBet(contract, "alice", "MAYBE", 10, nil, nil, nil, fees.None(), now)
	assert.ErrorIs(t, err, domain.ErrInvalidOutcome)

	lp := 1.5
	_, err = NewBinaryCPMMBet(contract, "alice", domain.OutcomeYes, 10, &lp, nil, nil, fees.None(), now)
	assert.ErrorIs(t, err, domain.ErrInvalidProbability)
}

func TestNewBinaryCPMMBetRejectsPoolDrain(t *testing.T) {
	contract := cpmmContract()
	contract.Pool = map[string]float64{domain.OutcomeYes: 1, domain.OutcomeNo: 1}

	// A bet this large against a tiny pool pushes a side under the floor.
	_, err := NewBinaryCPMMBet(contract, "alice", domain.OutcomeYes, 1e6, nil, nil, nil, fees.None(), time.Now())
	assert.ErrorIs(t, err, domain.ErrTradeTooLarge)
}

func TestNewBinaryCPMMBetPartialLimitFill(t *testing.T) {
	contract := cpmmContract()
	lp := 0.52

	res, err := NewBinaryCPMMBet(contract, "alice", domain.OutcomeYes, 100, &lp, nil, nil, fees.None(), time.Now())
	require.NoError(t, err)

	assert.False(t, res.Bet.IsFilled)
	assert.Less(t, res.Bet.Amount, 100.0)
	assert.Equal(t, 100.0, res.Bet.OrderAmount)
	assert.InDelta(t, 0.52, res.Bet.ProbAfter, 1e-6)
}

func TestNewBinaryDPMBet(t *testing.T) {
	contract := dpmContract()
	now := time.Now()

	res, err := NewBinaryDPMBet(contract, "alice", domain.OutcomeYes, 10, now)
	require.NoError(t, err)

	// First bet into an empty market takes shares equal to the stake.
	assert.InDelta(t, 10, res.Bet.Shares, 1e-9)
	assert.InDelta(t, 1, res.Bet.ProbAfter, 1e-12)
	assert.Equal(t, 10.0, res.NewPool[domain.OutcomeYes])
	assert.Equal(t, 10.0, res.NewTotalBets[domain.OutcomeYes])
}

func TestNewNumericDPMBet(t *testing.T) {
	contract := dpmContract()
	contract.OutcomeType = domain.OutcomeTypeNumeric
	contract.BucketCount = 200

	res, err := NewNumericDPMBet(contract, "alice", "100", 500, time.Now())
	require.NoError(t, err)

	var staked float64
	for _, amount := range res.Bet.AllBetAmounts {
		staked += amount
	}
	assert.InDelta(t, 500, staked, 1e-6)
	assert.Greater(t, res.Bet.Shares, 0.0)
	assert.Equal(t, res.Bet.Shares, res.Bet.AllOutcomeShares["100"])

	_, err = NewNumericDPMBet(contract, "alice", "not-a-bucket", 500, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidOutcome)
}

func TestNewCPMMSellBetRoundTrip(t *testing.T) {
	contract := cpmmContract()
	now := time.Now()

	buy, err := NewBinaryCPMMBet(contract, "alice", domain.OutcomeYes, 10, nil, nil, nil, fees.None(), now)
	require.NoError(t, err)

	after := *contract
	after.Pool = buy.NewPool
	after.P = buy.NewP

	sale, err := NewCPMMSellBet(&after, "alice", domain.OutcomeYes, buy.Bet.Shares, 0, nil, nil, fees.None(), now)
	require.NoError(t, err)

	// Fee-free round trip returns the stake and restores the price.
	assert.InDelta(t, 10, sale.SaleValue, 1e-6)
	assert.InDelta(t, 0.5, cpmm.Probability(sale.NewPool, sale.NewP), 1e-6)
	assert.Less(t, sale.Bet.Amount, 0.0)
	assert.Less(t, sale.Bet.Shares, 0.0)
	assert.True(t, sale.Bet.IsFilled)
}

func TestNewCPMMSellBetLoanRepayment(t *testing.T) {
	contract := cpmmContract()
	now := time.Now()

	buy, err := NewBinaryCPMMBet(contract, "alice", domain.OutcomeYes, 10, nil, nil, nil, fees.None(), now)
	require.NoError(t, err)

	after := *contract
	after.Pool = buy.NewPool
	after.P = buy.NewP

	sale, err := NewCPMMSellBet(&after, "alice", domain.OutcomeYes, buy.Bet.Shares, 4, nil, nil, fees.None(), now)
	require.NoError(t, err)
	assert.InDelta(t, -4, sale.Bet.LoanAmount, 1e-12)
}

func TestNewCPMMSellBetRejectsNonPositiveShares(t *testing.T) {
	contract := cpmmContract()
	_, err := NewCPMMSellBet(contract, "alice", domain.OutcomeYes, -5, 0, nil, nil, fees.None(), time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidShares)
}

func TestNewDPMSellBet(t *testing.T) {
	contract := dpmContract()
	now := time.Now()

	buy, err := NewBinaryDPMBet(contract, "alice", domain.OutcomeYes, 10, now)
	require.NoError(t, err)
	contract.Pool = buy.NewPool
	contract.TotalShares = buy.NewTotalShares
	contract.TotalBets = buy.NewTotalBets

	counter, err := NewBinaryDPMBet(contract, "bob", domain.OutcomeNo, 10, now)
	require.NoError(t, err)
	contract.Pool = counter.NewPool
	contract.TotalShares = counter.NewTotalShares
	contract.TotalBets = counter.NewTotalBets

	sale, err := NewDPMSellBet(contract, &buy.Bet, fees.None(), now)
	require.NoError(t, err)

	// Share value: sqrt(10^2 + sqrt(300)^2) has dropped to sqrt(300).
	want := 20 - math.Sqrt(300)
	assert.InDelta(t, want, sale.SaleValue, 1e-9)
	assert.InDelta(t, -want, sale.Bet.Amount, 1e-9)
	assert.InDelta(t, -buy.Bet.Shares, sale.Bet.Shares, 1e-9)
	require.NotNil(t, sale.Bet.Sale)
	assert.Equal(t, buy.Bet.ID, sale.Bet.Sale.BetID)
	assert.InDelta(t, 10-want, sale.NewPool[domain.OutcomeYes], 1e-9)
	assert.InDelta(t, 0, sale.NewTotalShares[domain.OutcomeYes], 1e-9)
}

func TestNewDPMSellBetRejectsResale(t *testing.T) {
	contract := dpmContract()
	bet := domain.Bet{ID: "b1", Shares: 10, Amount: 10, Outcome: domain.OutcomeYes, IsSold: true}
	_, err := NewDPMSellBet(contract, &bet, fees.None(), time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidShares)
}

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
)

// CPMMSaleResult carries a candidate sale bet and the deltas to commit.
type CPMMSaleResult struct {
	Bet            domain.Bet
	SaleValue      float64
	NewPool        map[string]float64
	NewP           float64
	Makers         []cpmm.Maker
	OrdersToCancel []domain.Bet
}

// NewCPMMSellBet sells shares back into a binary CPMM contract. The sale
// is recorded as a single negative-amount, negative-share bet; loanPaid is
// the portion of the user's outstanding loan repaid out of the proceeds.
func NewCPMMSellBet(contract *domain.Contract, userID, outcome string, shares, loanPaid float64, unfilledBets []domain.Bet, balanceByUserID map[string]float64, sched fees.Schedule, now time.Time) (CPMMSaleResult, error) {
	if math.IsNaN(shares) || math.IsInf(shares, 0) || shares <= 0 {
		return CPMMSaleResult{}, fmt.Errorf("trade: sell %v shares: %w", shares, domain.ErrInvalidShares)
	}
	if outcome != domain.OutcomeYes && outcome != domain.OutcomeNo {
		return CPMMSaleResult{}, fmt.Errorf("trade: outcome %q: %w", outcome, domain.ErrInvalidOutcome)
	}

	state := cpmm.State{Pool: contract.Pool, P: contract.P}
	res, err := cpmm.Sale(state, shares, outcome, unfilledBets, balanceByUserID, sched, now)
	if err != nil {
		return CPMMSaleResult{}, err
	}

	if err := checkPoolBounds(res.State); err != nil {
		return CPMMSaleResult{}, err
	}

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
		OrderAmount: takerAmount,
		Amount:      takerAmount,
		Shares:      takerShares,
		LoanAmount:  -loanPaid,
		IsFilled:    true,
		Fills:       fills,
		ProbBefore:  cpmm.Probability(contract.Pool, contract.P),
		ProbAfter:   cpmm.Probability(res.State.Pool, res.State.P),
		Fees:        res.Fees,
		CreatedAt:   now,
	}

	return CPMMSaleResult{
		Bet:            bet,
		SaleValue:      res.SaleValue,
		NewPool:        res.State.Pool,
		NewP:           res.State.P,
		Makers:         res.Makers,
		OrdersToCancel: res.OrdersToCancel,
	}, nil
}

// DPMSaleResult carries the sale bet that reverses a prior DPM bet.
type DPMSaleResult struct {
	Bet            domain.Bet
	SaleValue      float64
	NewPool        map[string]float64
	NewTotalShares map[string]float64
	NewTotalBets   map[string]float64
	Fees           domain.Fees
}

// NewDPMSellBet sells a prior DPM bet back in full. Partial sales are not
// supported under this mechanism; the whole position unwinds at its
// solvency-clamped share value, with profit fees taken per sched.
func NewDPMSellBet(contract *domain.Contract, bet *domain.Bet, sched fees.Schedule, now time.Time) (DPMSaleResult, error) {
	if bet.IsSold || bet.Sale != nil {
		return DPMSaleResult{}, fmt.Errorf("trade: bet %s already sold: %w", bet.ID, domain.ErrInvalidShares)
	}
	if bet.Shares <= 0 {
		return DPMSaleResult{}, fmt.Errorf("trade: sell %v shares: %w", bet.Shares, domain.ErrInvalidShares)
	}

	adjShareValue := dpm.ShareValue(contract, bet)
	saleAmount := sched.DeductDPMFees(bet.Amount, adjShareValue)

	profit := math.Max(0, adjShareValue-bet.Amount)
	saleFees := sched.DPMProfitFees(profit)

	newPool := clone(contract.Pool)
	newPool[bet.Outcome] -= adjShareValue
	newTotalShares := clone(contract.TotalShares)
	newTotalShares[bet.Outcome] -= bet.Shares
	newTotalBets := clone(contract.TotalBets)
	newTotalBets[bet.Outcome] -= bet.Amount

	probBefore := dpm.OutcomeProbability(contract.TotalShares, bet.Outcome)
	probAfter := dpm.OutcomeProbability(newTotalShares, bet.Outcome)

	saleBet := domain.Bet{
		ID:         uuid.NewString(),
		UserID:     bet.UserID,
		ContractID: contract.ID,
		Outcome:    bet.Outcome,
		Amount:     -adjShareValue,
		Shares:     -bet.Shares,
		ProbBefore: probBefore,
		ProbAfter:  probAfter,
		Fees:       saleFees,
		Sale: &domain.SaleInfo{
			Amount: saleAmount,
			BetID:  bet.ID,
		},
		CreatedAt: now,
	}

	return DPMSaleResult{
		Bet:            saleBet,
		SaleValue:      saleAmount,
		NewPool:        newPool,
		NewTotalShares: newTotalShares,
		NewTotalBets:   newTotalBets,
		Fees:           saleFees,
	}, nil
}

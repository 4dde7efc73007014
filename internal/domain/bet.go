package domain

import "time"

// Fill records one partial match of a limit or market order: either against
// the pool (MatchedBetID empty) or against a resting limit order.
type Fill struct {
	MatchedBetID string
	Amount       float64
	Shares       float64
	Timestamp    time.Time
}

// SaleInfo links a sale bet back to the bet whose shares were sold.
type SaleInfo struct {
	Amount float64
	BetID  string
}

// Bet is a trade record. Amount and Shares are signed: negative for a sell
// or redemption. Once created a bet is immutable except for the limit-order
// fill fields and the sold/cancelled flags.
type Bet struct {
	ID         string
	UserID     string
	ContractID string

	Outcome string
	Amount  float64
	Shares  float64

	ProbBefore float64
	ProbAfter  float64

	Fees       Fees
	LoanAmount float64

	// Limit-order fields. OrderAmount is the full requested amount;
	// Amount tracks the portion filled so far.
	LimitProb   *float64
	OrderAmount float64
	IsFilled    bool
	IsCancelled bool
	Fills       []Fill

	// Numeric bucket bets stake across many buckets at once.
	AllOutcomeShares map[string]float64
	AllBetAmounts    map[string]float64

	IsSold               bool
	Sale                 *SaleInfo
	IsAnte               bool
	IsLiquidityProvision bool
	IsRedemption         bool

	CreatedAt time.Time
}

// IsOpen reports whether the bet still holds a live claim at settlement:
// sold or sale bets were already settled at sale time.
func (b *Bet) IsOpen() bool {
	return !b.IsSold && b.Sale == nil
}

// Payout is one settlement line item.
type Payout struct {
	UserID string
	Payout float64
}

package domain

import "time"

// LiquidityProvision records one liquidity deposit into a CPMM pool.
// Pool is the pool snapshot from just before the deposit was applied;
// Liquidity is the resulting change in the invariant value.
type LiquidityProvision struct {
	ID         string
	UserID     string
	ContractID string

	Amount    float64
	Liquidity float64
	P         float64
	Pool      map[string]float64

	IsAnte    bool
	CreatedAt time.Time
}

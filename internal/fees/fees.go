// Package fees defines the fee schedule applied by the pricing engines.
//
// Two models coexist. CPMM contracts charge per trade: each fee component is
// rate * betP * amount, where betP is the post-trade-before-fee probability
// of the opposite side of the trade. DPM contracts charge at settlement,
// on the profit portion of a payout only.
//
// Rates are injected configuration, not constants, so deployments and tests
// can swap rate sets without recompiling.
package fees

import "github.com/foldmarket/foldmarket/internal/domain"

// CPMMRates are per-trade fee rates for CPMM contracts.
type CPMMRates struct {
	Liquidity float64
	Platform  float64
	Creator   float64
}

// DPMRates are profit-at-settlement fee rates for DPM contracts.
type DPMRates struct {
	Platform float64
	Creator  float64
}

// Total is the combined rate deducted from DPM profit.
func (r DPMRates) Total() float64 {
	return r.Platform + r.Creator
}

// Schedule is a full fee configuration for both mechanisms.
type Schedule struct {
	CPMM CPMMRates
	DPM  DPMRates
}

// Default returns the standard production fee schedule.
func Default() Schedule {
	return Schedule{
		CPMM: CPMMRates{Liquidity: 0.02, Platform: 0.03, Creator: 0.05},
		DPM:  DPMRates{Platform: 0.01, Creator: 0.04},
	}
}

// None returns a zero-fee schedule, mostly useful in tests.
func None() Schedule {
	return Schedule{}
}

// CPMMTrade computes the fee split for a CPMM trade of the given amount at
// the post-trade-before-fee probability betP of the opposite outcome, and
// the remaining bet after fees.
func (s Schedule) CPMMTrade(betP, amount float64) (domain.Fees, float64) {
	f := domain.Fees{
		LiquidityFee: s.CPMM.Liquidity * betP * amount,
		PlatformFee:  s.CPMM.Platform * betP * amount,
		CreatorFee:   s.CPMM.Creator * betP * amount,
	}
	return f, amount - f.Total()
}

// DeductDPMFees applies the profit fee to a DPM payout: the stake is
// returned whole, winnings above the stake are reduced by the combined DPM
// rate. Winnings at or below the stake pass through untouched.
func (s Schedule) DeductDPMFees(betAmount, winnings float64) float64 {
	if winnings > betAmount {
		return betAmount + (1-s.DPM.Total())*(winnings-betAmount)
	}
	return winnings
}

// DPMProfitFees splits the fee taken on a DPM profit amount.
func (s Schedule) DPMProfitFees(profit float64) domain.Fees {
	if profit < 0 {
		profit = 0
	}
	return domain.Fees{
		PlatformFee: s.DPM.Platform * profit,
		CreatorFee:  s.DPM.Creator * profit,
	}
}

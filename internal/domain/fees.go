package domain

// Fees is a creator/platform/liquidity fee split, in currency units.
type Fees struct {
	CreatorFee   float64
	PlatformFee  float64
	LiquidityFee float64
}

// NoFees is the zero fee split.
var NoFees = Fees{}

// Add returns the component-wise sum of two fee splits.
func (f Fees) Add(other Fees) Fees {
	return Fees{
		CreatorFee:   f.CreatorFee + other.CreatorFee,
		PlatformFee:  f.PlatformFee + other.PlatformFee,
		LiquidityFee: f.LiquidityFee + other.LiquidityFee,
	}
}

// Total returns the sum of all three fee components.
func (f Fees) Total() float64 {
	return f.CreatorFee + f.PlatformFee + f.LiquidityFee
}

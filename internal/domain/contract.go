package domain

import "time"

// Mechanism identifies the market-maker algorithm backing a contract.
type Mechanism string

const (
	MechanismCPMM Mechanism = "cpmm-1"
	MechanismDPM  Mechanism = "dpm-2"
)

// OutcomeType is the shape of the outcome space a contract is traded over.
type OutcomeType string

const (
	OutcomeTypeBinary         OutcomeType = "BINARY"
	OutcomeTypePseudoNumeric  OutcomeType = "PSEUDO_NUMERIC"
	OutcomeTypeFreeResponse   OutcomeType = "FREE_RESPONSE"
	OutcomeTypeMultipleChoice OutcomeType = "MULTIPLE_CHOICE"
	OutcomeTypeNumeric        OutcomeType = "NUMERIC"
)

// Well-known outcome / resolution labels. Free-response and numeric contracts
// additionally use answer ids and bucket indices as outcome labels.
const (
	OutcomeYes       = "YES"
	OutcomeNo        = "NO"
	ResolutionMkt    = "MKT"
	ResolutionCancel = "CANCEL"
)

// Contract is a snapshot of a market's mutable pricing state. The engine
// treats it as an immutable value: pricing operations take a snapshot in and
// return the replacement field values, which the host commits atomically.
type Contract struct {
	ID        string
	CreatorID string
	Question  string

	Mechanism   Mechanism
	OutcomeType OutcomeType

	// Pool maps outcome label to pool balance. Binary contracts use exactly
	// {YES, NO}.
	Pool map[string]float64

	// P is the CPMM weight exponent in the invariant YES^p * NO^(1-p) = k.
	// Unused for DPM contracts.
	P float64

	// TotalShares and TotalBets are DPM-only cumulative issued shares and
	// staked amounts per outcome. PhantomShares seed initial odds without a
	// matching stake.
	TotalShares   map[string]float64
	TotalBets     map[string]float64
	PhantomShares map[string]float64

	// TotalLiquidity is the cumulative CPMM liquidity ever provided;
	// SubsidyPool is house liquidity not yet folded into the pool.
	TotalLiquidity float64
	SubsidyPool    float64

	CollectedFees Fees

	// Numeric contracts: bucket count and value range.
	BucketCount int
	Min         float64
	Max         float64

	CreatedAt time.Time
	CloseTime *time.Time

	IsResolved            bool
	Resolution            string
	ResolutionProbability *float64
	// Resolutions holds weighted multi-outcome resolution percentages,
	// keyed by answer id.
	Resolutions     map[string]float64
	ResolutionValue *float64
	ResolutionTime  *time.Time
}

// IsBinaryCPMM reports whether the contract uses fixed-payout CPMM pricing.
func (c *Contract) IsBinaryCPMM() bool {
	return c.Mechanism == MechanismCPMM && c.OutcomeType == OutcomeTypeBinary
}

// IsClosed reports whether the contract's close time has passed at t.
func (c *Contract) IsClosed(t time.Time) bool {
	return c.CloseTime != nil && t.After(*c.CloseTime)
}

// Package lightning holds the domain rules of the capacity-request workflow:
// the fee-rate table, node address parsing, the channel valuation read model
// and payment request presentation.
package lightning

import (
	"math"
	"strconv"
	"time"
)

// ExpectedBytes is the assumed size of the channel funding transaction used
// to price the on-chain fee.
const ExpectedBytes = 500

// CapacityChoices are the inbound capacities offered to users, in satoshis.
var CapacityChoices = []int64{500_000, 1_000_000, 2_000_000, 5_000_000, 16_777_215}

// FeeRate is one enumerated capacity fee schedule. Rates are kept in basis
// points so fee arithmetic stays in exact integers.
type FeeRate struct {
	BasisPoints int64
	Label       string
	Grace       time.Duration
}

// CapacityFeeRates is the closed set of offered fee schedules.
var CapacityFeeRates = []FeeRate{
	{BasisPoints: 0, Label: "Three days free", Grace: 3 * 24 * time.Hour},
	{BasisPoints: 50, Label: "Three days 0.5%", Grace: 3 * 24 * time.Hour},
	{BasisPoints: 100, Label: "Two weeks 1%", Grace: 14 * 24 * time.Hour},
	{BasisPoints: 300, Label: "One month 3%", Grace: 31 * 24 * time.Hour},
}

// Rate returns the schedule as a fraction, e.g. 0.01 for 100 basis points.
func (r FeeRate) Rate() float64 {
	return float64(r.BasisPoints) / 10_000
}

// CapacityFee prices the requested capacity under this schedule.
func (r FeeRate) CapacityFee(capacity int64) int64 {
	return capacity * r.BasisPoints / 10_000
}

// ParseFeeRate matches a submitted decimal rate ("0.01") against the
// enumerated schedules. Inputs that do not parse or do not match any
// schedule exactly report ok == false.
func ParseFeeRate(input string) (FeeRate, bool) {
	v, err := strconv.ParseFloat(input, 64)
	if err != nil || v < 0 {
		return FeeRate{}, false
	}
	bps := math.Round(v * 10_000)
	if math.Abs(v*10_000-bps) > 1e-6 {
		return FeeRate{}, false
	}
	for _, r := range CapacityFeeRates {
		if r.BasisPoints == int64(bps) {
			return r, true
		}
	}
	return FeeRate{}, false
}

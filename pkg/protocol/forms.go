package protocol

import (
	"fmt"
	"strconv"
)

// FormField is one named value of a submitted browser form.
type FormField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FormData is the association-list encoding browsers submit form values in.
// It is parsed exactly once at the boundary into a typed form record; session
// handlers never scan it by name.
type FormData []FormField

// Value returns the first value submitted under name.
func (f FormData) Value(name string) (string, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

// CapacityForm is the typed confirm_capacity submission.
type CapacityForm struct {
	Capacity int64

	// FeeRateInput is the raw capacity_fee_rate value; HasFeeRate is false
	// when the field was not submitted at all (the reciprocation path).
	FeeRateInput string
	HasFeeRate   bool
}

// ParseCapacityForm validates and extracts the confirm_capacity fields.
func ParseCapacityForm(f FormData) (*CapacityForm, error) {
	raw, ok := f.Value("capacity")
	if !ok {
		return nil, fmt.Errorf("form field capacity missing")
	}
	capacity, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("form field capacity: %w", err)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("form field capacity must be positive, got %d", capacity)
	}

	form := &CapacityForm{Capacity: capacity}
	form.FeeRateInput, form.HasFeeRate = f.Value("capacity_fee_rate")
	return form, nil
}

// ChainFeeForm is the typed chain_fee submission.
type ChainFeeForm struct {
	TransactionFeeRate int64 // sat per byte
}

// ParseChainFeeForm validates and extracts the chain_fee fields.
func ParseChainFeeForm(f FormData) (*ChainFeeForm, error) {
	raw, ok := f.Value("transaction_fee_rate")
	if !ok {
		return nil, fmt.Errorf("form field transaction_fee_rate missing")
	}
	rate, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("form field transaction_fee_rate: %w", err)
	}
	return &ChainFeeForm{TransactionFeeRate: rate}, nil
}

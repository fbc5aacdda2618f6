// Package splitter computes per-participant shares of an expense under a
// splitting policy. It is pure calculation: persistence belongs to the caller,
// performed in the same store transaction that creates the expense.
package splitter

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPolicy       = errors.New("unknown split policy")
	ErrShareSumMismatch    = errors.New("shares do not reconstruct the total amount")
	ErrEmptyParticipantSet = errors.New("at least one participant required")
)

// Policy selects how an expense total is divided.
type Policy string

const (
	// PolicyEqual divides the total evenly, distributing the minor-unit
	// remainder one unit at a time in ascending user-id order.
	PolicyEqual Policy = "equal"

	// PolicyPercentage divides by caller-supplied percentages, which must sum
	// to exactly 100 (within percentEpsilon). The final share absorbs
	// rounding so the sum stays exact.
	PolicyPercentage Policy = "percentage"

	// PolicyCustom uses caller-supplied amounts, which must sum to the total
	// exactly. No epsilon: the caller is expected to have done the arithmetic.
	PolicyCustom Policy = "custom"
)

// percentEpsilon is the tolerance for percentage sums around 100.
var percentEpsilon = decimal.New(1, -6)

// Participant is one split input. Percentage is read only for
// PolicyPercentage, Amount only for PolicyCustom.
type Participant struct {
	UserID     string
	Percentage decimal.Decimal
	Amount     decimal.Decimal
}

// Share is one participant's computed portion of the total.
type Share struct {
	UserID string
	Amount decimal.Decimal
}

// Split divides total across participants under the given policy. places is
// the currency's minor-unit precision (e.g. 2 for USD). For every valid input
// the returned share amounts sum to total exactly.
func Split(total decimal.Decimal, places int32, policy Policy, participants []Participant) ([]Share, error) {
	if len(participants) == 0 {
		return nil, ErrEmptyParticipantSet
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("total amount must be positive, got %s", total)
	}
	if !total.Equal(total.Round(places)) {
		return nil, fmt.Errorf("total amount %s exceeds %d decimal places", total, places)
	}
	if err := checkDuplicates(participants); err != nil {
		return nil, err
	}

	switch policy {
	case PolicyEqual:
		return splitEqual(total, places, participants), nil
	case PolicyPercentage:
		return splitPercentage(total, places, participants)
	case PolicyCustom:
		return splitCustom(total, participants)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
	}
}

func checkDuplicates(participants []Participant) error {
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if p.UserID == "" {
			return fmt.Errorf("participant user id must not be empty")
		}
		if seen[p.UserID] {
			return fmt.Errorf("duplicate participant %q", p.UserID)
		}
		seen[p.UserID] = true
	}
	return nil
}

// splitEqual works in integer minor units: each participant gets the floor
// share, and the remainder is handed out one unit at a time in ascending
// user-id order so the result is stable and sums exactly.
func splitEqual(total decimal.Decimal, places int32, participants []Participant) []Share {
	ordered := make([]Participant, len(participants))
	copy(ordered, participants)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].UserID < ordered[j].UserID })

	units := total.Shift(places).IntPart()
	n := int64(len(ordered))
	base := units / n
	remainder := units % n

	shares := make([]Share, len(ordered))
	for i, p := range ordered {
		u := base
		if int64(i) < remainder {
			u++
		}
		shares[i] = Share{UserID: p.UserID, Amount: decimal.New(u, -places)}
	}
	return shares
}

// splitPercentage computes each share as total * pct/100 rounded to the minor
// unit; the final share is total minus the others, absorbing the rounding.
func splitPercentage(total decimal.Decimal, places int32, participants []Participant) ([]Share, error) {
	sum := decimal.Zero
	for _, p := range participants {
		if p.Percentage.IsNegative() {
			return nil, fmt.Errorf("%w: participant %q has negative percentage %s",
				ErrShareSumMismatch, p.UserID, p.Percentage)
		}
		sum = sum.Add(p.Percentage)
	}
	if sum.Sub(decimal.NewFromInt(100)).Abs().GreaterThan(percentEpsilon) {
		return nil, fmt.Errorf("%w: percentages sum to %s, want 100", ErrShareSumMismatch, sum)
	}

	shares := make([]Share, len(participants))
	allocated := decimal.Zero
	for i, p := range participants {
		if i == len(participants)-1 {
			last := total.Sub(allocated)
			if last.IsNegative() {
				return nil, fmt.Errorf("%w: rounding left final share negative", ErrShareSumMismatch)
			}
			shares[i] = Share{UserID: p.UserID, Amount: last}
			break
		}
		amount := total.Mul(p.Percentage).Div(decimal.NewFromInt(100)).Round(places)
		shares[i] = Share{UserID: p.UserID, Amount: amount}
		allocated = allocated.Add(amount)
	}
	return shares, nil
}

func splitCustom(total decimal.Decimal, participants []Participant) ([]Share, error) {
	sum := decimal.Zero
	shares := make([]Share, len(participants))
	for i, p := range participants {
		if p.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: participant %q has negative amount %s",
				ErrShareSumMismatch, p.UserID, p.Amount)
		}
		shares[i] = Share{UserID: p.UserID, Amount: p.Amount}
		sum = sum.Add(p.Amount)
	}
	if !sum.Equal(total) {
		return nil, fmt.Errorf("%w: amounts sum to %s, total is %s", ErrShareSumMismatch, sum, total)
	}
	return shares, nil
}

// Package calculator implements the pure arithmetic of the expense ledger:
// computing per-member obligations under a split policy and aggregating
// balances across a group's expenses. It has no storage dependencies so the
// invariants can be tested in isolation.
package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/models"
)

// Tolerance is the maximum divergence allowed between an expense total and
// the sum of its splits.
var Tolerance = decimal.NewFromFloat(0.01)

var hundred = decimal.NewFromInt(100)

// MemberShare carries one member's split parameters from an expense request.
// Amount is required for exact_amounts, Percentage for percentage splits.
type MemberShare struct {
	UserID     string
	Amount     *decimal.Decimal
	Percentage *decimal.Decimal
}

// ComputedSplit is one member's computed obligation.
type ComputedSplit struct {
	UserID     string
	AmountOwed decimal.Decimal
}

// ComputeSplits computes each member's amount owed under the given split
// method. Results carry exactly two decimal places.
//
// Equal splits are computed in integer cents; the indivisible remainder is
// assigned to the payer's own split (or the first member when the payer is
// not among the participants), so the computed splits always sum to the
// total exactly.
func ComputeSplits(method models.SplitMethod, total decimal.Decimal, payerID string, members []MemberShare) ([]ComputedSplit, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("at least one member required")
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("total amount must be positive")
	}
	if total.Exponent() < -2 {
		return nil, fmt.Errorf("total amount must have at most 2 decimal places")
	}
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if m.UserID == "" {
			return nil, fmt.Errorf("member user_id required")
		}
		if seen[m.UserID] {
			return nil, fmt.Errorf("duplicate member %s in split set", m.UserID)
		}
		seen[m.UserID] = true
	}

	switch method {
	case models.SplitEqual:
		return computeEqual(total, payerID, members), nil
	case models.SplitPercentage:
		return computePercentage(total, members)
	case models.SplitExact:
		return computeExact(members)
	case models.SplitShares:
		return nil, fmt.Errorf("split method %q is not supported", method)
	default:
		return nil, fmt.Errorf("unknown split method %q", method)
	}
}

func computeEqual(total decimal.Decimal, payerID string, members []MemberShare) []ComputedSplit {
	n := int64(len(members))
	cents := total.Mul(hundred).IntPart()
	base := cents / n
	remainder := cents - base*n

	// Remainder cents go to the payer so non-payers never overpay.
	remainderIdx := 0
	for i, m := range members {
		if m.UserID == payerID {
			remainderIdx = i
			break
		}
	}

	splits := make([]ComputedSplit, len(members))
	for i, m := range members {
		c := base
		if i == remainderIdx {
			c += remainder
		}
		splits[i] = ComputedSplit{
			UserID:     m.UserID,
			AmountOwed: decimal.New(c, -2),
		}
	}
	return splits
}

func computePercentage(total decimal.Decimal, members []MemberShare) ([]ComputedSplit, error) {
	splits := make([]ComputedSplit, len(members))
	for i, m := range members {
		if m.Percentage == nil {
			return nil, fmt.Errorf("percentage required for member %s", m.UserID)
		}
		if m.Percentage.IsNegative() {
			return nil, fmt.Errorf("percentage for member %s must not be negative", m.UserID)
		}
		splits[i] = ComputedSplit{
			UserID:     m.UserID,
			AmountOwed: total.Mul(*m.Percentage).Div(hundred).Round(2),
		}
	}
	return splits, nil
}

func computeExact(members []MemberShare) ([]ComputedSplit, error) {
	splits := make([]ComputedSplit, len(members))
	for i, m := range members {
		if m.Amount == nil {
			return nil, fmt.Errorf("amount required for member %s", m.UserID)
		}
		if m.Amount.IsNegative() {
			return nil, fmt.Errorf("amount for member %s must not be negative", m.UserID)
		}
		splits[i] = ComputedSplit{
			UserID:     m.UserID,
			AmountOwed: m.Amount.Round(2),
		}
	}
	return splits, nil
}

// CheckReconciles verifies that the splits sum to the expense total within
// Tolerance. This is the ledger's core consistency guarantee; callers must
// abort expense creation when it fails.
func CheckReconciles(total decimal.Decimal, splits []ComputedSplit) error {
	sum := decimal.Zero
	for _, s := range splits {
		sum = sum.Add(s.AmountOwed)
	}
	if sum.Sub(total).Abs().GreaterThan(Tolerance) {
		return fmt.Errorf("split total (%s) doesn't match expense total (%s)", sum, total)
	}
	return nil
}

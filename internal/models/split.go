package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Split is one member's computed share of a group expense, tracked
// independently as owed/paid. A split is settled once AmountPaid covers
// AmountOwed; AmountPaid never exceeds AmountOwed.
type Split struct {
	// ID is the unique identifier for the split (UUID format).
	ID string `json:"split_id"`

	GroupExpenseID string `json:"group_expense_id"`
	UserID         string `json:"user_id"`

	AmountOwed decimal.Decimal `json:"amount_owed"`
	AmountPaid decimal.Decimal `json:"amount_paid"`

	IsSettled bool       `json:"is_settled"`
	SettledAt *time.Time `json:"settled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Outstanding returns the unpaid remainder of the split.
func (s *Split) Outstanding() decimal.Decimal {
	return s.AmountOwed.Sub(s.AmountPaid)
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitMethod is the policy used to compute each member's share of an expense.
type SplitMethod string

const (
	SplitEqual      SplitMethod = "equal"
	SplitPercentage SplitMethod = "percentage"
	SplitExact      SplitMethod = "exact_amounts"

	// SplitShares is declared for forward compatibility but not implemented;
	// expense creation rejects it.
	SplitShares SplitMethod = "shares"
)

// Valid reports whether m is a declared split method.
func (m SplitMethod) Valid() bool {
	switch m {
	case SplitEqual, SplitPercentage, SplitExact, SplitShares:
		return true
	}
	return false
}

// GroupExpense is a shared expense fronted by one member of a group.
// The per-member obligations live in the Splits; IsSettled is a cache of
// "all non-payer splits settled" and split aggregation remains ground truth.
type GroupExpense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string `json:"expense_id"`

	GroupID string `json:"group_id"`

	// PaidByID is the user who fronted the money. Their own split is created
	// already settled.
	PaidByID string `json:"paid_by"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// TotalAmount is the full expense amount, fixed 2-decimal precision.
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`

	// CategoryID is an optional reference into the (out of scope) category
	// catalog; the ledger treats it as opaque.
	CategoryID string `json:"category_id,omitempty"`

	SplitMethod SplitMethod `json:"split_method"`
	ExpenseDate time.Time   `json:"expense_date"`

	ReceiptURL string `json:"receipt_url,omitempty"`
	Notes      string `json:"notes,omitempty"`

	IsSettled bool `json:"is_settled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Splits is populated when loading an expense with its split set.
	Splits []*Split `json:"splits,omitempty"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement is one recorded payment event by a payer against their own
// outstanding splits in a group. The amount is immutable once the payment
// has been distributed; only the payer may touch the record afterwards.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string `json:"settlement_id"`

	GroupID string `json:"group_id"`
	PayerID string `json:"payer_id"`

	Amount decimal.Decimal `json:"amount"`

	PaymentMethod   string `json:"payment_method,omitempty"`
	ReferenceNumber string `json:"reference_number,omitempty"`
	Notes           string `json:"notes,omitempty"`

	Date time.Time `json:"date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

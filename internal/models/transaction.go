package models

import "github.com/shopspring/decimal"

// Transaction is an append-only payment record. One transaction may fund the
// settlement of multiple shares; the amounts allocated from it must not exceed
// Amount. Shares reference the transaction, they do not own it.
type Transaction struct {
	// ID is the unique identifier for the transaction (UUID format).
	ID string

	// Amount is the payment amount in the transaction's currency.
	Amount decimal.Decimal

	// CurrencyID references the currency the payment was made in.
	CurrencyID string

	// Description is an optional caller-supplied note.
	Description string

	// CreatedByUserID is the user who made the payment.
	CreatedByUserID string

	// CreatedAt is the Unix timestamp when the transaction was recorded.
	CreatedAt int64
}

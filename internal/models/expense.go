package models

import "github.com/shopspring/decimal"

// Expense represents a shared cost paid by one user and split across
// participants. An expense exclusively owns its ExpenseParticipant rows;
// deleting the expense cascades to them.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// TotalAmount is the full expense amount in the expense's currency.
	TotalAmount decimal.Decimal

	// CurrencyID references the currency the expense was incurred in.
	CurrencyID string

	// PayerUserID is the user who paid the expense up front.
	PayerUserID string

	// GroupID is the group the expense belongs to. Empty for direct
	// (non-group) expenses.
	GroupID string

	// IsSettled is true iff every participant share is settled. It is derived
	// but persisted for query efficiency, and recomputed in the same store
	// transaction as any settlement that touches one of the shares.
	IsSettled bool

	// CreatedAt is the Unix timestamp when the expense was created.
	CreatedAt int64

	// Participants are the shares the expense splits into. Their amounts sum
	// to TotalAmount exactly, to the currency's minor unit.
	Participants []ExpenseParticipant
}

// ExpenseParticipant is one participant's share of an expense.
//
// The four Settled* fields are either all zero-valued (unsettled) or all
// populated (settled). There is no partial-settlement state: a share settles
// exactly once and is never re-opened.
type ExpenseParticipant struct {
	// ID is the unique identifier for the share (UUID format).
	ID string

	// ExpenseID is the owning expense.
	ExpenseID string

	// UserID is the participant who owes this share.
	UserID string

	// ShareAmount is this participant's portion, in the expense's currency.
	ShareAmount decimal.Decimal

	// SettledTransactionID references the transaction that funded the
	// settlement. Empty while unsettled.
	SettledTransactionID string

	// SettledAmountInTransactionCurrency is the amount allocated from the
	// transaction to this share, in the transaction's currency.
	SettledAmountInTransactionCurrency decimal.Decimal

	// SettledWithConversionRateID is the rate the settlement was priced with.
	SettledWithConversionRateID string

	// SettledAtConversionTimestamp is the rate timestamp the caller observed,
	// bound permanently so the settlement math stays reproducible.
	SettledAtConversionTimestamp int64
}

// Settled reports whether the share has been settled.
func (p *ExpenseParticipant) Settled() bool {
	return p.SettledTransactionID != ""
}

// ShareDetail is a share joined to the payer and currency of its parent
// expense. It is the row shape the balance ledger and settlement processor
// read.
type ShareDetail struct {
	ShareID     string
	ExpenseID   string
	UserID      string
	PayerUserID string
	CurrencyID  string
	GroupID     string
	ShareAmount decimal.Decimal
	Settled     bool
}

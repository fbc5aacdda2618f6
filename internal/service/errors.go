// Package service orchestrates the settlement engine's operations over the
// storage layer: expense creation with splitting, balance queries, settlement
// application, and registry lookups.
package service

import "errors"

var (
	// ErrScopeNotFound is returned when a balance query names a group or user
	// that does not exist.
	ErrScopeNotFound = errors.New("scope not found")

	// ErrUnauthorized is returned when the caller is neither the share's
	// participant nor the payer of its parent expense.
	ErrUnauthorized = errors.New("caller may not settle this share")

	// ErrTransactionOverallocated is returned when the amounts allocated from
	// a transaction exceed the transaction amount.
	ErrTransactionOverallocated = errors.New("allocations exceed transaction amount")

	// ErrInsufficientSettlementAmount is returned when an allocation is below
	// the converted amount the share requires.
	ErrInsufficientSettlementAmount = errors.New("allocation below required settlement amount")

	// ErrRateCurrencyMismatch is returned when a conversion rate's currency
	// pair does not match the expense and transaction currencies.
	ErrRateCurrencyMismatch = errors.New("conversion rate currency pair mismatch")
)

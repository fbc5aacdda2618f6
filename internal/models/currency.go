package models

import "github.com/shopspring/decimal"

// Currency represents a supported currency.
// A currency is immutable once any expense or share references it.
type Currency struct {
	// ID is the unique identifier for the currency (UUID format).
	ID string

	// Code is the short currency code (e.g. "USD", "EUR", "BTC").
	Code string

	// Symbol is the display symbol (e.g. "$").
	Symbol string

	// IsCrypto marks cryptocurrencies, which carry more minor-unit precision.
	IsCrypto bool
}

// DecimalPlaces returns the minor-unit precision for amounts in this
// currency: two for fiat, eight for crypto.
func (c *Currency) DecimalPlaces() int32 {
	if c.IsCrypto {
		return 8
	}
	return 2
}

// ConversionRate is a point-in-time exchange rate between two currencies,
// identified by a stable id. Rows are append-only; a superseding rate is a new
// row, never an update.
type ConversionRate struct {
	// ID is the unique identifier for the rate (UUID format).
	ID string

	// FromCurrencyID is the currency being converted from.
	FromCurrencyID string

	// ToCurrencyID is the currency being converted to.
	ToCurrencyID string

	// Rate converts an amount: to = from * Rate.
	Rate decimal.Decimal

	// Timestamp is the Unix timestamp the rate was observed at.
	Timestamp int64

	// Source names where the rate came from (e.g. "ecb", "manual").
	Source string
}

// Package models defines the core domain records for the Tallyup settlement
// engine.
//
// # Records
//
//   - Currency: lookup row for a supported currency (fiat or crypto)
//   - ConversionRate: an immutable, point-in-time exchange rate
//   - Expense: a shared cost paid by one user and split across participants
//   - ExpenseParticipant: one participant's share of an expense ("share")
//   - Transaction: an append-only payment record that funds settlements
//   - User, Group: minimal reference rows used for scope checks
//
// # Design Principles
//
// 1. **Decimal money**: every amount, percentage and rate is a
// shopspring/decimal value. float64 is never used for money.
//
// 2. **Avoid circular references**: relations are ID strings, not pointers.
//
// 3. **Append-only audit trail**: ConversionRate and Transaction rows are
// never updated in place. A settlement binds the rate id and the timestamp it
// observed, so a later rate cannot change what a historical settlement meant.
//
// 4. **Single mutation point**: an ExpenseParticipant moves from unsettled to
// settled exactly once; its settlement fields are either all empty or all set.
// Expense.IsSettled is the only mutable expense field after creation.
package models

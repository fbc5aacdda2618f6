// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/tallyup/tallyup/internal/models"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadySettled is returned when a settlement targets a share whose
	// settlement fields are already populated. It indicates a race or a stale
	// client view; the caller should refetch and retry with corrected
	// allocations.
	ErrAlreadySettled = errors.New("share already settled")
)

// SettledShare is one share's settlement write, validated by the service
// layer before it reaches the store.
type SettledShare struct {
	ShareID                     string
	AmountInTransactionCurrency decimal.Decimal
	ConversionRateID            string
	ConversionTimestamp         int64
}

// SettlementOutcome reports what a committed settlement changed.
type SettlementOutcome struct {
	TransactionID     string
	UpdatedShareIDs   []string
	SettledExpenseIDs []string // expenses whose is_settled flag flipped to true
}

// Store defines the persistence interface for the settlement engine.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// CreateExpense persists an expense and all of its participant shares in
	// one transaction. Missing ids and timestamps are populated by the store.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves an expense with its participants.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListShares retrieves the given shares joined to their parent expense.
	// Returns ErrNotFound if any id is missing.
	ListShares(ctx context.Context, shareIDs []string) ([]models.ShareDetail, error)

	// ListUnsettledSharesByGroup returns all unsettled shares of a group's
	// expenses.
	ListUnsettledSharesByGroup(ctx context.Context, groupID string) ([]models.ShareDetail, error)

	// ListUnsettledSharesByUser returns all unsettled shares where the user is
	// the debtor or the payer, across groups and direct expenses. Shares
	// between two other users are never included.
	ListUnsettledSharesByUser(ctx context.Context, userID string) ([]models.ShareDetail, error)

	// ApplySettlement records the transaction and settles the given shares as
	// a single atomic unit. The already-settled check runs inside the same
	// store transaction as the writes; if any share fails it, nothing is
	// applied and ErrAlreadySettled is returned. Expense is_settled flags are
	// recomputed within the same transaction.
	ApplySettlement(ctx context.Context, txn *models.Transaction, shares []SettledShare) (*SettlementOutcome, error)

	// GetTransaction retrieves a payment record.
	GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error)

	// ListSharesByTransaction returns the shares a transaction settled.
	ListSharesByTransaction(ctx context.Context, transactionID string) ([]models.ExpenseParticipant, error)

	// Registry rows. Currencies and rates are append-only lookups; rates are
	// supplied, never computed.
	CreateCurrency(ctx context.Context, currency *models.Currency) error
	GetCurrency(ctx context.Context, currencyID string) (*models.Currency, error)
	CreateRate(ctx context.Context, rate *models.ConversionRate) error
	GetRate(ctx context.Context, rateID string) (*models.ConversionRate, error)

	// Scope reference rows.
	CreateUser(ctx context.Context, user *models.User) error
	CreateGroup(ctx context.Context, group *models.Group) error
	UserExists(ctx context.Context, userID string) (bool, error)
	GroupExists(ctx context.Context, groupID string) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}

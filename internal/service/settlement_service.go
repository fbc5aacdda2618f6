package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/tallyup/tallyup/internal/models"
	"github.com/tallyup/tallyup/internal/storage"
)

// SettlementService applies payments against outstanding shares, converting
// currencies via caller-supplied rates. Validation happens before the store
// transaction opens, so no rate or authorization reads run while write locks
// are held; the already-settled check is re-enforced inside the transaction.
type SettlementService struct {
	store storage.Store
}

// NewSettlementService creates a new SettlementService with the given storage
// backend.
func NewSettlementService(store storage.Store) *SettlementService {
	return &SettlementService{store: store}
}

// Allocation directs part of a transaction at one share, priced with a
// specific conversion rate.
type Allocation struct {
	ExpenseParticipantID  string
	AmountFromTransaction decimal.Decimal
	ConversionRateID      string

	// ConversionTimestamp is the rate timestamp the caller observed. Zero
	// means "bind the rate row's own timestamp".
	ConversionTimestamp int64
}

// SettleRequest is a payment plus the shares it settles.
type SettleRequest struct {
	Amount      decimal.Decimal
	CurrencyID  string
	Description string
	Allocations []Allocation
}

// SettleResult reports what a committed settlement changed.
type SettleResult struct {
	TransactionID     string
	UpdatedShareIDs   []string
	SettledExpenseIDs []string
}

// SettleShares validates and applies a settlement batch as a single atomic
// unit. Any failure for any allocation leaves every share untouched.
//
// Checks run in order: authorization, transaction budget, per-allocation
// conversion, already-settled. callerID must be the participant or the payer
// of each targeted share.
func (s *SettlementService) SettleShares(ctx context.Context, callerID string, req SettleRequest) (*SettleResult, error) {
	if len(req.Allocations) == 0 {
		return nil, fmt.Errorf("settlement requires at least one allocation")
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("transaction amount must be positive, got %s", req.Amount)
	}

	txnCurrency, err := s.store.GetCurrency(ctx, req.CurrencyID)
	if err != nil {
		return nil, err
	}

	shareIDs := make([]string, len(req.Allocations))
	for i, alloc := range req.Allocations {
		shareIDs[i] = alloc.ExpenseParticipantID
	}
	details, err := s.store.ListShares(ctx, shareIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.ShareDetail, len(details))
	for _, d := range details {
		byID[d.ShareID] = d
	}

	// Authorization: the caller must be the share's participant or the payer
	// of its parent expense.
	for _, alloc := range req.Allocations {
		share := byID[alloc.ExpenseParticipantID]
		if callerID != share.UserID && callerID != share.PayerUserID {
			return nil, fmt.Errorf("share %s: %w", share.ShareID, ErrUnauthorized)
		}
	}

	// Transaction budget: allocations must not exceed the payment amount.
	allocated := decimal.Zero
	for _, alloc := range req.Allocations {
		if !alloc.AmountFromTransaction.IsPositive() {
			return nil, fmt.Errorf("allocation for share %s must be positive, got %s",
				alloc.ExpenseParticipantID, alloc.AmountFromTransaction)
		}
		allocated = allocated.Add(alloc.AmountFromTransaction)
	}
	if allocated.GreaterThan(req.Amount) {
		return nil, fmt.Errorf("%w: allocated %s of %s", ErrTransactionOverallocated, allocated, req.Amount)
	}

	// Per-allocation conversion: the rate must map the expense currency to
	// the transaction currency, and the allocation must cover the converted
	// share amount at the transaction currency's minor unit.
	settled := make([]storage.SettledShare, len(req.Allocations))
	for i, alloc := range req.Allocations {
		share := byID[alloc.ExpenseParticipantID]

		rate, err := s.store.GetRate(ctx, alloc.ConversionRateID)
		if err != nil {
			return nil, err
		}
		if rate.FromCurrencyID != share.CurrencyID || rate.ToCurrencyID != req.CurrencyID {
			return nil, fmt.Errorf("%w: rate %s converts %s->%s, share %s needs %s->%s",
				ErrRateCurrencyMismatch, rate.ID, rate.FromCurrencyID, rate.ToCurrencyID,
				share.ShareID, share.CurrencyID, req.CurrencyID)
		}

		required := share.ShareAmount.Mul(rate.Rate).Round(txnCurrency.DecimalPlaces())
		if alloc.AmountFromTransaction.LessThan(required) {
			return nil, fmt.Errorf("%w: share %s requires %s, allocated %s",
				ErrInsufficientSettlementAmount, share.ShareID, required, alloc.AmountFromTransaction)
		}

		if share.Settled {
			return nil, fmt.Errorf("share %s: %w", share.ShareID, storage.ErrAlreadySettled)
		}

		timestamp := alloc.ConversionTimestamp
		if timestamp == 0 {
			timestamp = rate.Timestamp
		}
		settled[i] = storage.SettledShare{
			ShareID:                     share.ShareID,
			AmountInTransactionCurrency: alloc.AmountFromTransaction,
			ConversionRateID:            rate.ID,
			ConversionTimestamp:         timestamp,
		}
	}

	txn := &models.Transaction{
		Amount:          req.Amount,
		CurrencyID:      req.CurrencyID,
		Description:     req.Description,
		CreatedByUserID: callerID,
	}
	outcome, err := s.store.ApplySettlement(ctx, txn, settled)
	if err != nil {
		slog.Warn("settlement rejected", "caller_id", callerID, "shares", len(settled), "error", err)
		return nil, err
	}

	slog.Info("settlement applied",
		"transaction_id", outcome.TransactionID,
		"caller_id", callerID,
		"shares", len(outcome.UpdatedShareIDs),
		"expenses_settled", len(outcome.SettledExpenseIDs),
	)
	return &SettleResult{
		TransactionID:     outcome.TransactionID,
		UpdatedShareIDs:   outcome.UpdatedShareIDs,
		SettledExpenseIDs: outcome.SettledExpenseIDs,
	}, nil
}

// GetTransaction returns a payment record with the shares it settled.
func (s *SettlementService) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, []models.ExpenseParticipant, error) {
	txn, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	shares, err := s.store.ListSharesByTransaction(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	return txn, shares, nil
}

package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/tallyup/tallyup/internal/models"
	"github.com/tallyup/tallyup/internal/splitter"
	"github.com/tallyup/tallyup/internal/storage"
)

// ExpenseService creates expenses together with their participant shares.
type ExpenseService struct {
	store storage.Store
}

// NewExpenseService creates a new ExpenseService with the given storage backend.
func NewExpenseService(store storage.Store) *ExpenseService {
	return &ExpenseService{store: store}
}

// CreateExpenseRequest describes an expense to split and persist.
type CreateExpenseRequest struct {
	TotalAmount  decimal.Decimal
	CurrencyID   string
	PayerUserID  string
	GroupID      string // empty for direct expenses
	Policy       splitter.Policy
	Participants []splitter.Participant
}

// CreateExpenseResult reports the created rows.
type CreateExpenseResult struct {
	ExpenseID string
	ShareIDs  []string
}

// CreateExpenseWithSplit splits the total under the requested policy and
// persists the expense with its shares atomically. The split runs at the
// currency's minor-unit precision, so the shares always reconstruct the total
// exactly. The payer, every participant and the group (when set) must exist;
// unknown references fail with ErrScopeNotFound before anything is written.
func (s *ExpenseService) CreateExpenseWithSplit(ctx context.Context, req CreateExpenseRequest) (*CreateExpenseResult, error) {
	currency, err := s.store.GetCurrency(ctx, req.CurrencyID)
	if err != nil {
		return nil, err
	}

	userIDs := []string{req.PayerUserID}
	for _, p := range req.Participants {
		if p.UserID != req.PayerUserID {
			userIDs = append(userIDs, p.UserID)
		}
	}
	for _, userID := range userIDs {
		exists, err := s.store.UserExists(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("user %s: %w", userID, ErrScopeNotFound)
		}
	}
	if req.GroupID != "" {
		exists, err := s.store.GroupExists(ctx, req.GroupID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("group %s: %w", req.GroupID, ErrScopeNotFound)
		}
	}

	shares, err := splitter.Split(req.TotalAmount, currency.DecimalPlaces(), req.Policy, req.Participants)
	if err != nil {
		slog.Error("split failed", "policy", req.Policy, "total", req.TotalAmount, "error", err)
		return nil, err
	}

	expense := &models.Expense{
		TotalAmount: req.TotalAmount,
		CurrencyID:  req.CurrencyID,
		PayerUserID: req.PayerUserID,
		GroupID:     req.GroupID,
	}
	for _, share := range shares {
		expense.Participants = append(expense.Participants, models.ExpenseParticipant{
			UserID:      share.UserID,
			ShareAmount: share.Amount,
		})
	}

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		slog.Error("failed to persist expense", "error", err)
		return nil, err
	}

	result := &CreateExpenseResult{ExpenseID: expense.ID}
	for _, p := range expense.Participants {
		result.ShareIDs = append(result.ShareIDs, p.ID)
	}

	slog.Info("expense created",
		"expense_id", expense.ID,
		"currency_id", expense.CurrencyID,
		"policy", req.Policy,
		"shares", len(result.ShareIDs),
	)
	return result, nil
}

// GetExpense retrieves an expense with its shares.
func (s *ExpenseService) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return s.store.GetExpense(ctx, expenseID)
}

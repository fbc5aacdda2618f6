package service

import (
	"context"
	"fmt"

	"github.com/tallyup/tallyup/internal/ledger"
	"github.com/tallyup/tallyup/internal/storage"
)

// BalanceService computes net pairwise balances from outstanding shares.
// It is a read-only derived view: it never mutates state, and repeated calls
// with no intervening writes return identical results.
type BalanceService struct {
	store storage.Store
}

// NewBalanceService creates a new BalanceService with the given storage backend.
func NewBalanceService(store storage.Store) *BalanceService {
	return &BalanceService{store: store}
}

// UserBalances is the result of a user-scoped balance query: the user's
// netted edges plus per-currency totals. Totals are never merged across
// currencies.
type UserBalances struct {
	Edges  []ledger.Edge
	Totals []ledger.CurrencyTotals
}

// GetGroupBalances nets all unsettled shares of a group's expenses into
// directed per-currency debt edges.
func (s *BalanceService) GetGroupBalances(ctx context.Context, groupID string) ([]ledger.Edge, error) {
	exists, err := s.store.GroupExists(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("group %s: %w", groupID, ErrScopeNotFound)
	}

	shares, err := s.store.ListUnsettledSharesByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	return ledger.Net(ledger.DebtsFromShares(shares)), nil
}

// GetUserBalances nets the unsettled shares the user owes or is owed, in any
// group or direct expense, and summarizes the user's per-currency position.
// Every returned edge involves the user; debts between two other users are
// out of scope.
func (s *BalanceService) GetUserBalances(ctx context.Context, userID string) (*UserBalances, error) {
	exists, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", userID, ErrScopeNotFound)
	}

	shares, err := s.store.ListUnsettledSharesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	edges := ledger.Net(ledger.DebtsFromShares(shares))
	return &UserBalances{
		Edges:  edges,
		Totals: ledger.UserTotals(edges, userID),
	}, nil
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tallyup/tallyup/internal/ledger"
	"github.com/tallyup/tallyup/internal/middleware"
	"github.com/tallyup/tallyup/internal/models"
	"github.com/tallyup/tallyup/internal/service"
	"github.com/tallyup/tallyup/internal/splitter"
	"github.com/tallyup/tallyup/internal/storage"
	"github.com/tallyup/tallyup/pkg/httpx"
)

// writeServiceError maps engine errors to HTTP statuses: validation 400,
// authorization 403, not-found 404, conflict 409, everything else 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, splitter.ErrInvalidPolicy),
		errors.Is(err, splitter.ErrShareSumMismatch),
		errors.Is(err, splitter.ErrEmptyParticipantSet),
		errors.Is(err, service.ErrTransactionOverallocated),
		errors.Is(err, service.ErrInsufficientSettlementAmount),
		errors.Is(err, service.ErrRateCurrencyMismatch):
		httpx.WriteError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrUnauthorized):
		httpx.WriteError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, storage.ErrAlreadySettled):
		httpx.WriteError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, service.ErrScopeNotFound):
		httpx.WriteError(w, err.Error(), http.StatusNotFound)
	default:
		httpx.WriteError(w, "internal server error", http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		httpx.WriteError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

type participantPayload struct {
	UserID     string          `json:"user_id"`
	Percentage decimal.Decimal `json:"percentage,omitempty"`
	Amount     decimal.Decimal `json:"amount,omitempty"`
}

type createExpenseRequest struct {
	TotalAmount  decimal.Decimal      `json:"total_amount"`
	CurrencyID   string               `json:"currency_id"`
	PayerUserID  string               `json:"payer_user_id"`
	GroupID      string               `json:"group_id,omitempty"`
	Policy       string               `json:"policy"`
	Participants []participantPayload `json:"participants"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	participants := make([]splitter.Participant, len(req.Participants))
	for i, p := range req.Participants {
		participants[i] = splitter.Participant{
			UserID:     p.UserID,
			Percentage: p.Percentage,
			Amount:     p.Amount,
		}
	}

	result, err := s.expenses.CreateExpenseWithSplit(r.Context(), service.CreateExpenseRequest{
		TotalAmount:  req.TotalAmount,
		CurrencyID:   req.CurrencyID,
		PayerUserID:  req.PayerUserID,
		GroupID:      req.GroupID,
		Policy:       splitter.Policy(req.Policy),
		Participants: participants,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"expense_id": result.ExpenseID,
		"share_ids":  result.ShareIDs,
	})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := s.expenses.GetExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, expenseResponse(expense))
}

type edgePayload struct {
	DebtorUserID   string          `json:"debtor_user_id"`
	CreditorUserID string          `json:"creditor_user_id"`
	CurrencyID     string          `json:"currency_id"`
	Amount         decimal.Decimal `json:"amount"`
}

func edgesPayload(edges []ledger.Edge) []edgePayload {
	out := make([]edgePayload, len(edges))
	for i, e := range edges {
		out[i] = edgePayload{
			DebtorUserID:   e.DebtorID,
			CreditorUserID: e.CreditorID,
			CurrencyID:     e.CurrencyID,
			Amount:         e.Amount,
		}
	}
	return out
}

func (s *Server) handleGroupBalances(w http.ResponseWriter, r *http.Request) {
	edges, err := s.balances.GetGroupBalances(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"balances": edgesPayload(edges)})
}

func (s *Server) handleUserBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.balances.GetUserBalances(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	type totalsPayload struct {
		CurrencyID string          `json:"currency_id"`
		TotalOwed  decimal.Decimal `json:"total_owed"`
		TotalOwing decimal.Decimal `json:"total_owing"`
	}
	totals := make([]totalsPayload, len(balances.Totals))
	for i, t := range balances.Totals {
		totals[i] = totalsPayload{CurrencyID: t.CurrencyID, TotalOwed: t.TotalOwed, TotalOwing: t.TotalOwing}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"balances": edgesPayload(balances.Edges),
		"totals":   totals,
	})
}

type allocationPayload struct {
	ExpenseParticipantID  string          `json:"expense_participant_id"`
	AmountFromTransaction decimal.Decimal `json:"amount_from_transaction"`
	ConversionRateID      string          `json:"conversion_rate_id"`
	ConversionTimestamp   int64           `json:"conversion_timestamp,omitempty"`
}

type settleRequest struct {
	Amount      decimal.Decimal     `json:"amount"`
	CurrencyID  string              `json:"currency_id"`
	Description string              `json:"description,omitempty"`
	Allocations []allocationPayload `json:"allocations"`
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.GetUserID(r.Context())

	var req settleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	allocations := make([]service.Allocation, len(req.Allocations))
	for i, a := range req.Allocations {
		allocations[i] = service.Allocation{
			ExpenseParticipantID:  a.ExpenseParticipantID,
			AmountFromTransaction: a.AmountFromTransaction,
			ConversionRateID:      a.ConversionRateID,
			ConversionTimestamp:   a.ConversionTimestamp,
		}
	}

	result, err := s.settlements.SettleShares(r.Context(), callerID, service.SettleRequest{
		Amount:      req.Amount,
		CurrencyID:  req.CurrencyID,
		Description: req.Description,
		Allocations: allocations,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transaction_id":      result.TransactionID,
		"updated_share_ids":   result.UpdatedShareIDs,
		"settled_expense_ids": result.SettledExpenseIDs,
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	txn, shares, err := s.settlements.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	settled := make([]map[string]interface{}, len(shares))
	for i, p := range shares {
		settled[i] = map[string]interface{}{
			"share_id":             p.ID,
			"expense_id":           p.ExpenseID,
			"user_id":              p.UserID,
			"share_amount":         p.ShareAmount,
			"settled_amount":       p.SettledAmountInTransactionCurrency,
			"conversion_rate_id":   p.SettledWithConversionRateID,
			"conversion_timestamp": p.SettledAtConversionTimestamp,
		}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":                 txn.ID,
		"amount":             txn.Amount,
		"currency_id":        txn.CurrencyID,
		"description":        txn.Description,
		"created_by_user_id": txn.CreatedByUserID,
		"created_at":         txn.CreatedAt,
		"settled_shares":     settled,
	})
}

func (s *Server) handleGetCurrency(w http.ResponseWriter, r *http.Request) {
	currency, err := s.registry.GetCurrency(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":        currency.ID,
		"code":      currency.Code,
		"symbol":    currency.Symbol,
		"is_crypto": currency.IsCrypto,
	})
}

func (s *Server) handleGetRate(w http.ResponseWriter, r *http.Request) {
	rate, err := s.registry.GetConversionRate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":               rate.ID,
		"from_currency_id": rate.FromCurrencyID,
		"to_currency_id":   rate.ToCurrencyID,
		"rate":             rate.Rate,
		"timestamp":        rate.Timestamp,
		"source":           rate.Source,
	})
}

func (s *Server) handleAddCurrency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code     string `json:"code"`
		Symbol   string `json:"symbol"`
		IsCrypto bool   `json:"is_crypto,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	currency := &models.Currency{Code: req.Code, Symbol: req.Symbol, IsCrypto: req.IsCrypto}
	if err := s.registry.AddCurrency(r.Context(), currency); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"id": currency.ID})
}

func (s *Server) handleAddRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromCurrencyID string          `json:"from_currency_id"`
		ToCurrencyID   string          `json:"to_currency_id"`
		Rate           decimal.Decimal `json:"rate"`
		Timestamp      int64           `json:"timestamp,omitempty"`
		Source         string          `json:"source,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	rate := &models.ConversionRate{
		FromCurrencyID: req.FromCurrencyID,
		ToCurrencyID:   req.ToCurrencyID,
		Rate:           req.Rate,
		Timestamp:      req.Timestamp,
		Source:         req.Source,
	}
	if err := s.registry.AddConversionRate(r.Context(), rate); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"id": rate.ID})
}

func expenseResponse(expense *models.Expense) map[string]interface{} {
	shares := make([]map[string]interface{}, len(expense.Participants))
	for i, p := range expense.Participants {
		share := map[string]interface{}{
			"id":           p.ID,
			"user_id":      p.UserID,
			"share_amount": p.ShareAmount,
			"settled":      p.Settled(),
		}
		if p.Settled() {
			share["settled_transaction_id"] = p.SettledTransactionID
			share["settled_amount_in_transaction_currency"] = p.SettledAmountInTransactionCurrency
			share["settled_with_conversion_rate_id"] = p.SettledWithConversionRateID
			share["settled_at_conversion_timestamp"] = p.SettledAtConversionTimestamp
		}
		shares[i] = share
	}

	resp := map[string]interface{}{
		"id":            expense.ID,
		"total_amount":  expense.TotalAmount,
		"currency_id":   expense.CurrencyID,
		"payer_user_id": expense.PayerUserID,
		"is_settled":    expense.IsSettled,
		"created_at":    expense.CreatedAt,
		"participants":  shares,
	}
	if expense.GroupID != "" {
		resp["group_id"] = expense.GroupID
	}
	return resp
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tallyup/tallyup/internal/models"
	"github.com/tallyup/tallyup/internal/storage"
)

// ApplySettlement records the payment transaction and settles the given
// shares as one database transaction. Each share update is conditional on the
// share still being unsettled; a conflicting concurrent settlement therefore
// rolls the whole batch back with storage.ErrAlreadySettled, never settling a
// share twice and never applying a partial batch.
func (s *SQLiteStore) ApplySettlement(ctx context.Context, txn *models.Transaction, shares []storage.SettledShare) (*storage.SettlementOutcome, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("settlement requires at least one share")
	}

	// Generate ID if not set
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt == 0 {
		txn.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var description interface{}
	if txn.Description != "" {
		description = txn.Description
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, amount, currency_id, description, created_by_user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.Amount.String(), txn.CurrencyID, description, txn.CreatedByUserID, txn.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	outcome := &storage.SettlementOutcome{TransactionID: txn.ID}
	touchedExpenses := make(map[string]bool)

	for _, share := range shares {
		var expenseID string
		err := tx.QueryRowContext(ctx,
			"SELECT expense_id FROM expense_participants WHERE id = ?",
			share.ShareID,
		).Scan(&expenseID)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("share %s: %w", share.ShareID, storage.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up share: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE expense_participants
			 SET settled_transaction_id = ?,
			     settled_amount_in_transaction_currency = ?,
			     settled_with_conversion_rate_id = ?,
			     settled_at_conversion_timestamp = ?
			 WHERE id = ? AND settled_transaction_id IS NULL`,
			txn.ID, share.AmountInTransactionCurrency.String(),
			share.ConversionRateID, share.ConversionTimestamp, share.ShareID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to settle share: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected != 1 {
			return nil, fmt.Errorf("share %s: %w", share.ShareID, storage.ErrAlreadySettled)
		}

		outcome.UpdatedShareIDs = append(outcome.UpdatedShareIDs, share.ShareID)
		touchedExpenses[expenseID] = true
	}

	// Recompute the derived is_settled flag for every touched expense within
	// the same transaction, so the invariant never has a consistency window.
	expenseIDs := make([]string, 0, len(touchedExpenses))
	for id := range touchedExpenses {
		expenseIDs = append(expenseIDs, id)
	}
	sort.Strings(expenseIDs)

	for _, expenseID := range expenseIDs {
		var remaining int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM expense_participants WHERE expense_id = ? AND settled_transaction_id IS NULL",
			expenseID,
		).Scan(&remaining)
		if err != nil {
			return nil, fmt.Errorf("failed to count unsettled shares: %w", err)
		}
		if remaining > 0 {
			continue
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE expenses SET is_settled = 1 WHERE id = ? AND is_settled = 0",
			expenseID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to mark expense settled: %w", err)
		}
		if affected, err := res.RowsAffected(); err != nil {
			return nil, fmt.Errorf("failed to read rows affected: %w", err)
		} else if affected == 1 {
			outcome.SettledExpenseIDs = append(outcome.SettledExpenseIDs, expenseID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return outcome, nil
}

// GetTransaction retrieves a payment record by ID.
func (s *SQLiteStore) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	txn := &models.Transaction{}
	var amount string
	var description sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, amount, currency_id, description, created_by_user_id, created_at
		 FROM transactions WHERE id = ?`,
		transactionID,
	).Scan(&txn.ID, &amount, &txn.CurrencyID, &description, &txn.CreatedByUserID, &txn.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	if txn.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if description.Valid {
		txn.Description = description.String
	}

	return txn, nil
}

// ListSharesByTransaction returns the shares a transaction settled, for the
// settlement audit trail.
func (s *SQLiteStore) ListSharesByTransaction(ctx context.Context, transactionID string) ([]models.ExpenseParticipant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, expense_id, user_id, share_amount,
		        settled_transaction_id, settled_amount_in_transaction_currency,
		        settled_with_conversion_rate_id, settled_at_conversion_timestamp
		 FROM expense_participants WHERE settled_transaction_id = ? ORDER BY id`,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settled shares: %w", err)
	}
	defer rows.Close()

	var participants []models.ExpenseParticipant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settled shares: %w", err)
	}

	return participants, nil
}

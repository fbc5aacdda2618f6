package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tallyup/tallyup/internal/models"
	"github.com/tallyup/tallyup/internal/storage"
)

// CreateExpense persists an expense and its participant shares atomically.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	// Generate IDs if not set
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var groupID interface{}
	if expense.GroupID != "" {
		groupID = expense.GroupID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, total_amount, currency_id, payer_user_id, group_id, is_settled, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		expense.ID, expense.TotalAmount.String(), expense.CurrencyID,
		expense.PayerUserID, groupID, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for i := range expense.Participants {
		p := &expense.Participants[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.ExpenseID = expense.ID

		_, err = tx.ExecContext(ctx,
			`INSERT INTO expense_participants (id, expense_id, user_id, share_amount)
			 VALUES (?, ?, ?, ?)`,
			p.ID, p.ExpenseID, p.UserID, p.ShareAmount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant share: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetExpense retrieves an expense by ID, including all participant shares.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense := &models.Expense{}
	var totalAmount string
	var groupID sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, total_amount, currency_id, payer_user_id, group_id, is_settled, created_at
		 FROM expenses WHERE id = ?`,
		expenseID,
	).Scan(&expense.ID, &totalAmount, &expense.CurrencyID, &expense.PayerUserID,
		&groupID, &expense.IsSettled, &expense.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if expense.TotalAmount, err = parseDecimal(totalAmount); err != nil {
		return nil, err
	}
	if groupID.Valid {
		expense.GroupID = groupID.String
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, expense_id, user_id, share_amount,
		        settled_transaction_id, settled_amount_in_transaction_currency,
		        settled_with_conversion_rate_id, settled_at_conversion_timestamp
		 FROM expense_participants WHERE expense_id = ? ORDER BY user_id`,
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		expense.Participants = append(expense.Participants, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return expense, nil
}

// scanParticipant reads one expense_participants row, mapping NULL settlement
// columns to zero values.
func scanParticipant(rows *sql.Rows) (*models.ExpenseParticipant, error) {
	p := &models.ExpenseParticipant{}
	var shareAmount string
	var settledTxnID, settledAmount, settledRateID sql.NullString
	var settledTimestamp sql.NullInt64

	if err := rows.Scan(&p.ID, &p.ExpenseID, &p.UserID, &shareAmount,
		&settledTxnID, &settledAmount, &settledRateID, &settledTimestamp); err != nil {
		return nil, fmt.Errorf("failed to scan participant: %w", err)
	}

	var err error
	if p.ShareAmount, err = parseDecimal(shareAmount); err != nil {
		return nil, err
	}
	if settledTxnID.Valid {
		p.SettledTransactionID = settledTxnID.String
		if p.SettledAmountInTransactionCurrency, err = parseDecimal(settledAmount.String); err != nil {
			return nil, err
		}
		p.SettledWithConversionRateID = settledRateID.String
		p.SettledAtConversionTimestamp = settledTimestamp.Int64
	}
	return p, nil
}

const shareDetailColumns = `p.id, p.expense_id, p.user_id, e.payer_user_id, e.currency_id,
	COALESCE(e.group_id, ''), p.share_amount, p.settled_transaction_id IS NOT NULL`

func scanShareDetail(rows *sql.Rows) (*models.ShareDetail, error) {
	d := &models.ShareDetail{}
	var shareAmount string
	if err := rows.Scan(&d.ShareID, &d.ExpenseID, &d.UserID, &d.PayerUserID,
		&d.CurrencyID, &d.GroupID, &shareAmount, &d.Settled); err != nil {
		return nil, fmt.Errorf("failed to scan share detail: %w", err)
	}
	var err error
	if d.ShareAmount, err = parseDecimal(shareAmount); err != nil {
		return nil, err
	}
	return d, nil
}

// ListShares retrieves the given shares joined to their parent expense.
// Returns storage.ErrNotFound if any requested id is missing.
func (s *SQLiteStore) ListShares(ctx context.Context, shareIDs []string) ([]models.ShareDetail, error) {
	if len(shareIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(shareIDs)), ", ")
	args := make([]interface{}, len(shareIDs))
	for i, id := range shareIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shareDetailColumns+`
		 FROM expense_participants p
		 JOIN expenses e ON e.id = p.expense_id
		 WHERE p.id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(shareIDs))
	var details []models.ShareDetail
	for rows.Next() {
		d, err := scanShareDetail(rows)
		if err != nil {
			return nil, err
		}
		found[d.ShareID] = true
		details = append(details, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shares: %w", err)
	}

	for _, id := range shareIDs {
		if !found[id] {
			return nil, fmt.Errorf("share %s: %w", id, storage.ErrNotFound)
		}
	}
	return details, nil
}

// ListUnsettledSharesByGroup returns all unsettled shares of a group's
// expenses, joined to the parent expense for payer and currency.
func (s *SQLiteStore) ListUnsettledSharesByGroup(ctx context.Context, groupID string) ([]models.ShareDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shareDetailColumns+`
		 FROM expense_participants p
		 JOIN expenses e ON e.id = p.expense_id
		 WHERE e.group_id = ? AND p.settled_transaction_id IS NULL
		 ORDER BY p.id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list group shares: %w", err)
	}
	return collectShareDetails(rows)
}

// ListUnsettledSharesByUser returns all unsettled shares where the user is the
// debtor or the payer, in any group or direct expense. Shares between two
// other users are out of scope even when they belong to an expense the user
// also appears in.
func (s *SQLiteStore) ListUnsettledSharesByUser(ctx context.Context, userID string) ([]models.ShareDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shareDetailColumns+`
		 FROM expense_participants p
		 JOIN expenses e ON e.id = p.expense_id
		 WHERE p.settled_transaction_id IS NULL
		   AND (p.user_id = ? OR e.payer_user_id = ?)
		 ORDER BY p.id`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user shares: %w", err)
	}
	return collectShareDetails(rows)
}

func collectShareDetails(rows *sql.Rows) ([]models.ShareDetail, error) {
	defer rows.Close()
	var details []models.ShareDetail
	for rows.Next() {
		d, err := scanShareDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shares: %w", err)
	}
	return details, nil
}

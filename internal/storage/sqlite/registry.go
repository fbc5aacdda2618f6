package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyup/tallyup/internal/models"
	"github.com/tallyup/tallyup/internal/storage"
)

// CreateCurrency inserts a currency row. Currencies are immutable once
// referenced; there is no update path.
func (s *SQLiteStore) CreateCurrency(ctx context.Context, currency *models.Currency) error {
	if currency.ID == "" {
		currency.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO currencies (id, code, symbol, is_crypto) VALUES (?, ?, ?, ?)",
		currency.ID, currency.Code, currency.Symbol, currency.IsCrypto,
	)
	if err != nil {
		return fmt.Errorf("failed to insert currency: %w", err)
	}
	return nil
}

// GetCurrency retrieves a currency by ID.
func (s *SQLiteStore) GetCurrency(ctx context.Context, currencyID string) (*models.Currency, error) {
	currency := &models.Currency{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, code, symbol, is_crypto FROM currencies WHERE id = ?",
		currencyID,
	).Scan(&currency.ID, &currency.Code, &currency.Symbol, &currency.IsCrypto)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("currency %s: %w", currencyID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get currency: %w", err)
	}
	return currency, nil
}

// CreateRate appends a conversion rate row. Superseding rates are new rows;
// existing rows are never updated, so historical settlements keep their
// meaning.
func (s *SQLiteStore) CreateRate(ctx context.Context, rate *models.ConversionRate) error {
	if rate.ID == "" {
		rate.ID = uuid.New().String()
	}
	if rate.Timestamp == 0 {
		rate.Timestamp = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversion_rates (id, from_currency_id, to_currency_id, rate, timestamp, source)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rate.ID, rate.FromCurrencyID, rate.ToCurrencyID, rate.Rate.String(), rate.Timestamp, rate.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversion rate: %w", err)
	}
	return nil
}

// GetRate retrieves a conversion rate by ID.
func (s *SQLiteStore) GetRate(ctx context.Context, rateID string) (*models.ConversionRate, error) {
	rate := &models.ConversionRate{}
	var rateValue string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, from_currency_id, to_currency_id, rate, timestamp, source
		 FROM conversion_rates WHERE id = ?`,
		rateID,
	).Scan(&rate.ID, &rate.FromCurrencyID, &rate.ToCurrencyID, &rateValue, &rate.Timestamp, &rate.Source)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversion rate %s: %w", rateID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversion rate: %w", err)
	}

	if rate.Rate, err = parseDecimal(rateValue); err != nil {
		return nil, err
	}
	return rate, nil
}

// CreateUser inserts a user reference row.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)",
		user.ID, user.Name, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// CreateGroup inserts a group reference row.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO groups (id, name, created_at) VALUES (?, ?, ?)",
		group.ID, group.Name, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// UserExists reports whether a user row exists.
func (s *SQLiteStore) UserExists(ctx context.Context, userID string) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM users WHERE id = ?", userID)
}

// GroupExists reports whether a group row exists.
func (s *SQLiteStore) GroupExists(ctx context.Context, groupID string) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM groups WHERE id = ?", groupID)
}

func (s *SQLiteStore) exists(ctx context.Context, query, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return true, nil
}

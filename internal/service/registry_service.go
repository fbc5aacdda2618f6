package service

import (
	"context"
	"fmt"

	"github.com/tallyup/tallyup/internal/models"
	"github.com/tallyup/tallyup/internal/storage"
)

// RegistryService is the read-mostly currency and rate lookup layer. It does
// not compute or fetch live rates; rates are supplied rows, and freshness is
// the caller's concern.
type RegistryService struct {
	store storage.Store
}

// NewRegistryService creates a new RegistryService with the given storage
// backend.
func NewRegistryService(store storage.Store) *RegistryService {
	return &RegistryService{store: store}
}

// GetCurrency looks up a currency by id.
func (s *RegistryService) GetCurrency(ctx context.Context, currencyID string) (*models.Currency, error) {
	return s.store.GetCurrency(ctx, currencyID)
}

// GetConversionRate looks up a point-in-time rate by id.
func (s *RegistryService) GetConversionRate(ctx context.Context, rateID string) (*models.ConversionRate, error) {
	return s.store.GetRate(ctx, rateID)
}

// AddCurrency registers a currency.
func (s *RegistryService) AddCurrency(ctx context.Context, currency *models.Currency) error {
	if currency.Code == "" {
		return fmt.Errorf("currency code must not be empty")
	}
	return s.store.CreateCurrency(ctx, currency)
}

// AddConversionRate appends a supplied rate. The currency pair must exist and
// the rate must be positive; nothing here discovers or refreshes rates.
func (s *RegistryService) AddConversionRate(ctx context.Context, rate *models.ConversionRate) error {
	if !rate.Rate.IsPositive() {
		return fmt.Errorf("conversion rate must be positive, got %s", rate.Rate)
	}
	if _, err := s.store.GetCurrency(ctx, rate.FromCurrencyID); err != nil {
		return err
	}
	if _, err := s.store.GetCurrency(ctx, rate.ToCurrencyID); err != nil {
		return err
	}
	return s.store.CreateRate(ctx, rate)
}

package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tallyup/tallyup/internal/models"
	"github.com/tallyup/tallyup/internal/splitter"
	"github.com/tallyup/tallyup/internal/storage/sqlite"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fixture is a sqlite-backed test environment with users alice/bob/carol,
// one group, USD and EUR currencies, an identity USD rate and a EUR->USD
// rate of 1.08.
type fixture struct {
	store        *sqlite.SQLiteStore
	groupID      string
	usdID        string
	eurID        string
	usdRateID    string
	eurUsdRateID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "tallyup-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	for _, name := range []string{"alice", "bob", "carol"} {
		if err := store.CreateUser(ctx, &models.User{ID: name, Name: name}); err != nil {
			t.Fatalf("CreateUser(%s) failed: %v", name, err)
		}
	}

	group := &models.Group{Name: "Trip"}
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	usd := &models.Currency{Code: "USD", Symbol: "$"}
	eur := &models.Currency{Code: "EUR", Symbol: "€"}
	for _, c := range []*models.Currency{usd, eur} {
		if err := store.CreateCurrency(ctx, c); err != nil {
			t.Fatalf("CreateCurrency(%s) failed: %v", c.Code, err)
		}
	}

	usdRate := &models.ConversionRate{
		FromCurrencyID: usd.ID, ToCurrencyID: usd.ID,
		Rate: dec("1"), Timestamp: 1700000000, Source: "manual",
	}
	eurUsdRate := &models.ConversionRate{
		FromCurrencyID: eur.ID, ToCurrencyID: usd.ID,
		Rate: dec("1.08"), Timestamp: 1700000100, Source: "manual",
	}
	for _, r := range []*models.ConversionRate{usdRate, eurUsdRate} {
		if err := store.CreateRate(ctx, r); err != nil {
			t.Fatalf("CreateRate failed: %v", err)
		}
	}

	return &fixture{
		store:        store,
		groupID:      group.ID,
		usdID:        usd.ID,
		eurID:        eur.ID,
		usdRateID:    usdRate.ID,
		eurUsdRateID: eurUsdRate.ID,
	}
}

// createExpense persists a custom-split expense in the fixture group and
// returns it with share ids populated.
func (f *fixture) createExpense(t *testing.T, payer, currencyID string, amounts map[string]string) *models.Expense {
	t.Helper()

	var participants []splitter.Participant
	total := decimal.Zero
	for user, amount := range amounts {
		participants = append(participants, splitter.Participant{UserID: user, Amount: dec(amount)})
		total = total.Add(dec(amount))
	}

	svc := NewExpenseService(f.store)
	result, err := svc.CreateExpenseWithSplit(context.Background(), CreateExpenseRequest{
		TotalAmount:  total,
		CurrencyID:   currencyID,
		PayerUserID:  payer,
		GroupID:      f.groupID,
		Policy:       splitter.PolicyCustom,
		Participants: participants,
	})
	if err != nil {
		t.Fatalf("CreateExpenseWithSplit failed: %v", err)
	}

	expense, err := f.store.GetExpense(context.Background(), result.ExpenseID)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	return expense
}

func shareOf(t *testing.T, expense *models.Expense, userID string) models.ExpenseParticipant {
	t.Helper()
	for _, p := range expense.Participants {
		if p.UserID == userID {
			return p
		}
	}
	t.Fatalf("no share for user %s in expense %s", userID, expense.ID)
	return models.ExpenseParticipant{}
}

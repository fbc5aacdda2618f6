package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tallyup/tallyup/internal/models"
	"github.com/tallyup/tallyup/internal/storage"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "tallyup-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// fixture seeds users alice/bob/carol, a group, a USD currency and an
// identity USD->USD rate.
type fixture struct {
	groupID   string
	usdID     string
	usdRateID string
}

func seed(t *testing.T, store *SQLiteStore) fixture {
	t.Helper()
	ctx := context.Background()

	for _, name := range []string{"alice", "bob", "carol"} {
		if err := store.CreateUser(ctx, &models.User{ID: name, Name: name}); err != nil {
			t.Fatalf("CreateUser(%s) failed: %v", name, err)
		}
	}

	group := &models.Group{Name: "Roommates"}
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	usd := &models.Currency{Code: "USD", Symbol: "$"}
	if err := store.CreateCurrency(ctx, usd); err != nil {
		t.Fatalf("CreateCurrency failed: %v", err)
	}

	rate := &models.ConversionRate{
		FromCurrencyID: usd.ID,
		ToCurrencyID:   usd.ID,
		Rate:           dec("1"),
		Source:         "manual",
	}
	if err := store.CreateRate(ctx, rate); err != nil {
		t.Fatalf("CreateRate failed: %v", err)
	}

	return fixture{groupID: group.ID, usdID: usd.ID, usdRateID: rate.ID}
}

func createExpense(t *testing.T, store *SQLiteStore, fix fixture, payer string, shares map[string]string) *models.Expense {
	t.Helper()
	total := decimal.Zero
	expense := &models.Expense{
		CurrencyID:  fix.usdID,
		PayerUserID: payer,
		GroupID:     fix.groupID,
	}
	for _, user := range []string{"alice", "bob", "carol"} {
		amount, ok := shares[user]
		if !ok {
			continue
		}
		expense.Participants = append(expense.Participants, models.ExpenseParticipant{
			UserID:      user,
			ShareAmount: dec(amount),
		})
		total = total.Add(dec(amount))
	}
	expense.TotalAmount = total

	if err := store.CreateExpense(context.Background(), expense); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	return expense
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	fix := seed(t, store)
	ctx := context.Background()

	t.Run("CreateExpense generates IDs and persists shares", func(t *testing.T) {
		expense := createExpense(t, store, fix, "alice", map[string]string{
			"alice": "20.00", "bob": "20.00", "carol": "20.00",
		})

		if expense.ID == "" {
			t.Error("Expected expense ID to be generated")
		}
		if expense.CreatedAt == 0 {
			t.Error("Expected CreatedAt to be set")
		}

		retrieved, err := store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if !retrieved.TotalAmount.Equal(dec("60.00")) {
			t.Errorf("TotalAmount = %s, want 60.00", retrieved.TotalAmount)
		}
		if retrieved.IsSettled {
			t.Error("new expense must not be settled")
		}
		if len(retrieved.Participants) != 3 {
			t.Fatalf("got %d participants, want 3", len(retrieved.Participants))
		}
		for _, p := range retrieved.Participants {
			if p.Settled() {
				t.Errorf("share %s settled on creation", p.ID)
			}
			if !p.ShareAmount.Equal(dec("20.00")) {
				t.Errorf("share %s amount = %s, want 20.00", p.ID, p.ShareAmount)
			}
		}
	})

	t.Run("GetExpense returns ErrNotFound for missing id", func(t *testing.T) {
		_, err := store.GetExpense(ctx, "nonexistent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("ListShares returns ErrNotFound when any id is missing", func(t *testing.T) {
		expense := createExpense(t, store, fix, "alice", map[string]string{
			"alice": "5.00", "bob": "5.00",
		})
		_, err := store.ListShares(ctx, []string{expense.Participants[0].ID, "missing"})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("ApplySettlement settles shares and flips is_settled", func(t *testing.T) {
		expense := createExpense(t, store, fix, "alice", map[string]string{
			"alice": "10.00", "bob": "10.00",
		})

		var shares []storage.SettledShare
		for _, p := range expense.Participants {
			shares = append(shares, storage.SettledShare{
				ShareID:                     p.ID,
				AmountInTransactionCurrency: p.ShareAmount,
				ConversionRateID:            fix.usdRateID,
				ConversionTimestamp:         1700000000,
			})
		}

		txn := &models.Transaction{
			Amount:          dec("20.00"),
			CurrencyID:      fix.usdID,
			CreatedByUserID: "bob",
		}
		outcome, err := store.ApplySettlement(ctx, txn, shares)
		if err != nil {
			t.Fatalf("ApplySettlement failed: %v", err)
		}
		if outcome.TransactionID == "" {
			t.Error("Expected transaction ID to be generated")
		}
		if len(outcome.UpdatedShareIDs) != 2 {
			t.Errorf("got %d updated shares, want 2", len(outcome.UpdatedShareIDs))
		}
		if len(outcome.SettledExpenseIDs) != 1 || outcome.SettledExpenseIDs[0] != expense.ID {
			t.Errorf("SettledExpenseIDs = %v, want [%s]", outcome.SettledExpenseIDs, expense.ID)
		}

		retrieved, err := store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if !retrieved.IsSettled {
			t.Error("expense should be settled after all shares settle")
		}
		for _, p := range retrieved.Participants {
			if !p.Settled() {
				t.Errorf("share %s not settled", p.ID)
			}
			if p.SettledTransactionID != outcome.TransactionID {
				t.Errorf("share %s bound to transaction %s, want %s", p.ID, p.SettledTransactionID, outcome.TransactionID)
			}
			if p.SettledWithConversionRateID != fix.usdRateID {
				t.Errorf("share %s bound to rate %s, want %s", p.ID, p.SettledWithConversionRateID, fix.usdRateID)
			}
			if p.SettledAtConversionTimestamp != 1700000000 {
				t.Errorf("share %s conversion timestamp = %d", p.ID, p.SettledAtConversionTimestamp)
			}
		}

		settled, err := store.ListSharesByTransaction(ctx, outcome.TransactionID)
		if err != nil {
			t.Fatalf("ListSharesByTransaction failed: %v", err)
		}
		if len(settled) != 2 {
			t.Errorf("got %d settled shares, want 2", len(settled))
		}
	})

	t.Run("ApplySettlement rejects an already settled share", func(t *testing.T) {
		expense := createExpense(t, store, fix, "alice", map[string]string{
			"bob": "10.00",
		})
		share := storage.SettledShare{
			ShareID:                     expense.Participants[0].ID,
			AmountInTransactionCurrency: dec("10.00"),
			ConversionRateID:            fix.usdRateID,
			ConversionTimestamp:         1700000000,
		}
		txn := &models.Transaction{Amount: dec("10.00"), CurrencyID: fix.usdID, CreatedByUserID: "bob"}
		if _, err := store.ApplySettlement(ctx, txn, []storage.SettledShare{share}); err != nil {
			t.Fatalf("first ApplySettlement failed: %v", err)
		}

		retry := &models.Transaction{Amount: dec("10.00"), CurrencyID: fix.usdID, CreatedByUserID: "bob"}
		_, err := store.ApplySettlement(ctx, retry, []storage.SettledShare{share})
		if !errors.Is(err, storage.ErrAlreadySettled) {
			t.Errorf("got %v, want ErrAlreadySettled", err)
		}
	})

	t.Run("ApplySettlement rolls back the whole batch on conflict", func(t *testing.T) {
		expense := createExpense(t, store, fix, "alice", map[string]string{
			"bob": "10.00", "carol": "15.00",
		})
		bobShare := expense.Participants[0]
		carolShare := expense.Participants[1]
		if bobShare.UserID != "bob" {
			bobShare, carolShare = carolShare, bobShare
		}

		// Settle carol's share first.
		txn := &models.Transaction{Amount: dec("15.00"), CurrencyID: fix.usdID, CreatedByUserID: "carol"}
		_, err := store.ApplySettlement(ctx, txn, []storage.SettledShare{{
			ShareID:                     carolShare.ID,
			AmountInTransactionCurrency: dec("15.00"),
			ConversionRateID:            fix.usdRateID,
			ConversionTimestamp:         1700000000,
		}})
		if err != nil {
			t.Fatalf("ApplySettlement failed: %v", err)
		}

		// A batch of (bob's unsettled, carol's settled) must change nothing.
		batch := &models.Transaction{Amount: dec("25.00"), CurrencyID: fix.usdID, CreatedByUserID: "bob"}
		_, err = store.ApplySettlement(ctx, batch, []storage.SettledShare{
			{ShareID: bobShare.ID, AmountInTransactionCurrency: dec("10.00"), ConversionRateID: fix.usdRateID, ConversionTimestamp: 1700000000},
			{ShareID: carolShare.ID, AmountInTransactionCurrency: dec("15.00"), ConversionRateID: fix.usdRateID, ConversionTimestamp: 1700000000},
		})
		if !errors.Is(err, storage.ErrAlreadySettled) {
			t.Fatalf("got %v, want ErrAlreadySettled", err)
		}

		retrieved, err := store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		for _, p := range retrieved.Participants {
			if p.ID == bobShare.ID && p.Settled() {
				t.Error("bob's share settled despite batch rollback")
			}
		}
		if retrieved.IsSettled {
			t.Error("expense marked settled despite batch rollback")
		}
	})

	t.Run("ListUnsettledSharesByGroup excludes settled shares", func(t *testing.T) {
		store := newTestStore(t)
		fix := seed(t, store)

		expense := createExpense(t, store, fix, "alice", map[string]string{
			"bob": "10.00", "carol": "5.00",
		})
		txn := &models.Transaction{Amount: dec("10.00"), CurrencyID: fix.usdID, CreatedByUserID: "bob"}
		_, err := store.ApplySettlement(ctx, txn, []storage.SettledShare{{
			ShareID:                     expense.Participants[0].ID,
			AmountInTransactionCurrency: dec("10.00"),
			ConversionRateID:            fix.usdRateID,
			ConversionTimestamp:         1700000000,
		}})
		if err != nil {
			t.Fatalf("ApplySettlement failed: %v", err)
		}

		shares, err := store.ListUnsettledSharesByGroup(ctx, fix.groupID)
		if err != nil {
			t.Fatalf("ListUnsettledSharesByGroup failed: %v", err)
		}
		if len(shares) != 1 {
			t.Fatalf("got %d unsettled shares, want 1", len(shares))
		}
		if shares[0].PayerUserID != "alice" || shares[0].CurrencyID != fix.usdID {
			t.Errorf("share detail missing expense join: %+v", shares[0])
		}
	})

	t.Run("ListUnsettledSharesByUser covers paid and owed expenses", func(t *testing.T) {
		store := newTestStore(t)
		fix := seed(t, store)

		// bob participates in one expense and paid another.
		createExpense(t, store, fix, "alice", map[string]string{"bob": "10.00"})
		createExpense(t, store, fix, "bob", map[string]string{"carol": "20.00"})
		// unrelated to bob
		createExpense(t, store, fix, "alice", map[string]string{"carol": "30.00"})

		shares, err := store.ListUnsettledSharesByUser(ctx, "bob")
		if err != nil {
			t.Fatalf("ListUnsettledSharesByUser failed: %v", err)
		}
		if len(shares) != 2 {
			t.Fatalf("got %d shares, want 2", len(shares))
		}
		for _, s := range shares {
			if s.UserID != "bob" && s.PayerUserID != "bob" {
				t.Errorf("share %s does not involve bob: debtor %s, payer %s", s.ShareID, s.UserID, s.PayerUserID)
			}
		}
	})

	t.Run("ListUnsettledSharesByUser excludes co-participants' shares", func(t *testing.T) {
		store := newTestStore(t)
		fix := seed(t, store)

		// bob paid; alice and carol each owe a share of the same expense.
		createExpense(t, store, fix, "bob", map[string]string{"alice": "25.00", "carol": "25.00"})

		shares, err := store.ListUnsettledSharesByUser(ctx, "alice")
		if err != nil {
			t.Fatalf("ListUnsettledSharesByUser failed: %v", err)
		}
		if len(shares) != 1 {
			t.Fatalf("got %d shares, want only alice's own", len(shares))
		}
		if shares[0].UserID != "alice" {
			t.Errorf("got share for %s, want alice", shares[0].UserID)
		}
	})

	t.Run("registry lookups", func(t *testing.T) {
		currency, err := store.GetCurrency(ctx, fix.usdID)
		if err != nil {
			t.Fatalf("GetCurrency failed: %v", err)
		}
		if currency.Code != "USD" || currency.IsCrypto {
			t.Errorf("currency = %+v", currency)
		}

		rate, err := store.GetRate(ctx, fix.usdRateID)
		if err != nil {
			t.Fatalf("GetRate failed: %v", err)
		}
		if !rate.Rate.Equal(dec("1")) || rate.Source != "manual" {
			t.Errorf("rate = %+v", rate)
		}

		if _, err := store.GetCurrency(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetCurrency(missing) = %v, want ErrNotFound", err)
		}
		if _, err := store.GetRate(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetRate(missing) = %v, want ErrNotFound", err)
		}
	})

	t.Run("scope existence checks", func(t *testing.T) {
		if ok, err := store.GroupExists(ctx, fix.groupID); err != nil || !ok {
			t.Errorf("GroupExists = (%v, %v), want (true, nil)", ok, err)
		}
		if ok, err := store.GroupExists(ctx, "missing"); err != nil || ok {
			t.Errorf("GroupExists(missing) = (%v, %v), want (false, nil)", ok, err)
		}
		if ok, err := store.UserExists(ctx, "alice"); err != nil || !ok {
			t.Errorf("UserExists = (%v, %v), want (true, nil)", ok, err)
		}
	})
}

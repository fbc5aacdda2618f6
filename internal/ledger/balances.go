// Package ledger nets outstanding shares into pairwise, per-currency debt
// edges. It is a pure, derived computation: it reads share rows and mutates
// nothing, so running it twice over the same input yields identical output.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tallyup/tallyup/internal/models"
)

// Debt is one directed obligation extracted from an unsettled share: the
// participant owes the expense's payer the share amount, in the expense's
// currency.
type Debt struct {
	DebtorID   string
	CreditorID string
	CurrencyID string
	Amount     decimal.Decimal
}

// Edge is a netted, directed, single-currency debt between two users.
// Edges are never summed across currencies.
type Edge struct {
	DebtorID   string
	CreditorID string
	CurrencyID string
	Amount     decimal.Decimal
}

// CurrencyTotals summarizes one user's position in one currency.
type CurrencyTotals struct {
	CurrencyID string
	TotalOwed  decimal.Decimal // owed to the user by others
	TotalOwing decimal.Decimal // owed by the user to others
}

type pairKey struct {
	low, high, currency string
}

// DebtsFromShares converts unsettled share rows into directed debts.
// A participant who is also the payer owes nothing for their own share.
func DebtsFromShares(shares []models.ShareDetail) []Debt {
	debts := make([]Debt, 0, len(shares))
	for _, s := range shares {
		if s.Settled || s.UserID == s.PayerUserID {
			continue
		}
		debts = append(debts, Debt{
			DebtorID:   s.UserID,
			CreditorID: s.PayerUserID,
			CurrencyID: s.CurrencyID,
			Amount:     s.ShareAmount,
		})
	}
	return debts
}

// Net groups debts by (debtor, creditor, currency), collapses opposing debts
// within a pair to a single edge from the net debtor to the net creditor, and
// drops zero edges and self-loops. Output order is deterministic.
func Net(debts []Debt) []Edge {
	// Signed amount per unordered pair: positive means low owes high.
	net := make(map[pairKey]decimal.Decimal)
	for _, d := range debts {
		if d.DebtorID == d.CreditorID || d.Amount.IsZero() {
			continue
		}
		key := pairKey{low: d.DebtorID, high: d.CreditorID, currency: d.CurrencyID}
		amount := d.Amount
		if key.low > key.high {
			key.low, key.high = key.high, key.low
			amount = amount.Neg()
		}
		net[key] = net[key].Add(amount)
	}

	edges := make([]Edge, 0, len(net))
	for key, amount := range net {
		if amount.IsZero() {
			continue
		}
		edge := Edge{DebtorID: key.low, CreditorID: key.high, CurrencyID: key.currency, Amount: amount}
		if amount.IsNegative() {
			edge.DebtorID, edge.CreditorID = key.high, key.low
			edge.Amount = amount.Neg()
		}
		edges = append(edges, edge)
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].DebtorID != edges[j].DebtorID {
			return edges[i].DebtorID < edges[j].DebtorID
		}
		if edges[i].CreditorID != edges[j].CreditorID {
			return edges[i].CreditorID < edges[j].CreditorID
		}
		return edges[i].CurrencyID < edges[j].CurrencyID
	})
	return edges
}

// UserTotals sums the edges touching userID into per-currency owed/owing
// totals. Totals are reported per currency, never merged across currencies.
func UserTotals(edges []Edge, userID string) []CurrencyTotals {
	byCurrency := make(map[string]*CurrencyTotals)
	totals := func(currencyID string) *CurrencyTotals {
		t, ok := byCurrency[currencyID]
		if !ok {
			t = &CurrencyTotals{CurrencyID: currencyID}
			byCurrency[currencyID] = t
		}
		return t
	}

	for _, e := range edges {
		switch userID {
		case e.CreditorID:
			t := totals(e.CurrencyID)
			t.TotalOwed = t.TotalOwed.Add(e.Amount)
		case e.DebtorID:
			t := totals(e.CurrencyID)
			t.TotalOwing = t.TotalOwing.Add(e.Amount)
		}
	}

	out := make([]CurrencyTotals, 0, len(byCurrency))
	for _, t := range byCurrency {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrencyID < out[j].CurrencyID })
	return out
}

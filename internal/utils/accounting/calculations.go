package accounting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/SscSPs/ledger_engine/internal/core/domain"
	"github.com/shopspring/decimal"
)

// Totals holds the debit and credit sums for one currency.
type Totals struct {
	Debits  decimal.Decimal
	Credits decimal.Decimal
}

// Net returns debits minus credits.
func (t Totals) Net() decimal.Decimal {
	return t.Debits.Sub(t.Credits)
}

// SumByDirection groups entry amounts by currency and direction.
// Entries must carry CurrencyCode.
func SumByDirection(entries []domain.Entry) map[string]Totals {
	sums := make(map[string]Totals)
	for _, e := range entries {
		t := sums[e.CurrencyCode]
		switch e.Direction {
		case domain.Debit:
			t.Debits = t.Debits.Add(e.Amount)
		case domain.Credit:
			t.Credits = t.Credits.Add(e.Amount)
		}
		sums[e.CurrencyCode] = t
	}
	return sums
}

// CheckBalanced verifies that, per currency, debits equal credits.
// The returned error names every offending currency in sorted order.
func CheckBalanced(entries []domain.Entry) error {
	sums := SumByDirection(entries)
	currencies := make([]string, 0, len(sums))
	for c := range sums {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	var problems []string
	for _, c := range currencies {
		t := sums[c]
		if !t.Debits.Equal(t.Credits) {
			problems = append(problems, fmt.Sprintf("%s debits %s != credits %s", c, t.Debits.StringFixed(domain.AmountScale), t.Credits.StringFixed(domain.AmountScale)))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// ReversalOf builds the compensating leg for a posted entry: same account
// and amount, opposite direction, pointing back at the original.
func ReversalOf(original domain.Entry, entryID, transactionID, description string) domain.Entry {
	reverses := original.EntryID
	return domain.Entry{
		EntryID:         entryID,
		TransactionID:   transactionID,
		AccountID:       original.AccountID,
		Amount:          original.Amount,
		Direction:       original.Direction.Opposite(),
		Description:     description,
		ReversesEntryID: &reverses,
		CurrencyCode:    original.CurrencyCode,
	}
}

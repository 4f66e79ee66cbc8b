package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction indicates whether an entry is a debit or a credit.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// ParseDirection accepts any casing of "debit" or "credit".
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Debit:
		return Debit, nil
	case Credit:
		return Credit, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

func (d Direction) Valid() bool {
	return d == Debit || d == Credit
}

// Opposite returns the direction that cancels d.
func (d Direction) Opposite() Direction {
	if d == Debit {
		return Credit
	}
	return Debit
}

// AmountScale is the number of fractional digits an amount may carry.
const AmountScale = 4

// MaxEntryDescriptionLength bounds Entry.Description.
const MaxEntryDescriptionLength = 500

// Entry is one leg of a transaction against one account.
// Amount is always strictly positive; Direction carries the sign.
type Entry struct {
	EntryID         string          `json:"entryID"`
	TransactionID   string          `json:"transactionID"`
	AccountID       string          `json:"accountID"`
	Amount          decimal.Decimal `json:"amount"`
	Direction       Direction       `json:"direction"`
	Description     string          `json:"description,omitempty"`
	EffectiveAt     time.Time       `json:"effectiveAt"`
	RecordedAt      time.Time       `json:"recordedAt"`
	ReversesEntryID *string         `json:"reversesEntryID,omitempty"`
	Metadata        Metadata        `json:"metadata,omitempty"`

	// CurrencyCode is the account currency, filled on reads that join accounts.
	CurrencyCode string `json:"currencyCode,omitempty"`
}

// SignedAmount returns +Amount for debits and -Amount for credits.
func (e Entry) SignedAmount() decimal.Decimal {
	if e.Direction == Credit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// MaxIntegerDigits is the number of digits an amount may carry before the
// decimal point: NUMERIC(19,4) leaves 15.
const MaxIntegerDigits = 15

// amountLimit is the smallest amount that no longer fits.
var amountLimit = decimal.New(1, MaxIntegerDigits)

// ValidateAmount checks the amount is strictly positive and fits NUMERIC(19,4).
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be strictly positive, got %s", amount.String())
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return fmt.Errorf("amount %s has more than %d decimal places", amount.String(), AmountScale)
	}
	if amount.GreaterThanOrEqual(amountLimit) {
		return fmt.Errorf("amount %s has more than %d integer digits", amount.String(), MaxIntegerDigits)
	}
	return nil
}

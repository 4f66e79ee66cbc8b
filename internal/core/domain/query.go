package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceQuery restricts a balance computation.
//
// AsOf filters on business time (entry effective_at). RecordedAsOf filters on
// system time: only entries recorded and posted at or before it count.
type BalanceQuery struct {
	AsOf         *time.Time
	RecordedAsOf *time.Time
}

// HistoryQuery selects posted entries of one account over an effective-time window.
type HistoryQuery struct {
	Start     *time.Time
	End       *time.Time
	Limit     int
	NextToken string
}

// HistoryPage is one page of account history.
type HistoryPage struct {
	Entries   []Entry `json:"entries"`
	NextToken *string `json:"nextToken,omitempty"`
}

// AccountBalance is the result of a balance computation.
type AccountBalance struct {
	AccountID    string          `json:"accountID"`
	CurrencyCode string          `json:"currencyCode"`
	Balance      decimal.Decimal `json:"balance"`
	AsOf         *time.Time      `json:"asOf,omitempty"`
	RecordedAsOf *time.Time      `json:"recordedAsOf,omitempty"`
}

package main

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the latest market snapshot for one symbol. Open, High, Low and
// PreviousClose are nil when the upstream did not report them.
type Quote struct {
	Symbol        string           `json:"symbol"`
	Price         decimal.Decimal  `json:"price"`
	Change        decimal.Decimal  `json:"change"`
	ChangePercent decimal.Decimal  `json:"changePercent"`
	Volume        decimal.Decimal  `json:"volume"`
	Open          *decimal.Decimal `json:"open,omitempty"`
	High          *decimal.Decimal `json:"high,omitempty"`
	Low           *decimal.Decimal `json:"low,omitempty"`
	PreviousClose *decimal.Decimal `json:"previousClose,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// Bar is one upstream OHLCV aggregate.
type Bar struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

type SearchMatch struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Region   string `json:"region"`
	Timezone string `json:"timezone,omitempty"`
	Currency string `json:"currency"`
}

// StockDataProvider is the market data source. "No data" is a nil quote or an
// empty slice with a nil error; errors are reserved for transport and upstream
// failures and wrap ErrProviderFailure.
type StockDataProvider interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]Bar, error)
	Search(ctx context.Context, query string, limit int) ([]SearchMatch, error)
}

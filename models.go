package main

import (
	"time"

	"github.com/shopspring/decimal"
)

// API request and response bodies. Persistent models live in gorm_models.go.

type AddStockRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Name   string `json:"name,omitempty"`
	Sector string `json:"sector,omitempty"`
}

type SyncResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	BarsStored int    `json:"barsStored"`
	LatestDate string `json:"latestDate,omitempty"`
}

type StockSearchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Sector   string `json:"sector,omitempty"`
	Region   string `json:"region,omitempty"`
	Currency string `json:"currency,omitempty"`
	// Source is "catalog", "database" or "provider".
	Source string `json:"source"`
}

type StockSummary struct {
	Stock      *Stock          `json:"stock"`
	MarketOpen bool            `json:"marketOpen"`
	DailyData  []HistoricalBar `json:"dailyData"`
	Stats      *BarStats       `json:"stats,omitempty"`
}

type PortfolioRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsDefault   *bool   `json:"isDefault"`
}

func (r PortfolioRequest) input() PortfolioInput {
	return PortfolioInput{Name: r.Name, Description: r.Description, IsDefault: r.IsDefault}
}

type AddItemRequest struct {
	Symbol          string          `json:"symbol"`
	Quantity        int64           `json:"quantity"`
	AverageBuyPrice decimal.Decimal `json:"averageBuyPrice"`
}

type UpdateItemRequest struct {
	Quantity        *int64           `json:"quantity"`
	AverageBuyPrice *decimal.Decimal `json:"averageBuyPrice"`
}

type TransactionRequest struct {
	PortfolioID     uint             `json:"portfolioId"`
	Symbol          string           `json:"symbol"`
	Type            string           `json:"type"`
	Quantity        int64            `json:"quantity"`
	Price           decimal.Decimal  `json:"price"`
	Fee             *decimal.Decimal `json:"fee"`
	TransactionDate *time.Time       `json:"transactionDate"`
	Notes           string           `json:"notes"`
}

func (r TransactionRequest) input() TransactionInput {
	return TransactionInput{
		PortfolioID:     r.PortfolioID,
		Symbol:          r.Symbol,
		Type:            r.Type,
		Quantity:        r.Quantity,
		Price:           r.Price,
		Fee:             r.Fee,
		TransactionDate: r.TransactionDate,
		Notes:           r.Notes,
	}
}

type WatchlistRequest struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
}

type WatchlistItemRequest struct {
	Symbol             string           `json:"symbol"`
	AlertAbovePrice    *decimal.Decimal `json:"alertAbovePrice"`
	AlertBelowPrice    *decimal.Decimal `json:"alertBelowPrice"`
	AlertPercentChange *decimal.Decimal `json:"alertPercentChange"`
	Notes              *string          `json:"notes"`
	Position           *int             `json:"position"`
	ClearAlerts        bool             `json:"clearAlerts"`
}

func (r WatchlistItemRequest) input() WatchlistItemInput {
	return WatchlistItemInput{
		Symbol:             r.Symbol,
		AlertAbovePrice:    r.AlertAbovePrice,
		AlertBelowPrice:    r.AlertBelowPrice,
		AlertPercentChange: r.AlertPercentChange,
		Notes:              r.Notes,
		Position:           r.Position,
		ClearAlerts:        r.ClearAlerts,
	}
}

// TriggeredAlert is a watchlist item whose thresholds are currently crossed.
type TriggeredAlert struct {
	Item   WatchlistItem `json:"item"`
	Reason string        `json:"reason"`
}

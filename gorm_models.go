package main

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// GORM models for the database

const (
	TransactionTypeBuy  = "buy"
	TransactionTypeSell = "sell"
)

const (
	NotificationTypePriceAlert  = "price_alert"
	NotificationTypeSystem      = "system"
	NotificationTypeNews        = "news"
	NotificationTypeTransaction = "transaction"
)

const defaultInterval = "1d"

// Stock is shared by holdings, watchlists, transactions and bars. Only the price refresh job writes its live fields.
type Stock struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	Symbol           string           `gorm:"size:10;uniqueIndex;not null" json:"symbol"`
	Name             string           `gorm:"size:100;not null" json:"name"`
	Sector           string           `gorm:"size:100" json:"sector,omitempty"`
	Description      string           `gorm:"type:text" json:"description,omitempty"`
	CurrentPrice     decimal.Decimal  `gorm:"type:decimal(14,4);not null;default:0" json:"currentPrice"`
	PreviousClose    decimal.Decimal  `gorm:"type:decimal(14,4);not null;default:0" json:"previousClose"`
	OpenPrice        decimal.Decimal  `gorm:"type:decimal(14,4);not null;default:0" json:"openPrice"`
	HighPrice        decimal.Decimal  `gorm:"type:decimal(14,4);not null;default:0" json:"highPrice"`
	LowPrice         decimal.Decimal  `gorm:"type:decimal(14,4);not null;default:0" json:"lowPrice"`
	DayChange        decimal.Decimal  `gorm:"type:decimal(14,4);not null;default:0" json:"dayChange"`
	DayChangePercent decimal.Decimal  `gorm:"type:decimal(10,4);not null;default:0" json:"dayChangePercent"`
	Volume           decimal.Decimal  `gorm:"type:decimal(20,2);not null;default:0" json:"volume"`
	MarketCap        decimal.Decimal  `gorm:"type:decimal(20,2);not null;default:0" json:"marketCap"`
	PERatio          *decimal.Decimal `gorm:"column:pe_ratio;type:decimal(10,4)" json:"peRatio,omitempty"`
	DividendYield    *decimal.Decimal `gorm:"type:decimal(10,4)" json:"dividendYield,omitempty"`
	IsActive         bool             `gorm:"not null" json:"isActive"`
	LastUpdated      time.Time        `gorm:"not null" json:"lastUpdated"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for Stock
func (Stock) TableName() string {
	return "stocks"
}

// HistoricalBar is one OHLCV aggregate per (stock, date, interval).
type HistoricalBar struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	StockID       uint             `gorm:"index:idx_bar_stock_date;not null" json:"stockId"`
	Stock         *Stock           `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	Date          time.Time        `gorm:"index:idx_bar_stock_date;not null" json:"date"`
	Interval      string           `gorm:"size:10;not null;default:1d" json:"interval"`
	Open          decimal.Decimal  `gorm:"type:decimal(14,4);not null" json:"open"`
	High          decimal.Decimal  `gorm:"type:decimal(14,4);not null" json:"high"`
	Low           decimal.Decimal  `gorm:"type:decimal(14,4);not null" json:"low"`
	Close         decimal.Decimal  `gorm:"type:decimal(14,4);not null" json:"close"`
	Volume        decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"volume"`
	AdjustedClose *decimal.Decimal `gorm:"type:decimal(14,4)" json:"adjustedClose,omitempty"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for HistoricalBar
func (HistoricalBar) TableName() string {
	return "stock_historical_data"
}

// Portfolio totals are derived; callers never set them directly.
type Portfolio struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	UserID             uint            `gorm:"index;not null" json:"userId"`
	Name               string          `gorm:"size:100;not null" json:"name"`
	Description        string          `gorm:"type:text" json:"description,omitempty"`
	IsDefault          bool            `gorm:"not null;default:false" json:"isDefault"`
	TotalValue         decimal.Decimal `gorm:"type:decimal(16,2);not null;default:0" json:"totalValue"`
	TotalCost          decimal.Decimal `gorm:"type:decimal(16,2);not null;default:0" json:"totalCost"`
	PerformancePercent decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"performancePercent"`
	Items              []PortfolioItem `json:"items,omitempty"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for Portfolio
func (Portfolio) TableName() string {
	return "portfolios"
}

type PortfolioItem struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	PortfolioID        uint            `gorm:"uniqueIndex:idx_portfolio_item_stock;not null" json:"portfolioId"`
	StockID            uint            `gorm:"uniqueIndex:idx_portfolio_item_stock;not null" json:"stockId"`
	Stock              *Stock          `json:"stock,omitempty"`
	Quantity           int64           `gorm:"not null" json:"quantity"`
	AverageBuyPrice    decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"averageBuyPrice"`
	CostBasis          decimal.Decimal `gorm:"type:decimal(30,10);not null;default:0" json:"-"`
	TotalCost          decimal.Decimal `gorm:"type:decimal(16,2);not null;default:0" json:"totalCost"`
	CurrentValue       decimal.Decimal `gorm:"type:decimal(16,2);not null;default:0" json:"currentValue"`
	PerformancePercent decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"performancePercent"`
	LastUpdated        *time.Time      `json:"lastUpdated,omitempty"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for PortfolioItem
func (PortfolioItem) TableName() string {
	return "portfolio_items"
}

// Transaction is immutable after creation apart from IsProcessed.
type Transaction struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	UserID          uint             `gorm:"index;not null" json:"userId"`
	PortfolioID     uint             `gorm:"index;not null" json:"portfolioId"`
	StockID         uint             `gorm:"index;not null" json:"stockId"`
	Stock           *Stock           `json:"stock,omitempty"`
	Type            string           `gorm:"size:10;not null" json:"type"`
	Quantity        int64            `gorm:"not null" json:"quantity"`
	Price           decimal.Decimal  `gorm:"type:decimal(14,4);not null" json:"price"`
	Fee             *decimal.Decimal `gorm:"type:decimal(14,4)" json:"fee,omitempty"`
	TotalAmount     decimal.Decimal  `gorm:"type:decimal(16,2);not null" json:"totalAmount"`
	TransactionDate time.Time        `gorm:"index;not null" json:"transactionDate"`
	Notes           string           `gorm:"type:text" json:"notes,omitempty"`
	IsProcessed     bool             `gorm:"not null;default:false" json:"isProcessed"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName specifies the table name for Transaction
func (Transaction) TableName() string {
	return "transactions"
}

// Notification keeps IsRead and ReadAt consistent: ReadAt is set iff IsRead.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"index;not null" json:"userId"`
	StockID   *uint             `json:"stockId,omitempty"`
	Type      string            `gorm:"size:50;not null" json:"type"`
	Title     string            `gorm:"size:255;not null" json:"title"`
	Message   string            `gorm:"type:text" json:"message,omitempty"`
	Data      datatypes.JSONMap `json:"data,omitempty"`
	IsRead    bool              `gorm:"index;not null;default:false" json:"isRead"`
	ReadAt    *time.Time        `json:"readAt,omitempty"`
	CreatedAt time.Time         `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName specifies the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}

type Watchlist struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"index;not null" json:"userId"`
	Name      string          `gorm:"size:100;not null" json:"name"`
	IsDefault bool            `gorm:"not null;default:false" json:"isDefault"`
	Items     []WatchlistItem `json:"items,omitempty"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for Watchlist
func (Watchlist) TableName() string {
	return "watchlists"
}

type WatchlistItem struct {
	ID                 uint             `gorm:"primaryKey" json:"id"`
	WatchlistID        uint             `gorm:"uniqueIndex:idx_watchlist_item_stock;not null" json:"watchlistId"`
	StockID            uint             `gorm:"uniqueIndex:idx_watchlist_item_stock;not null" json:"stockId"`
	Stock              *Stock           `json:"stock,omitempty"`
	AddedAt            time.Time        `gorm:"autoCreateTime" json:"addedAt"`
	AlertAbovePrice    *decimal.Decimal `gorm:"type:decimal(14,4)" json:"alertAbovePrice,omitempty"`
	AlertBelowPrice    *decimal.Decimal `gorm:"type:decimal(14,4)" json:"alertBelowPrice,omitempty"`
	AlertPercentChange *decimal.Decimal `gorm:"type:decimal(7,4)" json:"alertPercentChange,omitempty"`
	Notes              string           `gorm:"type:text" json:"notes,omitempty"`
	Position           int              `gorm:"not null;default:0" json:"position"`
	LastAlertAt        *time.Time       `json:"lastAlertAt,omitempty"`
}

// TableName specifies the table name for WatchlistItem
func (WatchlistItem) TableName() string {
	return "watchlist_items"
}

// Get all model types for auto migration
var allModels = []interface{}{
	&Stock{},
	&HistoricalBar{},
	&Portfolio{},
	&PortfolioItem{},
	&Transaction{},
	&Notification{},
	&Watchlist{},
	&WatchlistItem{},
}

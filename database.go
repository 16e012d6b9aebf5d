package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection turns lock contention into
	// ordinary queueing. Code inside WithTx must only use the tx handle.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// Auto migrate tables
	if err := db.AutoMigrate(allModels...); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	database := &Database{db: db}

	// Create additional indexes that are not covered by GORM tags
	if err := database.createAdditionalIndexes(); err != nil {
		return nil, fmt.Errorf("failed to create additional indexes: %w", err)
	}

	return database, nil
}

// createAdditionalIndexes creates indexes that are not easily covered by GORM tags
func (d *Database) createAdditionalIndexes() error {
	// At most one bar per (stock, date, interval)
	if err := d.db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_bar_stock_date_interval_unique ON stock_historical_data(stock_id, date, interval)").Error; err != nil {
		return fmt.Errorf("failed to create unique index: %w", err)
	}
	return nil
}

// WithTx runs fn inside one database transaction. Any error or panic rolls everything back.
func (d *Database) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.db.WithContext(ctx).Transaction(fn)
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Stock operations

func (d *Database) FindStockBySymbol(ctx context.Context, symbol string) (*Stock, error) {
	return findStockBySymbol(d.db.WithContext(ctx), symbol)
}

func findStockBySymbol(tx *gorm.DB, symbol string) (*Stock, error) {
	var stock Stock
	err := tx.Where("symbol = ?", strings.ToUpper(strings.TrimSpace(symbol))).First(&stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("stock", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query stock %s: %w", symbol, err)
	}
	return &stock, nil
}

func (d *Database) FindStocksBySymbols(ctx context.Context, symbols []string) ([]Stock, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	upper := make([]string, 0, len(symbols))
	for _, s := range symbols {
		upper = append(upper, strings.ToUpper(strings.TrimSpace(s)))
	}

	var stocks []Stock
	result := d.db.WithContext(ctx).Where("symbol IN ?", upper).Order("symbol ASC").Find(&stocks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", result.Error)
	}
	return stocks, nil
}

func (d *Database) AllStocks(ctx context.Context) ([]Stock, error) {
	var stocks []Stock
	result := d.db.WithContext(ctx).Order("symbol ASC").Find(&stocks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", result.Error)
	}
	return stocks, nil
}

func (d *Database) ActiveStocks(ctx context.Context) ([]Stock, error) {
	var stocks []Stock
	result := d.db.WithContext(ctx).Where("is_active = ?", true).Order("symbol ASC").Find(&stocks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query active stocks: %w", result.Error)
	}
	return stocks, nil
}

func (d *Database) SearchStocks(ctx context.Context, query string, limit int) ([]Stock, error) {
	if limit <= 0 {
		limit = 10
	}
	like := "%" + strings.TrimSpace(query) + "%"

	var stocks []Stock
	result := d.db.WithContext(ctx).
		Where("symbol LIKE ? OR name LIKE ?", like, like).
		Order("symbol ASC").
		Limit(limit).
		Find(&stocks)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to search stocks: %w", result.Error)
	}
	return stocks, nil
}

// CreateStockIfMissing inserts a stock row unless the symbol already exists. It reports whether a row was added.
func (d *Database) CreateStockIfMissing(ctx context.Context, stock *Stock) (bool, error) {
	stock.Symbol = strings.ToUpper(strings.TrimSpace(stock.Symbol))
	result := d.db.WithContext(ctx).Where("symbol = ?", stock.Symbol).FirstOrCreate(stock)
	if result.Error != nil {
		return false, fmt.Errorf("failed to add stock %s: %w", stock.Symbol, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (d *Database) SetStockActive(ctx context.Context, symbol string, active bool) error {
	result := d.db.WithContext(ctx).Model(&Stock{}).
		Where("symbol = ?", strings.ToUpper(symbol)).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update stock %s: %w", symbol, result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("stock", symbol)
	}
	return nil
}

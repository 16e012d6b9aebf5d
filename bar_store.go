package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BarInput is one observation for a bar. Close and Volume are always taken as the
// latest values; Open/High/Low are optional and fall back to Close on first write.
type BarInput struct {
	Open          *decimal.Decimal
	High          *decimal.Decimal
	Low           *decimal.Decimal
	Close         decimal.Decimal
	Volume        decimal.Decimal
	AdjustedClose *decimal.Decimal
	Interval      string
}

func orDefault(v *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if v == nil {
		return fallback
	}
	return *v
}

// UpsertBar writes today's observation for a stock into its (date, interval) bar.
//
// A new bar takes open/high/low from the input, or the close when absent. An
// existing bar keeps its open, widens high and low to include the close, and takes
// the new close and volume. With force the existing bar is overwritten as if new.
func UpsertBar(tx *gorm.DB, stockID uint, date time.Time, in BarInput, force bool) (*HistoricalBar, error) {
	interval := in.Interval
	if interval == "" {
		interval = defaultInterval
	}
	day := barDate(date, interval)
	price := roundPrice(in.Close)
	volume := roundAmount(in.Volume)

	var bar HistoricalBar
	err := tx.Where("stock_id = ? AND date = ? AND interval = ?", stockID, day, interval).First(&bar).Error
	exists := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load bar for stock %d on %s: %w", stockID, day.Format("2006-01-02"), err)
	}

	if !exists || force {
		bar.StockID = stockID
		bar.Date = day
		bar.Interval = interval
		bar.Open = roundPrice(orDefault(in.Open, price))
		bar.High = roundPrice(orDefault(in.High, price))
		bar.Low = roundPrice(orDefault(in.Low, price))
		bar.Close = price
		bar.Volume = volume
		bar.AdjustedClose = nil
		if in.AdjustedClose != nil {
			adj := roundPrice(*in.AdjustedClose)
			bar.AdjustedClose = &adj
		}
	} else {
		if price.GreaterThan(bar.High) {
			bar.High = price
		}
		if price.LessThan(bar.Low) {
			bar.Low = price
		}
		bar.Close = price
		bar.Volume = volume
	}

	if err := tx.Omit("Stock").Save(&bar).Error; err != nil {
		return nil, fmt.Errorf("failed to save bar for stock %d on %s: %w", stockID, day.Format("2006-01-02"), err)
	}
	return &bar, nil
}

// barDate keys daily and longer bars by calendar day and intraday bars by minute.
func barDate(t time.Time, interval string) time.Time {
	if strings.HasSuffix(interval, "min") {
		return t.UTC().Truncate(time.Minute)
	}
	return normalizeDate(t)
}

// Bar queries

// BarsInRange returns the bars whose calendar day lies in [start, end], oldest first.
func (d *Database) BarsInRange(ctx context.Context, stockID uint, start, end time.Time, interval string) ([]HistoricalBar, error) {
	if interval == "" {
		interval = defaultInterval
	}
	var bars []HistoricalBar
	result := d.db.WithContext(ctx).
		Where("stock_id = ? AND interval = ? AND date >= ? AND date < ?",
			stockID, interval, normalizeDate(start), normalizeDate(end).AddDate(0, 0, 1)).
		Order("date ASC").
		Find(&bars)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query bars: %w", result.Error)
	}
	return bars, nil
}

// LatestBar returns nil without error when the stock has no bars yet.
func (d *Database) LatestBar(ctx context.Context, stockID uint, interval string) (*HistoricalBar, error) {
	bars, err := d.LatestBars(ctx, stockID, interval, 1)
	if err != nil || len(bars) == 0 {
		return nil, err
	}
	return &bars[0], nil
}

// LatestBars returns up to n most recent bars, oldest first.
func (d *Database) LatestBars(ctx context.Context, stockID uint, interval string, n int) ([]HistoricalBar, error) {
	if interval == "" {
		interval = defaultInterval
	}
	var bars []HistoricalBar
	result := d.db.WithContext(ctx).
		Where("stock_id = ? AND interval = ?", stockID, interval).
		Order("date DESC").
		Limit(n).
		Find(&bars)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query latest bars: %w", result.Error)
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

func (d *Database) BarCount(ctx context.Context, stockID uint) (int64, error) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&HistoricalBar{}).Where("stock_id = ?", stockID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count bars: %w", err)
	}
	return count, nil
}

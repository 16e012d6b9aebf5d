package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// HistoryCollector fills the bar store from the provider's history endpoint.
type HistoryCollector struct {
	db       *Database
	provider StockDataProvider
	clock    *MarketClock
	log      zerolog.Logger
}

func NewHistoryCollector(db *Database, provider StockDataProvider, clock *MarketClock, log zerolog.Logger) *HistoryCollector {
	return &HistoryCollector{
		db:       db,
		provider: provider,
		clock:    clock,
		log:      log.With().Str("component", "backfill").Logger(),
	}
}

// BackfillHistory fetches bars for [start, end] and force-writes each one, all in
// one database transaction. It returns the number of bars written.
func (h *HistoryCollector) BackfillHistory(ctx context.Context, stock *Stock, start, end time.Time, interval string) (int, error) {
	if interval == "" {
		interval = defaultInterval
	}
	if err := checkInterval(interval); err != nil {
		return 0, err
	}
	if end.Before(start) {
		v := &ValidationError{}
		v.add("end", "must not be before start")
		return 0, v
	}

	h.log.Info().
		Str("symbol", stock.Symbol).
		Str("start", start.Format("2006-01-02")).
		Str("end", end.Format("2006-01-02")).
		Str("interval", interval).
		Msg("starting history backfill")

	bars, err := h.provider.GetHistory(ctx, stock.Symbol, start, end, interval)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch history for %s: %w", stock.Symbol, err)
	}
	if len(bars) == 0 {
		h.log.Info().Str("symbol", stock.Symbol).Msg("no history returned")
		return 0, nil
	}

	err = h.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, b := range bars {
			open, high, low := b.Open, b.High, b.Low
			_, err := UpsertBar(tx, stock.ID, b.Date, BarInput{
				Open:     &open,
				High:     &high,
				Low:      &low,
				Close:    b.Close,
				Volume:   b.Volume,
				Interval: interval,
			}, true)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	h.log.Info().Str("symbol", stock.Symbol).Int("bars", len(bars)).Msg("history backfill completed")
	return len(bars), nil
}

// SyncHistory backfills daily bars incrementally: days back from today when the
// stock has no bars, otherwise from the latest stored bar, which is re-fetched in
// case it was written mid-session.
func (h *HistoryCollector) SyncHistory(ctx context.Context, stock *Stock, days int) (int, error) {
	if days <= 0 {
		days = 30
	}
	end := h.clock.Today()
	start := end.AddDate(0, 0, -days)

	latest, err := h.db.LatestBar(ctx, stock.ID, defaultInterval)
	if err != nil {
		return 0, err
	}
	if latest != nil {
		h.log.Info().
			Str("symbol", stock.Symbol).
			Str("latest", latest.Date.Format("2006-01-02")).
			Msg("found existing bars, fetching from latest")
		start = normalizeDate(latest.Date)
	}

	return h.BackfillHistory(ctx, stock, start, end, defaultInterval)
}

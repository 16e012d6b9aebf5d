package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const defaultRefreshBatchSize = 10

type RefreshOptions struct {
	BatchSize       int
	Delay           time.Duration
	ForceHistorical bool
}

// RefreshSummary counts what a run achieved. Updated only counts stocks whose
// batch committed.
type RefreshSummary struct {
	Updated         int           `json:"updated"`
	Errors          int           `json:"errors"`
	Batches         int           `json:"batches"`
	Failed          []string      `json:"failed,omitempty"`
	UpdatedStockIDs []uint        `json:"-"`
	Duration        time.Duration `json:"duration"`
}

// PriceRefresher pulls quotes for a stock universe and writes them back in batches.
type PriceRefresher struct {
	db        *Database
	provider  StockDataProvider
	publisher Publisher
	clock     *MarketClock
	log       zerolog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

func NewPriceRefresher(db *Database, provider StockDataProvider, publisher Publisher, clock *MarketClock, log zerolog.Logger) *PriceRefresher {
	return &PriceRefresher{
		db:        db,
		provider:  provider,
		publisher: publisher,
		clock:     clock,
		log:       log.With().Str("component", "price_refresh").Logger(),
		sleep:     sleepContext,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type quotedStock struct {
	stock Stock
	quote *Quote
}

// applyQuote overwrites the live fields of a stock. Optional quote fields only
// replace stored values when present.
func applyQuote(stock *Stock, q *Quote, now time.Time) {
	stock.CurrentPrice = roundPrice(q.Price)
	stock.DayChange = roundPrice(q.Change)
	stock.DayChangePercent = roundPercent(q.ChangePercent)
	stock.Volume = roundAmount(q.Volume)
	stock.LastUpdated = now
	if q.Open != nil {
		stock.OpenPrice = roundPrice(*q.Open)
	}
	if q.High != nil {
		stock.HighPrice = roundPrice(*q.High)
	}
	if q.Low != nil {
		stock.LowPrice = roundPrice(*q.Low)
	}
	if q.PreviousClose != nil {
		stock.PreviousClose = roundPrice(*q.PreviousClose)
	}
}

func liveFields(s *Stock) map[string]interface{} {
	return map[string]interface{}{
		"current_price":      s.CurrentPrice,
		"day_change":         s.DayChange,
		"day_change_percent": s.DayChangePercent,
		"volume":             s.Volume,
		"open_price":         s.OpenPrice,
		"high_price":         s.HighPrice,
		"low_price":          s.LowPrice,
		"previous_close":     s.PreviousClose,
		"last_updated":       s.LastUpdated,
	}
}

// RefreshPrices processes stocks in batches. A stock whose quote fails is
// counted and left untouched. Each batch commits in one database transaction
// and only then publishes one stock/{symbol} event per updated stock. A commit
// failure aborts the run with a *CommitError; earlier batches stay committed.
// The delay is slept between batches, never after the last one.
func (r *PriceRefresher) RefreshPrices(ctx context.Context, stocks []Stock, opts RefreshOptions) (RefreshSummary, error) {
	start := time.Now()
	summary := RefreshSummary{}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultRefreshBatchSize
	}

	r.log.Info().Int("stocks", len(stocks)).Int("batch_size", batchSize).Msg("starting price refresh")

	for offset := 0; offset < len(stocks); offset += batchSize {
		if err := ctx.Err(); err != nil {
			return r.finish(summary, start), err
		}

		end := offset + batchSize
		if end > len(stocks) {
			end = len(stocks)
		}
		summary.Batches++

		quoted := r.fetchBatch(ctx, stocks[offset:end], &summary)

		if err := r.commitBatch(ctx, quoted, opts.ForceHistorical); err != nil {
			r.log.Error().Err(err).Int("batch", summary.Batches).Msg("batch commit failed, aborting run")
			return r.finish(summary, start), &CommitError{Batch: summary.Batches, Err: err}
		}

		for i := range quoted {
			summary.Updated++
			summary.UpdatedStockIDs = append(summary.UpdatedStockIDs, quoted[i].stock.ID)
		}
		r.publishBatch(ctx, quoted)

		if end < len(stocks) && opts.Delay > 0 {
			if err := r.sleep(ctx, opts.Delay); err != nil {
				return r.finish(summary, start), err
			}
		}
	}

	summary = r.finish(summary, start)
	r.log.Info().
		Int("updated", summary.Updated).
		Int("errors", summary.Errors).
		Int("batches", summary.Batches).
		Dur("duration", summary.Duration).
		Msg("price refresh completed")
	return summary, nil
}

func (r *PriceRefresher) finish(summary RefreshSummary, start time.Time) RefreshSummary {
	summary.Duration = time.Since(start)
	return summary
}

func (r *PriceRefresher) fetchBatch(ctx context.Context, batch []Stock, summary *RefreshSummary) []quotedStock {
	now := r.now()
	quoted := make([]quotedStock, 0, len(batch))
	for _, stock := range batch {
		q, err := r.provider.GetQuote(ctx, stock.Symbol)
		if err != nil || q == nil {
			summary.Errors++
			summary.Failed = append(summary.Failed, stock.Symbol)
			event := r.log.Warn().Str("symbol", stock.Symbol)
			if err != nil {
				event = event.Err(err)
			}
			event.Msg("no quote, stock left unchanged")
			continue
		}

		updated := stock
		applyQuote(&updated, q, now)
		quoted = append(quoted, quotedStock{stock: updated, quote: q})
	}
	return quoted
}

func (r *PriceRefresher) commitBatch(ctx context.Context, quoted []quotedStock, force bool) error {
	if len(quoted) == 0 {
		return nil
	}
	today := r.clock.TradingDate(r.now())

	return r.db.WithTx(ctx, func(tx *gorm.DB) error {
		for i := range quoted {
			s := &quoted[i].stock
			if err := tx.Model(&Stock{}).Where("id = ?", s.ID).Updates(liveFields(s)).Error; err != nil {
				return fmt.Errorf("failed to update stock %s: %w", s.Symbol, err)
			}
			q := quoted[i].quote
			_, err := UpsertBar(tx, s.ID, today, BarInput{
				Open:   q.Open,
				High:   q.High,
				Low:    q.Low,
				Close:  s.CurrentPrice,
				Volume: s.Volume,
			}, force)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PriceRefresher) publishBatch(ctx context.Context, quoted []quotedStock) {
	if r.publisher == nil {
		return
	}
	for i := range quoted {
		s := &quoted[i].stock
		payload, err := json.Marshal(s)
		if err != nil {
			r.log.Warn().Err(err).Str("symbol", s.Symbol).Msg("failed to encode stock update")
			continue
		}
		if err := r.publisher.Publish(ctx, StockTopic(s.Symbol), string(payload)); err != nil {
			r.log.Warn().Err(err).Str("symbol", s.Symbol).Msg("failed to publish stock update")
		}
	}
}

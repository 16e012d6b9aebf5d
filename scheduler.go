package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const cachePurgeSpec = "@every 30m"

// cronLogger routes cron's own messages into zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Scheduler runs the price refresh pipeline on a cron schedule in the market's timezone
type Scheduler struct {
	db         *Database
	refresher  *PriceRefresher
	ledger     *Ledger
	watchlists *WatchlistService
	cache      *CachingProvider
	cfg        RefreshConfig
	cron       *cron.Cron
	running    sync.Mutex
	started    bool
	log        zerolog.Logger
}

// NewScheduler wires the pipeline; cache may be nil. Overlapping runs are skipped.
func NewScheduler(db *Database, refresher *PriceRefresher, ledger *Ledger, watchlists *WatchlistService, cache *CachingProvider, clock *MarketClock, cfg RefreshConfig, log zerolog.Logger) (*Scheduler, error) {
	log = log.With().Str("component", "scheduler").Logger()
	logger := cronLogger{log: log}

	c := cron.New(
		cron.WithLocation(clock.Location()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	s := &Scheduler{
		db:         db,
		refresher:  refresher,
		ledger:     ledger,
		watchlists: watchlists,
		cache:      cache,
		cfg:        cfg,
		cron:       c,
		log:        log,
	}

	if _, err := c.AddFunc(cfg.Cron, s.runScheduled); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", cfg.Cron, err)
	}
	if cache != nil {
		if _, err := c.AddFunc(cachePurgeSpec, func() {
			if n := cache.Purge(); n > 0 {
				s.log.Debug().Int("entries", n).Msg("purged expired quote cache entries")
			}
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.started = true
	s.cron.Start()
	s.log.Info().Str("schedule", s.cfg.Cron).Msg("scheduler started")
}

func (s *Scheduler) runScheduled() {
	s.log.Info().Msg("starting scheduled price refresh")
	if _, err := s.RunOnce(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("scheduled price refresh failed")
	}
}

// RunOnce refreshes every active stock, revalues the holdings of the updated
// stocks and evaluates watchlist alerts. A failed commit stops the pipeline after
// the refresh step; stocks from committed batches are still revalued. A call
// made while another run is in progress fails with ErrInvalidOperation.
func (s *Scheduler) RunOnce(ctx context.Context) (RefreshSummary, error) {
	if !s.running.TryLock() {
		return RefreshSummary{}, invalidOperation("price refresh already running")
	}
	defer s.running.Unlock()

	stocks, err := s.db.ActiveStocks(ctx)
	if err != nil {
		return RefreshSummary{}, err
	}
	if len(stocks) == 0 {
		s.log.Info().Msg("no active stocks to refresh")
		return RefreshSummary{}, nil
	}

	summary, refreshErr := s.refresher.RefreshPrices(ctx, stocks, RefreshOptions{
		BatchSize: s.cfg.BatchSize,
		Delay:     s.cfg.Delay,
	})

	if len(summary.UpdatedStockIDs) > 0 {
		items, err := s.ledger.RevalueHoldings(ctx, summary.UpdatedStockIDs)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to revalue holdings")
		} else {
			s.log.Info().Int("portfolios", items).Msg("holdings revalued")
		}
	}
	if refreshErr != nil {
		return summary, refreshErr
	}

	if s.watchlists != nil {
		if _, err := s.watchlists.EvaluateAlerts(ctx); err != nil {
			s.log.Error().Err(err).Msg("failed to evaluate watchlist alerts")
		}
	}
	return summary, nil
}

// Stop waits up to timeout for a running job to finish
func (s *Scheduler) Stop(timeout time.Duration) {
	if !s.started {
		return
	}
	s.log.Info().Msg("stopping scheduler")
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(timeout):
		s.log.Warn().Msg("scheduler job still running after timeout")
	}
	s.log.Info().Msg("scheduler stopped")
}

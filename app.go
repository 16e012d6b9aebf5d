package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// App holds the services shared by the web server and the CLI actions.
type App struct {
	cfg           *Config
	db            *Database
	clock         *MarketClock
	hub           *Hub
	publisher     Publisher
	provider      StockDataProvider
	cache         *CachingProvider
	catalog       *StockCatalog
	notifications *NotificationService
	ledger        *Ledger
	portfolios    *PortfolioService
	watchlists    *WatchlistService
	refresher     *PriceRefresher
	history       *HistoryCollector
	log           zerolog.Logger
}

func NewApp(cfg *Config, log zerolog.Logger) (*App, error) {
	db, err := NewDatabase(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	clock, err := NewMarketClock(cfg.Provider.MarketTimezone)
	if err != nil {
		db.Close()
		return nil, err
	}

	if cfg.Provider.APIKey == "" {
		log.Warn().Msg("ALPHAVANTAGE_API_KEY is not set, quote requests will be rejected")
	}
	provider := NewCachingProvider(NewAlphaVantageClient(cfg.Provider, log), clock)

	app := buildApp(cfg, db, clock, provider, log)

	catalog, err := LoadCatalog(cfg.CatalogPath, log)
	switch {
	case err == nil:
		app.catalog = catalog
		log.Info().Int("entries", catalog.Len()).Str("path", cfg.CatalogPath).Msg("stock catalog loaded")
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("path", cfg.CatalogPath).Msg("stock catalog not found, search falls back to the provider")
	default:
		db.Close()
		return nil, fmt.Errorf("failed to load stock catalog: %w", err)
	}
	return app, nil
}

// buildApp wires services around an open database and a provider.
func buildApp(cfg *Config, db *Database, clock *MarketClock, provider StockDataProvider, log zerolog.Logger) *App {
	hub := NewHub(log)
	var publisher Publisher = hub
	if cfg.Mercure.URL != "" {
		publisher = NewMultiPublisher(log, hub, NewMercurePublisher(cfg.Mercure))
	}

	notifications := NewNotificationService(db, publisher, log)
	ledger := NewLedger(db, notifications, publisher, cfg.Currency, log)

	app := &App{
		cfg:           cfg,
		db:            db,
		clock:         clock,
		hub:           hub,
		publisher:     publisher,
		provider:      provider,
		notifications: notifications,
		ledger:        ledger,
		portfolios:    NewPortfolioService(db, ledger, log),
		watchlists:    NewWatchlistService(db, notifications, clock, log),
		refresher:     NewPriceRefresher(db, provider, publisher, clock, log),
		history:       NewHistoryCollector(db, provider, clock, log),
		log:           log,
	}
	if cache, ok := provider.(*CachingProvider); ok {
		app.cache = cache
	}
	return app
}

func (a *App) NewScheduler() (*Scheduler, error) {
	return NewScheduler(a.db, a.refresher, a.ledger, a.watchlists, a.cache, a.clock, a.cfg.Refresh, a.log)
}

func (a *App) Close() error {
	return a.db.Close()
}

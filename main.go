package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	// Command line flags
	mode := flag.String("mode", "web", "Run mode: web, cli")
	symbol := flag.String("symbol", "AAPL", "Stock symbol for backfill and analyze")
	days := flag.Int("days", 30, "Number of days to fetch or analyze")
	dbPath := flag.String("db", cfg.DBPath, "Database file path")
	action := flag.String("action", "refresh", "Action: refresh, backfill, seed, analyze")
	port := flag.String("port", cfg.Port, "Web server port")
	scheduler := flag.Bool("scheduler", true, "Run the scheduled price refresh in web mode")
	flag.Parse()

	cfg.DBPath = *dbPath
	cfg.Port = *port

	log := NewLogger(LogConfig{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "web":
		runWebMode(ctx, cfg, *scheduler, log)
	case "cli":
		runCLIMode(ctx, cfg, strings.ToUpper(*symbol), *days, *action, log)
	default:
		log.Fatal().Str("mode", *mode).Msg("unknown mode, available modes: web, cli")
	}
}

func runWebMode(ctx context.Context, cfg *Config, enableScheduler bool, log zerolog.Logger) {
	log.Info().Str("db", cfg.DBPath).Str("port", cfg.Port).Msg("starting stock portfolio tracker")

	app, err := NewApp(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}

	server, err := NewWebServer(app, enableScheduler)
	if err != nil {
		app.Close()
		log.Fatal().Err(err).Msg("failed to initialize web server")
	}
	defer server.Close()

	if err := server.Run(ctx, ":"+cfg.Port); err != nil {
		log.Error().Err(err).Msg("web server stopped with error")
	}
}

func runCLIMode(ctx context.Context, cfg *Config, symbol string, days int, action string, log zerolog.Logger) {
	log.Info().Str("action", action).Str("symbol", symbol).Int("days", days).Str("db", cfg.DBPath).Msg("running cli action")

	app, err := NewApp(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer app.Close()

	start := time.Now()
	switch action {
	case "refresh":
		err = refreshAction(ctx, app, log)
	case "backfill":
		err = backfillAction(ctx, app, symbol, days, log)
	case "seed":
		err = seedAction(ctx, app)
	case "analyze":
		err = analyzeAction(ctx, app, symbol, days, log)
	default:
		log.Error().Str("action", action).Msg("unknown action, available actions: refresh, backfill, seed, analyze")
		app.Close()
		os.Exit(1)
	}
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("action failed")
		app.Close()
		os.Exit(1)
	}
	log.Info().Str("action", action).Dur("duration", time.Since(start)).Msg("action completed")
}

func refreshAction(ctx context.Context, app *App, log zerolog.Logger) error {
	scheduler, err := app.NewScheduler()
	if err != nil {
		return err
	}
	summary, err := scheduler.RunOnce(ctx)
	log.Info().
		Int("updated", summary.Updated).
		Int("errors", summary.Errors).
		Strs("failed", summary.Failed).
		Msg("refresh summary")
	return err
}

// backfillAction creates the stock when it is not tracked yet.
func backfillAction(ctx context.Context, app *App, symbol string, days int, log zerolog.Logger) error {
	if !isValidSymbol(symbol) {
		return &ValidationError{Fields: map[string]string{"symbol": "invalid stock symbol"}}
	}
	if _, err := app.db.CreateStockIfMissing(ctx, &Stock{Symbol: symbol, Name: symbol, IsActive: true}); err != nil {
		return err
	}
	stock, err := app.db.FindStockBySymbol(ctx, symbol)
	if err != nil {
		return err
	}

	stored, err := app.history.SyncHistory(ctx, stock, days)
	if err != nil {
		return err
	}
	count, _ := app.db.BarCount(ctx, stock.ID)
	log.Info().Str("symbol", symbol).Int("stored", stored).Int64("total_bars", count).Msg("backfill finished")
	return nil
}

func seedAction(ctx context.Context, app *App) error {
	if app.catalog == nil {
		return notFound("stock catalog", app.cfg.CatalogPath)
	}
	_, err := app.catalog.Seed(ctx, app.db)
	return err
}

func analyzeAction(ctx context.Context, app *App, symbol string, days int, log zerolog.Logger) error {
	stock, err := app.db.FindStockBySymbol(ctx, symbol)
	if err != nil {
		return err
	}
	bars, err := app.db.LatestBars(ctx, stock.ID, defaultInterval, days)
	if err != nil {
		return err
	}

	stats := AnalyzeBars(bars)
	if stats == nil {
		log.Warn().Str("symbol", symbol).Msg("no bars stored, run with -action=backfill first")
		return nil
	}

	log.Info().
		Str("symbol", symbol).
		Int("bars", stats.Count).
		Str("from", stats.From.Format("2006-01-02")).
		Str("to", stats.To.Format("2006-01-02")).
		Str("min_close", stats.MinClose.String()).
		Str("max_close", stats.MaxClose.String()).
		Str("change", stats.Change.String()).
		Str("change_percent", stats.ChangePercent.StringFixed(2)).
		Str("total_volume", stats.TotalVolume.String()).
		Str("average_volume", stats.AverageVolume.String()).
		Float64("mean_return", stats.MeanReturn).
		Float64("volatility", stats.ReturnVolatility).
		Msg("bar analysis")

	if stats.HighestVolume != nil {
		log.Info().
			Str("date", stats.HighestVolume.Date.Format("2006-01-02")).
			Str("volume", stats.HighestVolume.Volume.String()).
			Str("close", stats.HighestVolume.Close.String()).
			Msg("highest volume day")
	}
	if stats.LowestClose != nil {
		log.Info().
			Str("date", stats.LowestClose.Date.Format("2006-01-02")).
			Str("close", stats.LowestClose.Close.String()).
			Msg("lowest close")
	}
	return nil
}

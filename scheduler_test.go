package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		Currency: "USD",
		Refresh: RefreshConfig{
			BatchSize: 2,
			Cron:      "*/5 9-16 * * 1-5",
			Enabled:   true,
		},
		Provider: ProviderConfig{MarketTimezone: "America/New_York"},
	}
}

func newTestApp(t *testing.T) (*App, *fakeProvider) {
	t.Helper()
	provider := newFakeProvider()
	app := buildApp(testConfig(), newTestDatabase(t), newTestClock(t), provider, nopLogger())
	app.refresher.now = func() time.Time { return testNow }
	app.watchlists.now = func() time.Time { return testNow }
	return app, provider
}

func TestScheduler_RunOncePipeline(t *testing.T) {
	app, provider := newTestApp(t)
	ctx := context.Background()
	for _, s := range []string{"AAPL", "MSFT", "TSLA"} {
		createStock(t, app.db, s, "100")
	}
	provider.setQuote("AAPL", "150")
	provider.setQuote("MSFT", "90")
	provider.errs["TSLA"] = providerFailure("TSLA")

	portfolio, err := app.portfolios.CreatePortfolio(ctx, testUser, PortfolioInput{Name: strPtr("Main")})
	require.NoError(t, err)
	_, err = app.ledger.ApplyTransaction(ctx, testUser, TransactionInput{
		PortfolioID: portfolio.ID, Symbol: "AAPL", Type: TransactionTypeBuy, Quantity: 10, Price: dec("100"),
	})
	require.NoError(t, err)

	list, err := app.watchlists.CreateWatchlist(ctx, testUser, "Watch", false)
	require.NoError(t, err)
	_, err = app.watchlists.AddItem(ctx, testUser, list.ID, WatchlistItemInput{Symbol: "MSFT", AlertBelowPrice: decPtr("95")})
	require.NoError(t, err)

	sub := app.hub.Subscribe(StockTopic("AAPL"))
	defer sub.Close()

	scheduler, err := app.NewScheduler()
	require.NoError(t, err)
	summary, err := scheduler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, []string{"TSLA"}, summary.Failed)

	p, err := app.portfolios.GetPortfolio(ctx, testUser, portfolio.ID)
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.True(t, p.Items[0].CurrentValue.Equal(dec("1500")))
	assert.True(t, p.TotalValue.Equal(dec("1500")))
	assert.True(t, p.PerformancePercent.Equal(dec("50")))

	alerts, err := app.notifications.List(ctx, testUser, NotificationFilter{})
	require.NoError(t, err)
	var titles []string
	for _, n := range alerts {
		titles = append(titles, n.Title)
	}
	assert.Contains(t, titles, "Price alert: MSFT")

	select {
	case update := <-sub.C:
		assert.Equal(t, "stock/AAPL", update.Topic)
	default:
		t.Fatal("expected a stock update on the hub")
	}
}

func TestScheduler_RejectsOverlappingRun(t *testing.T) {
	app, _ := newTestApp(t)
	scheduler, err := app.NewScheduler()
	require.NoError(t, err)

	scheduler.running.Lock()
	_, err = scheduler.RunOnce(context.Background())
	scheduler.running.Unlock()
	assert.ErrorIs(t, err, ErrInvalidOperation)

	summary, err := scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Updated)
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	app, _ := newTestApp(t)
	app.cfg.Refresh.Cron = "every tuesday"
	_, err := app.NewScheduler()
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	app, _ := newTestApp(t)
	scheduler, err := app.NewScheduler()
	require.NoError(t, err)

	scheduler.Stop(time.Second)
	scheduler.Start()
	scheduler.Stop(time.Second)
}

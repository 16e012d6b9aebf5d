package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type WebServer struct {
	*App
	scheduler *Scheduler
	router    *gin.Engine
	server    *http.Server
}

func NewWebServer(app *App, enableScheduler bool) (*WebServer, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(app.log), gin.Recovery(), userContext())

	server := &WebServer{
		App:    app,
		router: router,
	}

	// The scheduler also backs POST /api/refresh, so it exists even when not started.
	scheduler, err := app.NewScheduler()
	if err != nil {
		return nil, err
	}
	server.scheduler = scheduler
	if enableScheduler && app.cfg.Refresh.Enabled {
		scheduler.Start()
	}

	server.setupRoutes()
	return server, nil
}

func (ws *WebServer) setupRoutes() {
	ws.router.GET("/health", ws.health)

	api := ws.router.Group("/api")
	{
		// Stock search
		api.GET("/search", ws.searchStocks)

		// Stock management
		api.GET("/stocks", ws.listStocks)
		api.POST("/stocks", ws.addStock)
		api.DELETE("/stocks/:symbol", ws.deactivateStock)

		// Stock data
		api.GET("/stocks/:symbol", ws.getStock)
		api.GET("/stocks/:symbol/summary", ws.getStockSummary)
		api.GET("/stocks/:symbol/history", ws.getStockHistory)
		api.POST("/stocks/:symbol/sync", ws.syncStockHistory)
		api.POST("/refresh", ws.refreshPrices)

		// Realtime
		api.GET("/stream", ws.streamEvents)
		api.GET("/ws", ws.streamSocket)
	}

	user := api.Group("", requireUser())
	{
		user.GET("/portfolios", ws.listPortfolios)
		user.POST("/portfolios", ws.createPortfolio)
		user.GET("/portfolios/:id", ws.getPortfolio)
		user.PUT("/portfolios/:id", ws.updatePortfolio)
		user.DELETE("/portfolios/:id", ws.deletePortfolio)
		user.POST("/portfolios/:id/refresh", ws.refreshPortfolio)
		user.POST("/portfolios/:id/items", ws.addPortfolioItem)
		user.PUT("/portfolios/:id/items/:itemId", ws.updatePortfolioItem)
		user.DELETE("/portfolios/:id/items/:itemId", ws.removePortfolioItem)

		user.GET("/transactions", ws.listTransactions)
		user.POST("/transactions", ws.createTransaction)
		user.GET("/transactions/:id", ws.getTransaction)

		user.GET("/notifications", ws.listNotifications)
		user.GET("/notifications/unread-count", ws.unreadNotificationCount)
		user.PUT("/notifications/read-all", ws.markAllNotificationsRead)
		user.PUT("/notifications/:id/read", ws.markNotificationRead)
		user.DELETE("/notifications", ws.deleteAllNotifications)
		user.DELETE("/notifications/:id", ws.deleteNotification)

		user.GET("/watchlists", ws.listWatchlists)
		user.POST("/watchlists", ws.createWatchlist)
		user.GET("/watchlists/:id", ws.getWatchlist)
		user.DELETE("/watchlists/:id", ws.deleteWatchlist)
		user.GET("/watchlists/:id/alerts", ws.triggeredAlerts)
		user.POST("/watchlists/:id/items", ws.addWatchlistItem)
		user.PUT("/watchlists/:id/items/:itemId", ws.updateWatchlistItem)
		user.DELETE("/watchlists/:id/items/:itemId", ws.removeWatchlistItem)
	}
}

func (ws *WebServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"marketOpen": ws.clock.IsOpenNow(),
		"time":       time.Now().UTC(),
	})
}

func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (ws *WebServer) Run(ctx context.Context, addr string) error {
	// Request contexts derive from ctx so open streams end on shutdown.
	ws.server = &http.Server{
		Addr:              addr,
		Handler:           ws.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		ws.log.Info().Str("addr", addr).Msg("web server starting")
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ws.log.Info().Msg("shutting down web server")
	return ws.server.Shutdown(shutdownCtx)
}

func (ws *WebServer) Close() {
	ws.scheduler.Stop(30 * time.Second)
	if err := ws.App.Close(); err != nil {
		ws.log.Warn().Err(err).Msg("failed to close database")
	}
}

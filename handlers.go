package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const maxSearchResults = 15

func (ws *WebServer) listStocks(c *gin.Context) {
	var (
		stocks []Stock
		err    error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		stocks, err = ws.db.SearchStocks(c.Request.Context(), q, queryInt(c, "limit", 20))
	} else if c.Query("active") == "true" {
		stocks, err = ws.db.ActiveStocks(c.Request.Context())
	} else {
		stocks, err = ws.db.AllStocks(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stocks)
}

// addStock starts tracking a symbol. The name comes from the request, the
// catalog or the provider, in that order. A deactivated stock is reactivated.
func (ws *WebServer) addStock(c *gin.Context) {
	var req AddStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if !isValidSymbol(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stock symbol"})
		return
	}

	stock := &Stock{Symbol: symbol, Name: req.Name, Sector: req.Sector, IsActive: true}
	if stock.Name == "" {
		ws.describeStock(c, stock)
	}

	created, err := ws.db.CreateStockIfMissing(c.Request.Context(), stock)
	if err != nil {
		respondError(c, err)
		return
	}
	if !created && !stock.IsActive {
		if err := ws.db.SetStockActive(c.Request.Context(), symbol, true); err != nil {
			respondError(c, err)
			return
		}
		stock.IsActive = true
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, stock)
}

func (ws *WebServer) describeStock(c *gin.Context, stock *Stock) {
	if ws.catalog != nil {
		for _, e := range ws.catalog.Search(stock.Symbol, 1) {
			if e.Symbol == stock.Symbol {
				stock.Name, stock.Sector, stock.Description = e.Name, e.Sector, e.Description
				return
			}
		}
	}
	matches, err := ws.provider.Search(c.Request.Context(), stock.Symbol, 5)
	if err != nil {
		ws.log.Warn().Err(err).Str("symbol", stock.Symbol).Msg("failed to look up stock name")
	}
	for _, m := range matches {
		if strings.EqualFold(m.Symbol, stock.Symbol) {
			stock.Name = m.Name
			return
		}
	}
	stock.Name = stock.Symbol
}

func (ws *WebServer) deactivateStock(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if err := ws.db.SetStockActive(c.Request.Context(), symbol, false); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Stock deactivated", "symbol": symbol})
}

func (ws *WebServer) getStock(c *gin.Context) {
	stock, err := ws.db.FindStockBySymbol(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

func (ws *WebServer) getStockSummary(c *gin.Context) {
	ctx := c.Request.Context()
	stock, err := ws.db.FindStockBySymbol(ctx, c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}

	days := queryInt(c, "days", 30)
	bars, err := ws.db.LatestBars(ctx, stock.ID, defaultInterval, days)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, StockSummary{
		Stock:      stock,
		MarketOpen: ws.clock.IsOpenNow(),
		DailyData:  bars,
		Stats:      AnalyzeBars(bars),
	})
}

// getStockHistory serves stored bars; start and end are YYYY-MM-DD and default to the last 30 days.
func (ws *WebServer) getStockHistory(c *gin.Context) {
	ctx := c.Request.Context()
	stock, err := ws.db.FindStockBySymbol(ctx, c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}

	end := ws.clock.Today()
	start := end.AddDate(0, 0, -30)
	v := &ValidationError{}
	if raw := c.Query("start"); raw != "" {
		if start, err = time.Parse("2006-01-02", raw); err != nil {
			v.add("start", "must be YYYY-MM-DD")
		}
	}
	if raw := c.Query("end"); raw != "" {
		if end, err = time.Parse("2006-01-02", raw); err != nil {
			v.add("end", "must be YYYY-MM-DD")
		}
	}
	if err := v.orNil(); err != nil {
		respondError(c, err)
		return
	}

	interval := c.DefaultQuery("interval", defaultInterval)
	bars, err := ws.db.BarsInRange(ctx, stock.ID, start, end, interval)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":   stock.Symbol,
		"interval": interval,
		"count":    len(bars),
		"data":     bars,
	})
}

func (ws *WebServer) syncStockHistory(c *gin.Context) {
	ctx := c.Request.Context()
	stock, err := ws.db.FindStockBySymbol(ctx, c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}

	stored, err := ws.history.SyncHistory(ctx, stock, queryInt(c, "days", 30))
	if err != nil {
		respondError(c, err)
		return
	}

	response := SyncResponse{
		Success:    true,
		Message:    "Data synchronized successfully",
		BarsStored: stored,
	}
	if latest, err := ws.db.LatestBar(ctx, stock.ID, defaultInterval); err == nil && latest != nil {
		response.LatestDate = latest.Date.Format("2006-01-02")
	}
	c.JSON(http.StatusOK, response)
}

func (ws *WebServer) refreshPrices(c *gin.Context) {
	summary, err := ws.scheduler.RunOnce(c.Request.Context())
	var commitErr *CommitError
	if errors.As(err, &commitErr) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "summary": summary})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// isValidSymbol accepts exchange tickers such as AAPL, BRK.B or RDS-A.
func isValidSymbol(symbol string) bool {
	if len(symbol) < 1 || len(symbol) > 10 {
		return false
	}
	for i, char := range symbol {
		switch {
		case char >= 'A' && char <= 'Z', char >= '0' && char <= '9':
		case (char == '.' || char == '-') && i > 0 && i < len(symbol)-1:
		default:
			return false
		}
	}
	return true
}

// searchStocks merges catalog, database and provider matches, de-duplicated by symbol.
func (ws *WebServer) searchStocks(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}
	limit := queryInt(c, "limit", maxSearchResults)
	if limit <= 0 || limit > maxSearchResults {
		limit = maxSearchResults
	}

	results := make([]StockSearchResult, 0, limit)
	seen := make(map[string]bool)
	add := func(r StockSearchResult) {
		if len(results) < limit && !seen[r.Symbol] {
			seen[r.Symbol] = true
			results = append(results, r)
		}
	}

	if ws.catalog != nil {
		for _, e := range ws.catalog.Search(query, limit) {
			add(StockSearchResult{Symbol: e.Symbol, Name: e.Name, Sector: e.Sector, Source: "catalog"})
		}
	}
	if len(results) < limit {
		stocks, err := ws.db.SearchStocks(c.Request.Context(), query, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		for _, s := range stocks {
			add(StockSearchResult{Symbol: s.Symbol, Name: s.Name, Sector: s.Sector, Source: "database"})
		}
	}
	if len(results) == 0 {
		matches, err := ws.provider.Search(c.Request.Context(), query, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		for _, m := range matches {
			add(StockSearchResult{Symbol: m.Symbol, Name: m.Name, Region: m.Region, Currency: m.Currency, Source: "provider"})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}

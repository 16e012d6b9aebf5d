package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (ws *WebServer) listPortfolios(c *gin.Context) {
	portfolios, err := ws.portfolios.ListPortfolios(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolios)
}

func (ws *WebServer) createPortfolio(c *gin.Context) {
	var req PortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	portfolio, err := ws.portfolios.CreatePortfolio(c.Request.Context(), userID(c), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, portfolio)
}

func (ws *WebServer) getPortfolio(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	portfolio, err := ws.portfolios.GetPortfolio(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolio)
}

func (ws *WebServer) updatePortfolio(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req PortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	portfolio, err := ws.portfolios.UpdatePortfolio(c.Request.Context(), userID(c), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolio)
}

func (ws *WebServer) deletePortfolio(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ws.portfolios.DeletePortfolio(c.Request.Context(), userID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ws *WebServer) refreshPortfolio(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	result, err := ws.ledger.RefreshPortfolio(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result.Portfolio)
}

func (ws *WebServer) addPortfolioItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := ws.ledger.AddItem(c.Request.Context(), userID(c), id, ItemInput{
		Symbol:          req.Symbol,
		Quantity:        req.Quantity,
		AverageBuyPrice: req.AverageBuyPrice,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (ws *WebServer) updatePortfolioItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "itemId")
	if !ok {
		return
	}
	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := ws.ledger.UpdateItem(c.Request.Context(), userID(c), id, itemID, ItemUpdate{
		Quantity:        req.Quantity,
		AverageBuyPrice: req.AverageBuyPrice,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (ws *WebServer) removePortfolioItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "itemId")
	if !ok {
		return
	}
	result, err := ws.ledger.RemoveItem(c.Request.Context(), userID(c), id, itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (ws *WebServer) listTransactions(c *gin.Context) {
	filter := TransactionFilter{
		PortfolioID: uint(queryInt(c, "portfolioId", 0)),
		Symbol:      c.Query("symbol"),
		Type:        c.Query("type"),
		Limit:       queryInt(c, "limit", 20),
		Offset:      queryInt(c, "offset", 0),
	}
	transactions, err := ws.db.FindTransactions(c.Request.Context(), userID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}

func (ws *WebServer) getTransaction(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	transaction, err := ws.db.FindTransaction(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transaction)
}

func (ws *WebServer) createTransaction(c *gin.Context) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := ws.ledger.ApplyTransaction(c.Request.Context(), userID(c), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

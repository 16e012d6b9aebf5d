package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (ws *WebServer) listWatchlists(c *gin.Context) {
	lists, err := ws.watchlists.ListWatchlists(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lists)
}

func (ws *WebServer) createWatchlist(c *gin.Context) {
	var req WatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := ws.watchlists.CreateWatchlist(c.Request.Context(), userID(c), req.Name, req.IsDefault)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, list)
}

func (ws *WebServer) getWatchlist(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	list, err := ws.watchlists.GetWatchlist(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (ws *WebServer) deleteWatchlist(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ws.watchlists.DeleteWatchlist(c.Request.Context(), userID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// triggeredAlerts lists the items whose thresholds are crossed right now.
func (ws *WebServer) triggeredAlerts(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	list, err := ws.watchlists.GetWatchlist(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	alerts := make([]TriggeredAlert, 0)
	for _, item := range list.Items {
		if reason := alertReason(&item, item.Stock); reason != "" {
			alerts = append(alerts, TriggeredAlert{Item: item, Reason: reason})
		}
	}
	c.JSON(http.StatusOK, alerts)
}

func (ws *WebServer) addWatchlistItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req WatchlistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := ws.watchlists.AddItem(c.Request.Context(), userID(c), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (ws *WebServer) updateWatchlistItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "itemId")
	if !ok {
		return
	}
	var req WatchlistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := ws.watchlists.UpdateItem(c.Request.Context(), userID(c), id, itemID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (ws *WebServer) removeWatchlistItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "itemId")
	if !ok {
		return
	}
	if err := ws.watchlists.RemoveItem(c.Request.Context(), userID(c), id, itemID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (ws *WebServer) listNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	notifications, err := ws.notifications.List(ctx, uid, NotificationFilter{
		UnreadOnly: c.Query("unread") == "true",
		Limit:      queryInt(c, "limit", 20),
		Offset:     queryInt(c, "offset", 0),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := ws.notifications.UnreadCount(ctx, uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unread_count":  unread,
	})
}

func (ws *WebServer) unreadNotificationCount(c *gin.Context) {
	unread, err := ws.notifications.UnreadCount(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": unread})
}

func (ws *WebServer) markNotificationRead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	n, err := ws.notifications.MarkAsRead(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (ws *WebServer) markAllNotificationsRead(c *gin.Context) {
	updated, err := ws.notifications.MarkAllAsRead(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (ws *WebServer) deleteNotification(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := ws.notifications.Delete(c.Request.Context(), userID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// deleteAllNotifications removes every notification, or only read ones with ?read_only=true.
func (ws *WebServer) deleteAllNotifications(c *gin.Context) {
	deleted, err := ws.notifications.DeleteAll(c.Request.Context(), userID(c), c.Query("read_only") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

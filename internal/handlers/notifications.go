package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/notifications"
	appErrors "github.com/xoen85/accept-connect-app-oqvfkg/pkg/errors"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/response"
)

// NotificationHandler exposes the push notification stream.
type NotificationHandler struct {
	hub *notifications.Hub
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(hub *notifications.Hub) *NotificationHandler {
	return &NotificationHandler{hub: hub}
}

// Stream upgrades the connection to a WebSocket carrying the caller's push events.
func (h *NotificationHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	h.hub.Serve(userID, c.Writer, c.Request)
}

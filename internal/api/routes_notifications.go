package api

import (
	"github.com/gin-gonic/gin"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications", requireAuth)
	group.GET("/ws", handler.Stream)
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/handlers"
)

func registerMessageRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc, handler *handlers.MessageHandler) {
	// Holding the link token is the capability for these two.
	public := api.Group("/messages/link")
	{
		public.GET("/:token", handler.ResolveLink)
		public.GET("/:token/qr", handler.LinkQRCode)
	}

	messages := api.Group("/messages", requireAuth)
	{
		messages.POST("", handler.Create)
		messages.GET("/inbox", handler.Inbox)
		messages.GET("/sent", handler.Sent)
		messages.GET("/id/:id", handler.Get)
		messages.POST("/id/:id/respond", handler.RespondByID)
		messages.POST("/:token/respond", handler.RespondByToken)
	}
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/handlers"
)

func registerProximityRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc, handler *handlers.ProximityHandler) {
	group := api.Group("/proximity/session")
	{
		group.GET("/:token/message", handler.FetchMessage)

		group.POST("", requireAuth, handler.CreateSession)
		group.POST("/:token/send", requireAuth, handler.Send)
		group.POST("/:token/connect", requireAuth, handler.Connect)
	}
}

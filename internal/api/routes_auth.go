package api

import (
	"github.com/gin-gonic/gin"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/handlers"
)

func registerAuthRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc, handler *handlers.AuthHandler) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", handler.Register)
		auth.POST("/login", handler.Login)
		auth.POST("/refresh", handler.Refresh)
	}

	protected := api.Group("/auth", requireAuth)
	{
		protected.GET("/me", handler.Me)
		protected.DELETE("/me", handler.DeleteAccount)
		protected.POST("/logout", handler.Logout)
	}
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/fitstack/fitstack-disputes/internal/platform/payrix"
)

// SetupRouter configures the Gin router with all routes and middleware.
func SetupRouter(handler *Handler, ginMode string, webhooks *payrix.WebhookValidator) *gin.Engine {
	// Set Gin mode
	gin.SetMode(ginMode)

	router := gin.New()

	// Apply middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())
	router.Use(RequestIDMiddleware())

	// Health check endpoint (no auth required)
	router.GET("/health", handler.Health)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		disputes := v1.Group("/disputes")
		{
			disputes.GET("", handler.ListDisputes)
			disputes.GET("/:id", handler.GetDispute)
			disputes.POST("/:id/represent", handler.Represent)
			disputes.POST("/:id/accept-liability", handler.AcceptLiability)
			disputes.POST("/:id/arbitration", handler.RequestArbitration)
		}
	}

	// Webhook endpoint, called by Payrix.
	// Security is handled by the shared secret header.
	router.POST("/webhooks/payrix", WebhookAuthMiddleware(webhooks), handler.HandleWebhook)

	return router
}

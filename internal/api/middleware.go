package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fitstack/fitstack-disputes/internal/platform/payrix"
)

// CORSMiddleware handles Cross-Origin Resource Sharing.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Requested-With")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware adds a unique request ID to each request.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// WebhookAuthMiddleware checks the shared secret header Payrix sends with
// every webhook. Without a configured secret validation is skipped
// (development mode).
func WebhookAuthMiddleware(validator *payrix.WebhookValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if validator == nil || !validator.Enabled() {
			c.Next()
			return
		}

		if !validator.Validate(c.GetHeader(validator.Header())) {
			log.Printf("Rejected webhook from %s: missing or invalid %s header", c.ClientIP(), validator.Header())
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Success: false,
				Error:   "webhook authentication failed",
				Code:    "UNAUTHORIZED",
			})
			return
		}

		c.Next()
	}
}

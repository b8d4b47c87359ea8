package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"currency_ledger/internal/utils" // JWT utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Context keys set by JWTAuthMiddleware
const (
	ContextUUID = "uuid" // Authenticated player identifier
	ContextName = "name" // Display name carried in the token
)

// JWTAuthMiddleware validates JWT tokens and extracts player information
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")) // Extract the token string
		claims, err := utils.ParseJWT(tokenStr, secret)                          // Parse the JWT token
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"client_ip": ClientIP(c),        // Caller address
				"path":      c.Request.URL.Path, // Requested route
				"error":     err.Error(),        // Why the token was refused
			}).Warn("Rejected token")
			// A token was presented but is not acceptable
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(ContextUUID, claims.UUID) // Store uuid in context
		c.Set(ContextName, claims.Name) // Store name in context
		c.Next()                        // Proceed to the next handler
	}
}

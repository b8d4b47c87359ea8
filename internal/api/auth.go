package api

import (
	"net/http" // HTTP status codes
	"time"     // Token issue time

	"currency_ledger/internal/ledger" // Mutation engine
	"currency_ledger/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Request struct for login
type LoginRequest struct {
	UUID string `json:"uuid" binding:"required"` // Player identifier must be provided
	Name string `json:"name" binding:"required"` // Display name must be provided
}

// Response struct for authentication
type AuthResponse struct {
	Token string `json:"token"` // JWT token
}

// LoginHandler creates or refreshes the player's account and returns a JWT token
func LoginHandler(engine *ledger.Engine, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "uuid and name are required"})
			return
		}
		acc, err := engine.Login(c.Request.Context(), req.UUID, req.Name) // Upsert the account
		if err != nil {
			respondError(c, err, logrus.Fields{"uuid": req.UUID})
			return
		}
		// Generate JWT token
		token, err := utils.GenerateJWT(acc.UUID, acc.Name, jwtSecret, time.Now())
		if err != nil {
			respondError(c, err, logrus.Fields{"uuid": acc.UUID})
			return
		}
		logrus.WithFields(logrus.Fields{
			"uuid": acc.UUID, // Player identifier
			"name": acc.Name, // Display name
		}).Info("Player logged in")
		// Return the token in the response
		c.JSON(http.StatusOK, AuthResponse{Token: token})
	}
}

package api

import (
	"errors"   // Matching business errors
	"math"     // Rounding Retry-After up
	"net/http" // HTTP status codes
	"strconv"  // Header formatting

	"currency_ledger/internal/ledger" // Business errors

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// respondError maps an engine error to its status code. Internal failures are logged
// with fields and answered with a generic message.
func respondError(c *gin.Context, err error, fields logrus.Fields) {
	var limited *ledger.RateLimitedError
	switch {
	case errors.As(err, &limited):
		// Tell the client how long to wait before the next claim
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "Daily reward already claimed. Next claim in " + ledger.FormatWait(limited.RetryAfter),
		})
	case errors.Is(err, ledger.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient funds"})
	case errors.Is(err, ledger.ErrRecipientNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Recipient not found"})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
	default:
		if fields == nil {
			fields = logrus.Fields{}
		}
		fields["error"] = err.Error()
		fields["path"] = c.Request.URL.Path
		fields["request_id"] = c.GetString("request_id")
		logrus.WithFields(fields).Error("Request failed with internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// badRequest answers a body that could not be decoded
func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
}

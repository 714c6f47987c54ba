package api

import (
	"errors"   // Sentinel matching
	"net/http" // HTTP status codes

	"wallet_service/internal/domain" // Engine error taxonomy

	"github.com/gin-gonic/gin" // Gin web framework
)

// writeEngineError maps an engine outcome to an HTTP response. Validation
// failures are 400, missing accounts 404, contention and store trouble 503
// so the caller knows a retry with backoff is appropriate.
func writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
	case errors.Is(err, domain.ErrInvalidTarget):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot transfer to yourself"})
	case errors.Is(err, domain.ErrInsufficientFunds):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient funds"})
	case errors.Is(err, domain.ErrWalletExists):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Wallet already exists"})
	case errors.Is(err, domain.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
	case errors.Is(err, domain.ErrBusy):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Account busy, please retry"})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
	}
}

// currentUserID pulls the authenticated user id set by the JWT middleware.
func currentUserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("userID")
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

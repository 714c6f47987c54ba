package api

import (
	"net/http" // HTTP status codes
	"strconv"  // Query parsing

	"wallet_service/internal/engine" // Transfer engine

	"github.com/gin-gonic/gin" // Gin web framework
)

// TransferRequest represents a transfer request. The amount travels as a
// decimal string; the engine rejects anything that is not a positive scale-2
// value.
type TransferRequest struct {
	ReceiverID uint   `json:"receiver_id" binding:"required"` // Target account
	Amount     string `json:"amount" binding:"required"`      // Decimal string, e.g. "25.00"
}

// TransferHandler moves funds from the authenticated user to the receiver.
func TransferHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req TransferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		result, err := eng.Transfer(c.Request.Context(), userID, req.ReceiverID, req.Amount)
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":        "Transfer successful",
			"transaction_id": result.Transaction.ID,
			"sender_balance": result.SenderBalance.StringFixed(2),
			"amount":         result.Transaction.Amount.StringFixed(2),
			"receiver_id":    req.ReceiverID,
		})
	}
}

// DepositRequest represents a deposit request.
type DepositRequest struct {
	Amount string `json:"amount" binding:"required"` // Decimal string
}

// DepositHandler credits the authenticated user's wallet. Exists so test and
// setup flows can fund accounts; not part of the production trust boundary.
func DepositHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req DepositRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		balance, err := eng.Deposit(c.Request.Context(), userID, req.Amount)
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Deposit successful",
			"balance": balance.StringFixed(2),
		})
	}
}

// CreateWalletHandler opens a wallet for the authenticated user with a zero
// balance. One wallet per user.
func CreateWalletHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		wallet, err := eng.CreateWallet(c.Request.Context(), userID)
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Wallet created", "wallet": wallet})
	}
}

// GetWalletHandler returns the authenticated user's balance. Lock-free read
// of the latest committed value.
func GetWalletHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		view, err := eng.GetBalance(c.Request.Context(), userID)
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user_id":  view.UserID,
			"username": view.Username,
			"balance":  view.Balance.StringFixed(2),
			"cached":   view.Cached,
		})
	}
}

// GetTransactionHistoryHandler returns the authenticated user's transaction
// history, newest first, paginated via ?page and ?page_size.
func GetTransactionHistoryHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		page := 1
		pageSize := 20
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v
			}
		}
		if ps := c.Query("page_size"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v
			}
		}
		history, err := eng.ListTransactions(c.Request.Context(), userID, page, pageSize)
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

// ListUsersHandler returns possible transfer counterparties, excluding the
// caller.
func ListUsersHandler(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		users, err := eng.ListUsers(c.Request.Context(), userID)
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}

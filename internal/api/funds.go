package api

import (
	"context"  // Context for Redis operations
	"net/http" // HTTP status codes

	"currency_ledger/internal/domain"     // Importing domain models
	"currency_ledger/internal/ledger"     // Mutation engine
	"currency_ledger/internal/middleware" // Context keys
	"currency_ledger/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// PayRequest represents a payment to another player
type PayRequest struct {
	ToUUID string `json:"to_uuid"` // Recipient identifier
	Amount int64  `json:"amount"`  // Whole coins, must be positive
}

// DepositRequest represents a deposit request
type DepositRequest struct {
	Amount int64 `json:"amount"` // Whole coins, must be positive
}

// WithdrawRequest represents a banknote withdrawal
type WithdrawRequest struct {
	Count        int64 `json:"count"`        // Number of banknotes
	Denomination int64 `json:"denomination"` // Banknote value, 0 selects the default
}

// BalanceHandler returns the authenticated player's balance
func BalanceHandler(engine *ledger.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerUUID := c.GetString(middleware.ContextUUID)               // Get uuid from context
		balance, err := engine.Balance(c.Request.Context(), playerUUID) // Read balance
		if err != nil {
			respondError(c, err, logrus.Fields{"uuid": playerUUID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": balance})
	}
}

// PayHandler moves coins from the authenticated player to another player
func PayHandler(engine *ledger.Engine, rdb redis.Cmdable) gin.HandlerFunc {
	return func(c *gin.Context) {
		fromUUID := c.GetString(middleware.ContextUUID) // Get uuid from context
		var req PayRequest                              // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c)
			return
		}
		newBalance, err := engine.Pay(c.Request.Context(), fromUUID, req.ToUUID, req.Amount)
		if err != nil {
			respondError(c, err, logrus.Fields{
				"from_uuid": fromUUID,   // Sender
				"to_uuid":   req.ToUUID, // Recipient
				"amount":    req.Amount, // Transfer amount
			})
			return
		}
		invalidateTop(rdb) // Ranking changed
		c.JSON(http.StatusOK, gin.H{"success": true, "new_sender_balance": newBalance})
	}
}

// DepositHandler credits coins to the authenticated player
func DepositHandler(engine *ledger.Engine, rdb redis.Cmdable) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerUUID := c.GetString(middleware.ContextUUID) // Get uuid from context
		var req DepositRequest                            // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c)
			return
		}
		newBalance, err := engine.Deposit(c.Request.Context(), playerUUID, req.Amount)
		if err != nil {
			respondError(c, err, logrus.Fields{"uuid": playerUUID, "amount": req.Amount})
			return
		}
		invalidateTop(rdb) // Ranking changed
		c.JSON(http.StatusOK, gin.H{"success": true, "new_balance": newBalance})
	}
}

// WithdrawHandler pays out banknotes from the authenticated player's balance
func WithdrawHandler(engine *ledger.Engine, rdb redis.Cmdable) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerUUID := c.GetString(middleware.ContextUUID) // Get uuid from context
		var req WithdrawRequest                           // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c)
			return
		}
		res, err := engine.Withdraw(c.Request.Context(), playerUUID, req.Count, req.Denomination)
		if err != nil {
			respondError(c, err, logrus.Fields{
				"uuid":         playerUUID,       // Player
				"count":        req.Count,        // Banknotes requested
				"denomination": req.Denomination, // Banknote value requested
			})
			return
		}
		invalidateTop(rdb) // Ranking changed
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"withdrawn":    res.Withdrawn,
			"new_balance":  res.NewBalance,
			"denomination": res.Denomination,
			"count":        res.Count,
		})
	}
}

// DailyHandler grants the daily reward once per reset window
func DailyHandler(engine *ledger.Engine, rdb redis.Cmdable) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerUUID := c.GetString(middleware.ContextUUID) // Get uuid from context
		res, err := engine.ClaimDaily(c.Request.Context(), playerUUID)
		if err != nil {
			respondError(c, err, logrus.Fields{"uuid": playerUUID})
			return
		}
		invalidateTop(rdb) // Ranking changed
		c.JSON(http.StatusOK, gin.H{"message": res.Message, "new_balance": res.NewBalance})
	}
}

// TopHandler returns the richest players, served from Redis when cached
func TopHandler(engine *ledger.Engine, rdb redis.Cmdable) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if rdb != nil {
			// Try to get the ranking from cache
			cached, found, err := utils.GetCache[[]domain.LeaderboardEntry](ctx, rdb, utils.LeaderboardKey)
			if err != nil {
				logrus.WithError(err).Warn("Leaderboard cache read failed")
			} else if found {
				c.JSON(http.StatusOK, cached) // Serve from cache
				return
			}
		}
		entries, err := engine.Top(ctx) // Query the store
		if err != nil {
			respondError(c, err, nil)
			return
		}
		if entries == nil {
			entries = []domain.LeaderboardEntry{} // Always answer with a JSON array
		}
		if rdb != nil {
			// Cache the ranking for later reads
			if err := utils.SetCache(ctx, rdb, utils.LeaderboardKey, entries, utils.LeaderboardTTL); err != nil {
				logrus.WithError(err).Warn("Leaderboard cache write failed")
			}
		}
		c.JSON(http.StatusOK, entries)
	}
}

// MarkMobLimitHandler flags that the player reached today's mob drop cap
func MarkMobLimitHandler(engine *ledger.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerUUID := c.GetString(middleware.ContextUUID) // Get uuid from context
		if err := engine.MarkMobLimit(c.Request.Context(), playerUUID); err != nil {
			respondError(c, err, logrus.Fields{"uuid": playerUUID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Mob limit reached for today"})
	}
}

// MobLimitStatusHandler reports whether the player was flagged today
func MobLimitStatusHandler(engine *ledger.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerUUID := c.GetString(middleware.ContextUUID) // Get uuid from context
		reached, err := engine.MobLimitReached(c.Request.Context(), playerUUID)
		if err != nil {
			respondError(c, err, logrus.Fields{"uuid": playerUUID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"limitReached": reached})
	}
}

// invalidateTop drops the cached ranking after a balance change
func invalidateTop(rdb redis.Cmdable) {
	if rdb == nil {
		return
	}
	if err := utils.DeleteCache(context.Background(), rdb, utils.LeaderboardKey); err != nil {
		logrus.WithError(err).Warn("Leaderboard cache invalidation failed")
	}
}

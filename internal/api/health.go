package api

import (
	"context"  // Ping deadline
	"net/http" // HTTP status codes
	"time"     // Ping timeout

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// HealthHandler pings MySQL and Redis
func HealthHandler(db *gorm.DB, rdb redis.Cmdable) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"database": "ok", "redis": "ok"}
		healthy := true
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				logrus.WithError(err).Error("Database health check failed")
				status["database"] = "unavailable"
				healthy = false
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				logrus.WithError(err).Error("Redis health check failed")
				status["redis"] = "unavailable"
				healthy = false
			}
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

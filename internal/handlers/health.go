package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Components reports which optional backends came up at startup.
type Components struct {
	Storage     bool
	Search      bool
	RateLimiter bool
}

func status(up bool) string {
	if up {
		return "ok"
	}
	return "unavailable"
}

func HealthCheck(db *gorm.DB, components Components) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
			})
			return
		}

		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unreachable",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "ok",
			"cache":    status(components.RateLimiter),
			"storage":  status(components.Storage),
			"search":   status(components.Search),
		})
	}
}

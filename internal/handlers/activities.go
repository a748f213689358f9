package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sergiovlezh/documents-manager/internal/services"
)

func GetRecentActivities(activity *services.ActivityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		limit := queryInt(c, "limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		activities, err := activity.GetRecentActivities(userID, limit)
		if err != nil {
			respondServiceError(c, err)
			return
		}

		respondData(c, http.StatusOK, activities)
	}
}

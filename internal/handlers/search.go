package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/sergiovlezh/documents-manager/internal/services"
)

// Search runs a full-text query over the caller's documents. It is only
// available when the search service is configured.
func Search(search *services.SearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		if search == nil {
			respondError(c, http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured")
			return
		}

		query := strings.TrimSpace(c.Query("q"))
		result, err := search.Search(query, userID, int64(queryInt(c, "limit", 20)))
		if err != nil {
			log.Error().Err(err).Str("query", query).Msg("search failed")
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Search failed")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    result.Hits,
			"total":   result.EstimatedTotalHits,
		})
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sergiovlezh/documents-manager/internal/services"
)

type SetMetadataRequest struct {
	Key   string `json:"key" binding:"required,max=255"`
	Value string `json:"value" binding:"max=255"`
}

func ListMetadata(metadata *services.MetadataService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		entries, err := metadata.List(c.Request.Context(), docID, userID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respondData(c, http.StatusOK, entries)
	}
}

// SetMetadata creates the key or overwrites its value.
func SetMetadata(metadata *services.MetadataService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		var req SetMetadataRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}

		entry, err := metadata.Set(c.Request.Context(), docID, userID, req.Key, req.Value)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respondData(c, http.StatusOK, entry)
	}
}

func DeleteMetadata(metadata *services.MetadataService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		if err := metadata.Remove(c.Request.Context(), docID, userID, c.Param("key")); err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

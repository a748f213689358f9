package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sergiovlezh/documents-manager/internal/services"
)

type AssignTagRequest struct {
	Name  string `json:"name" binding:"required,max=50"`
	Color string `json:"color" binding:"omitempty,hexcolor"`
}

// ListDocumentTags returns the caller's assignments; ?all=true also returns
// other users' assignments when the caller owns the document.
func ListDocumentTags(tags *services.TagService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		list, err := tags.ListVisible(c.Request.Context(), docID, userID, c.Query("all") == "true")
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respondData(c, http.StatusOK, list)
	}
}

func AssignTag(tags *services.TagService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		var req AssignTagRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}

		assignment, err := tags.Assign(c.Request.Context(), docID, req.Name, userID, req.Color)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respondData(c, http.StatusOK, assignment)
	}
}

func UnassignTag(tags *services.TagService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		if err := tags.Unassign(c.Request.Context(), docID, c.Param("name"), userID); err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func ListTags(tags *services.TagService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := tags.List(c.Request.Context())
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respondData(c, http.StatusOK, list)
	}
}

// DeleteTag drops a tag from the shared vocabulary. Admin only.
func DeleteTag(tags *services.TagService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := tags.DeleteTag(c.Request.Context(), c.Param("name")); err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sergiovlezh/documents-manager/internal/services"
)

type CreateNoteRequest struct {
	Body string `json:"body" binding:"required"`
}

func CreateNote(notes *services.NoteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		var req CreateNoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}

		note, err := notes.Add(c.Request.Context(), docID, userID, req.Body)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respondData(c, http.StatusCreated, note)
	}
}

func ListNotes(notes *services.NoteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		list, err := notes.List(c.Request.Context(), docID, userID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respondData(c, http.StatusOK, list)
	}
}

func DeleteNote(notes *services.NoteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		noteID, ok := uuidParam(c, "note_id")
		if !ok {
			return
		}

		if err := notes.Delete(c.Request.Context(), docID, userID, noteID); err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

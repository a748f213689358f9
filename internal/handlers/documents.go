package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sergiovlezh/documents-manager/internal/config"
	"github.com/sergiovlezh/documents-manager/internal/services"
)

type UpdateDocumentRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	Description *string `json:"description"`
}

type MergeDocumentsRequest struct {
	DocumentIDs []string `json:"document_ids" binding:"required,min=2,dive,uuid"`
}

func ListDocuments(query *services.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		filter := services.DocumentFilter{
			Query:       c.Query("q"),
			MetadataKey: c.Query("metadata_key"),
		}
		for _, raw := range c.QueryArray("tag") {
			filter.TagNames = append(filter.TagNames, strings.Split(raw, ",")...)
		}
		page := services.Page{
			Limit:  queryInt(c, "limit", 20),
			Offset: queryInt(c, "offset", 0),
		}

		docs, total, err := query.ListDocuments(c.Request.Context(), userID, filter, services.ParseOrdering(c.Query("ordering")), page)
		if err != nil {
			respondServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "data": docs, "total": total})
	}
}

// CreateDocument accepts a multipart form with one or more "files" parts and
// optional "title" and "description" fields.
func CreateDocument(cfg *config.Config, docs *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		uploads, closeAll, ok := readUploads(c, cfg.MaxUploadSize())
		if !ok {
			return
		}
		defer closeAll()

		doc, err := docs.Create(c.Request.Context(), userID, services.CreateDocumentInput{
			Title:       c.PostForm("title"),
			Description: c.PostForm("description"),
			Files:       uploads,
		})
		if err != nil {
			respondServiceError(c, err)
			return
		}

		respondData(c, http.StatusCreated, doc)
	}
}

func GetDocument(query *services.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		detail, err := query.GetDocument(c.Request.Context(), docID, userID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respondData(c, http.StatusOK, detail)
	}
}

func UpdateDocument(docs *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		var req UpdateDocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}

		doc, err := docs.Update(c.Request.Context(), docID, userID, services.UpdateDocumentInput{
			Title:       req.Title,
			Description: req.Description,
		})
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respondData(c, http.StatusOK, doc)
	}
}

func DeleteDocument(docs *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		if err := docs.Delete(c.Request.Context(), docID, userID); err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Document deleted"})
	}
}

func AddFiles(cfg *config.Config, docs *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		uploads, closeAll, ok := readUploads(c, cfg.MaxUploadSize())
		if !ok {
			return
		}
		defer closeAll()

		files, err := docs.AddFiles(c.Request.Context(), docID, userID, uploads)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respondData(c, http.StatusCreated, files)
	}
}

func RemoveFile(docs *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		fileID, ok := uuidParam(c, "file_id")
		if !ok {
			return
		}

		if err := docs.RemoveFile(c.Request.Context(), docID, userID, fileID); err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "File removed"})
	}
}

func DownloadFile(docs *services.DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		fileID, ok := uuidParam(c, "file_id")
		if !ok {
			return
		}

		body, file, err := docs.OpenFile(c.Request.Context(), docID, userID, fileID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		defer body.Close()

		extraHeaders := map[string]string{
			"Content-Disposition": contentDisposition(file.OriginalFilename),
		}
		c.DataFromReader(http.StatusOK, file.Size, file.ContentType, body, extraHeaders)
	}
}

// LatestFile returns the most recently uploaded file of a visible document.
func LatestFile(query *services.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		docID, ok := uuidParam(c, "id")
		if !ok {
			return
		}

		file, err := query.MostRecentFile(c.Request.Context(), docID, userID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		if file == nil {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Document has no files")
			return
		}

		respondData(c, http.StatusOK, file)
	}
}

func MergeDocuments(merge *services.MergeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}

		var req MergeDocumentsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		ids := make([]uuid.UUID, len(req.DocumentIDs))
		for i, raw := range req.DocumentIDs {
			ids[i] = uuid.MustParse(raw)
		}

		survivor, err := merge.Merge(c.Request.Context(), ids, userID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respondData(c, http.StatusOK, survivor)
	}
}

// readUploads opens every "files" part of the multipart form. The returned
// func closes them; it is safe to call when ok is false.
func readUploads(c *gin.Context, maxSize int64) ([]services.FileUpload, func(), bool) {
	noop := func() {}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
	if err := c.Request.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", fmt.Sprintf("Upload exceeds %d bytes", maxSize))
			return nil, noop, false
		}
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Expected a multipart form")
		return nil, noop, false
	}

	headers := c.Request.MultipartForm.File["files"]
	headers = append(headers, c.Request.MultipartForm.File["file"]...)

	opened := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	uploads := make([]services.FileUpload, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			closeAll()
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read uploaded file")
			return nil, noop, false
		}
		opened = append(opened, f)
		uploads = append(uploads, services.FileUpload{
			Filename:    h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Size:        h.Size,
			Content:     f,
		})
	}
	return uploads, closeAll, true
}

func contentDisposition(filename string) string {
	ascii := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, filename)
	return fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", ascii, url.PathEscape(filename))
}

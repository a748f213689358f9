package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"gorm.io/gorm"
)

var errNoBlobStore = errors.New("blob store is not configured")

// FileUpload is one file handed to Create or AddFiles.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

type CreateDocumentInput struct {
	Title       string
	Description string
	Files       []FileUpload
}

type UpdateDocumentInput struct {
	Title       *string
	Description *string
}

// DocumentService owns the document aggregate: a document and the files it
// is made of. A committed document always has at least one file.
type DocumentService struct {
	db    *gorm.DB
	blobs BlobStore
	opts  options
}

func NewDocumentService(db *gorm.DB, blobs BlobStore, opts ...Option) *DocumentService {
	return &DocumentService{
		db:    db,
		blobs: blobs,
		opts:  newOptions(opts),
	}
}

// Create stores every file and inserts the document with its file rows in a
// single transaction. Blobs written before a failure are removed again.
func (s *DocumentService) Create(ctx context.Context, owner uuid.UUID, input CreateDocumentInput) (*models.Document, error) {
	if owner == uuid.Nil {
		return nil, permissionError("an authenticated owner is required")
	}
	if err := validateUploads(input.Files); err != nil {
		return nil, err
	}

	stored, err := s.putBlobs(ctx, input.Files)
	if err != nil {
		return nil, err
	}

	title := models.TruncateTitle(strings.TrimSpace(input.Title))
	if title == "" {
		title = models.TitleFromFilename(stored[0].Filename)
	}

	doc := models.Document{
		OwnerID:     owner,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Files", "Metadata", "Notes", "Tags").Create(&doc).Error; err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		files, err := insertFiles(tx, doc.ID, stored)
		if err != nil {
			return err
		}
		doc.Files = files
		return recordActivity(tx, owner, models.ActivityDocumentCreated, doc.ID, map[string]interface{}{
			"files": len(files),
		})
	})
	if err != nil {
		s.discardBlobs(stored)
		return nil, err
	}

	log.Info().Str("document_id", doc.ID.String()).Int("files", len(doc.Files)).Msg("document created")
	s.opts.reindex(doc.ID)
	return &doc, nil
}

// AddFiles appends files to an existing document. The document row stays
// locked until commit so a concurrent merge cannot orphan the new rows.
func (s *DocumentService) AddFiles(ctx context.Context, documentID, caller uuid.UUID, files []FileUpload) ([]models.DocumentFile, error) {
	if err := validateUploads(files); err != nil {
		return nil, err
	}
	if _, err := s.opts.writableDocument(ctx, s.db.WithContext(ctx), documentID, caller, false); err != nil {
		return nil, err
	}

	stored, err := s.putBlobs(ctx, files)
	if err != nil {
		return nil, err
	}

	var created []models.DocumentFile
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.opts.writableDocument(ctx, tx, documentID, caller, true); err != nil {
			return err
		}
		files, err := insertFiles(tx, documentID, stored)
		if err != nil {
			return err
		}
		created = files
		return recordActivity(tx, caller, models.ActivityFilesAdded, documentID, map[string]interface{}{
			"files": len(created),
		})
	})
	if err != nil {
		s.discardBlobs(stored)
		return nil, err
	}

	s.opts.reindex(documentID)
	return created, nil
}

// RemoveFile deletes one file and its blob. The last file of a document can
// never be removed.
func (s *DocumentService) RemoveFile(ctx context.Context, documentID, caller, fileID uuid.UUID) error {
	var file models.DocumentFile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.opts.writableDocument(ctx, tx, documentID, caller, true); err != nil {
			return err
		}
		if err := tx.First(&file, "id = ? AND document_id = ?", fileID, documentID).Error; err != nil {
			return translate(err, "file")
		}

		var count int64
		if err := tx.Model(&models.DocumentFile{}).Where("document_id = ?", documentID).Count(&count).Error; err != nil {
			return err
		}
		if count <= 1 {
			return integrityError("cannot remove the last file of a document")
		}

		if err := tx.Delete(&file).Error; err != nil {
			return err
		}
		return recordActivity(tx, caller, models.ActivityFileRemoved, documentID, map[string]interface{}{
			"file_id":  file.ID.String(),
			"filename": file.OriginalFilename,
		})
	})
	if err != nil {
		return err
	}

	s.deleteBlobs(ctx, []string{file.StorageKey})
	s.opts.reindex(documentID)
	return nil
}

// Delete removes the document and everything hanging off it. Rows go first,
// in one transaction; blobs are removed only after the commit.
func (s *DocumentService) Delete(ctx context.Context, documentID, caller uuid.UUID) error {
	var keys []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := s.opts.writableDocument(ctx, tx, documentID, caller, true)
		if err != nil {
			return err
		}
		keys, err = deleteDocumentRows(tx, doc.ID)
		if err != nil {
			return err
		}
		return recordActivity(tx, caller, models.ActivityDocumentDeleted, doc.ID, map[string]interface{}{
			"title": doc.Title,
			"files": len(keys),
		})
	})
	if err != nil {
		return err
	}

	s.deleteBlobs(ctx, keys)
	s.opts.unindex(documentID)
	log.Info().Str("document_id", documentID.String()).Msg("document deleted")
	return nil
}

// Update edits title and description. A title cannot be cleared.
func (s *DocumentService) Update(ctx context.Context, documentID, caller uuid.UUID, input UpdateDocumentInput) (*models.Document, error) {
	updates := map[string]interface{}{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, validationError("title cannot be blank")
		}
		updates["title"] = models.TruncateTitle(title)
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}

	var doc *models.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		doc, err = s.opts.writableDocument(ctx, tx, documentID, caller, true)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(doc).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(doc, "id = ?", documentID).Error; err != nil {
			return err
		}
		return recordActivity(tx, caller, models.ActivityDocumentUpdated, doc.ID, updates)
	})
	if err != nil {
		return nil, err
	}

	s.opts.reindex(documentID)
	return doc, nil
}

// OpenFile streams one file of a document the caller can read.
func (s *DocumentService) OpenFile(ctx context.Context, documentID, caller, fileID uuid.UUID) (io.ReadCloser, *models.DocumentFile, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.opts.readableDocument(ctx, db, documentID, caller, false); err != nil {
		return nil, nil, err
	}

	var file models.DocumentFile
	if err := db.First(&file, "id = ? AND document_id = ?", fileID, documentID).Error; err != nil {
		return nil, nil, translate(err, "file")
	}

	if s.blobs == nil {
		return nil, nil, errNoBlobStore
	}
	rc, info, err := s.blobs.Get(ctx, file.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	if info.Filename != "" {
		file.OriginalFilename = info.Filename
	}
	if info.ContentType != "" {
		file.ContentType = info.ContentType
	}
	return rc, &file, nil
}

func validateUploads(files []FileUpload) error {
	if len(files) == 0 {
		return validationError("at least one file is required")
	}
	for _, f := range files {
		if strings.TrimSpace(f.Filename) == "" {
			return validationError("every file needs a filename")
		}
		if f.Content == nil || f.Size <= 0 {
			return validationError("the uploaded file '%s' is empty", f.Filename)
		}
	}
	return nil
}

// putBlobs writes files in order and undoes the writes if any of them fails.
func (s *DocumentService) putBlobs(ctx context.Context, files []FileUpload) ([]BlobInfo, error) {
	if s.blobs == nil {
		return nil, errNoBlobStore
	}
	stored := make([]BlobInfo, 0, len(files))
	for _, f := range files {
		info, err := s.blobs.Put(ctx, f.Content, f.Size, f.Filename, f.ContentType)
		if err != nil {
			s.discardBlobs(stored)
			return nil, fmt.Errorf("failed to store file '%s': %w", f.Filename, err)
		}
		stored = append(stored, info)
	}
	return stored, nil
}

// discardBlobs is the compensating action for a rolled back write. It uses
// a fresh context so a cancelled request still cleans up.
func (s *DocumentService) discardBlobs(stored []BlobInfo) {
	keys := make([]string, len(stored))
	for i, b := range stored {
		keys[i] = b.Key
	}
	s.deleteBlobs(context.Background(), keys)
}

func (s *DocumentService) deleteBlobs(ctx context.Context, keys []string) {
	if s.blobs == nil {
		return
	}
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			log.Error().Err(err).Str("storage_key", key).Msg("failed to delete blob")
		}
	}
}

func insertFiles(tx *gorm.DB, documentID uuid.UUID, stored []BlobInfo) ([]models.DocumentFile, error) {
	files := make([]models.DocumentFile, len(stored))
	for i, b := range stored {
		files[i] = models.DocumentFile{
			DocumentID:       documentID,
			StorageKey:       b.Key,
			OriginalFilename: b.Filename,
			ContentType:      b.ContentType,
			Size:             b.Size,
		}
	}
	if err := tx.Create(&files).Error; err != nil {
		return nil, fmt.Errorf("failed to save document files: %w", err)
	}
	return files, nil
}

// deleteDocumentRows removes a document and its dependents in dependency
// order and returns the storage keys of the removed files.
func deleteDocumentRows(tx *gorm.DB, documentID uuid.UUID) ([]string, error) {
	var keys []string
	if err := tx.Model(&models.DocumentFile{}).Where("document_id = ?", documentID).Pluck("storage_key", &keys).Error; err != nil {
		return nil, err
	}

	steps := []interface{}{
		&models.DocumentTag{},
		&models.DocumentNote{},
		&models.DocumentMetadata{},
		&models.DocumentFile{},
	}
	for _, model := range steps {
		if err := tx.Where("document_id = ?", documentID).Delete(model).Error; err != nil {
			return nil, err
		}
	}
	if err := tx.Delete(&models.Document{}, "id = ?", documentID).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

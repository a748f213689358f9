package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxMetadataLength = 255

type MetadataService struct {
	db   *gorm.DB
	opts options
}

func NewMetadataService(db *gorm.DB, opts ...Option) *MetadataService {
	return &MetadataService{db: db, opts: newOptions(opts)}
}

// Set writes key=value for the document. An existing key is overwritten in
// place through the (document_id, key) unique index.
func (s *MetadataService) Set(ctx context.Context, documentID, caller uuid.UUID, key, value string) (*models.DocumentMetadata, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, validationError("metadata key cannot be empty")
	}
	if utf8.RuneCountInString(key) > maxMetadataLength || utf8.RuneCountInString(value) > maxMetadataLength {
		return nil, validationError("metadata key and value are limited to %d characters", maxMetadataLength)
	}

	var entry models.DocumentMetadata
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.opts.writableDocument(ctx, tx, documentID, caller, false); err != nil {
			return err
		}
		if err := upsertMetadata(tx, documentID, key, value); err != nil {
			return err
		}
		return tx.First(&entry, "document_id = ? AND key = ?", documentID, key).Error
	})
	if err != nil {
		return nil, err
	}

	s.opts.reindex(documentID)
	return &entry, nil
}

// Remove deletes key from the document. Missing keys are not an error.
func (s *MetadataService) Remove(ctx context.Context, documentID, caller uuid.UUID, key string) error {
	key = strings.TrimSpace(key)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.opts.writableDocument(ctx, tx, documentID, caller, false); err != nil {
			return err
		}
		return tx.Where("document_id = ? AND key = ?", documentID, key).Delete(&models.DocumentMetadata{}).Error
	})
	if err != nil {
		return err
	}

	s.opts.reindex(documentID)
	return nil
}

// List returns the document's metadata ordered by key.
func (s *MetadataService) List(ctx context.Context, documentID, caller uuid.UUID) ([]models.DocumentMetadata, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.opts.readableDocument(ctx, db, documentID, caller, false); err != nil {
		return nil, err
	}

	var entries []models.DocumentMetadata
	err := db.Where("document_id = ?", documentID).Order("key asc").Find(&entries).Error
	return entries, err
}

func upsertMetadata(tx *gorm.DB, documentID uuid.UUID, key, value string) error {
	entry := models.DocumentMetadata{
		DocumentID: documentID,
		Key:        key,
		Value:      value,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "document_id"}, {Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": time.Now(),
		}),
	}).Create(&entry).Error
}

package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxTagNameLength = 50

var validate = validator.New()

// TagService manages the global tag vocabulary and per-user assignments.
type TagService struct {
	db   *gorm.DB
	opts options
}

func NewTagService(db *gorm.DB, opts ...Option) *TagService {
	return &TagService{db: db, opts: newOptions(opts)}
}

// NormalizeTagName trims and lower-cases a tag name.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// GetOrCreate returns the tag called name, inserting it if needed.
func (s *TagService) GetOrCreate(ctx context.Context, name string) (*models.Tag, error) {
	var tag *models.Tag
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		tag, err = getOrCreateTag(tx, name)
		return err
	})
	return tag, err
}

// Assign tags the document for owner, or recolors an existing assignment.
func (s *TagService) Assign(ctx context.Context, documentID uuid.UUID, tagName string, owner uuid.UUID, color string) (*models.DocumentTag, error) {
	color = strings.TrimSpace(color)
	if err := validate.Var(color, "omitempty,hexcolor,len=7"); err != nil {
		return nil, validationError("color must be a hex value like #1976d2")
	}
	if color == "" {
		color = models.DefaultTagColor
	}
	color = strings.ToLower(color)

	var assignment models.DocumentTag
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.readableForTagging(ctx, tx, documentID, owner); err != nil {
			return err
		}
		tag, err := getOrCreateTag(tx, tagName)
		if err != nil {
			return err
		}

		row := models.DocumentTag{
			DocumentID: documentID,
			TagID:      tag.ID,
			OwnerID:    owner,
			Color:      color,
		}
		err = tx.Omit("Tag").Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "document_id"}, {Name: "tag_id"}, {Name: "owner_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"color":      color,
				"updated_at": time.Now(),
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}

		return tx.Preload("Tag").
			First(&assignment, "document_id = ? AND tag_id = ? AND owner_id = ?", documentID, tag.ID, owner).Error
	})
	if err != nil {
		return nil, err
	}

	s.opts.reindex(documentID)
	return &assignment, nil
}

// Unassign removes owner's own assignment of tagName. Other users'
// assignments of the same tag stay untouched.
func (s *TagService) Unassign(ctx context.Context, documentID uuid.UUID, tagName string, owner uuid.UUID) error {
	name := NormalizeTagName(tagName)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.readableForTagging(ctx, tx, documentID, owner); err != nil {
			return err
		}
		tagIDs := tx.Model(&models.Tag{}).Select("id").Where("name = ?", name)
		return tx.Where("document_id = ? AND owner_id = ? AND tag_id IN (?)", documentID, owner, tagIDs).
			Delete(&models.DocumentTag{}).Error
	})
	if err != nil {
		return err
	}

	s.opts.reindex(documentID)
	return nil
}

// ListForDocument returns the assignments on a document. With a requesting
// user only that user's assignments are returned; without one, all of them.
func (s *TagService) ListForDocument(ctx context.Context, documentID uuid.UUID, requestingUser *uuid.UUID) ([]models.DocumentTag, error) {
	db := s.db.WithContext(ctx)
	if _, err := loadDocument(db, documentID, false); err != nil {
		return nil, err
	}
	return listDocumentTags(db, []uuid.UUID{documentID}, requestingUser)
}

// ListVisible lists assignments the caller may see: their own, or every
// user's when all is set and the caller can edit the document.
func (s *TagService) ListVisible(ctx context.Context, documentID, caller uuid.UUID, all bool) ([]models.DocumentTag, error) {
	db := s.db.WithContext(ctx)
	doc, err := s.opts.readableDocument(ctx, db, documentID, caller, false)
	if err != nil {
		return nil, err
	}
	if all && s.opts.policy.CanWrite(ctx, caller, doc) {
		return listDocumentTags(db, []uuid.UUID{documentID}, nil)
	}
	return listDocumentTags(db, []uuid.UUID{documentID}, &caller)
}

// List returns the whole vocabulary ordered by name.
func (s *TagService) List(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := s.db.WithContext(ctx).Order("name asc").Find(&tags).Error
	return tags, err
}

// DeleteTag removes a tag and every assignment of it. Documents stay.
func (s *TagService) DeleteTag(ctx context.Context, name string) error {
	name = NormalizeTagName(name)
	var affected []uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		if err := tx.First(&tag, "name = ?", name).Error; err != nil {
			return translate(err, "tag")
		}
		if err := tx.Model(&models.DocumentTag{}).Where("tag_id = ?", tag.ID).Distinct().Pluck("document_id", &affected).Error; err != nil {
			return err
		}
		if err := tx.Where("tag_id = ?", tag.ID).Delete(&models.DocumentTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
	if err != nil {
		return err
	}

	s.opts.reindex(affected...)
	return nil
}

func (s *TagService) readableForTagging(ctx context.Context, tx *gorm.DB, documentID, user uuid.UUID) (*models.Document, error) {
	doc, err := loadDocument(tx, documentID, false)
	if err != nil {
		return nil, err
	}
	if !s.opts.policy.CanRead(ctx, user, doc) {
		return nil, permissionError("tagging requires read access to the document")
	}
	return doc, nil
}

// getOrCreateTag inserts with ON CONFLICT DO NOTHING and reads the row back,
// so concurrent callers converge on the row that won the unique index.
func getOrCreateTag(tx *gorm.DB, name string) (*models.Tag, error) {
	name = NormalizeTagName(name)
	if name == "" {
		return nil, validationError("tag name cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxTagNameLength {
		return nil, validationError("tag name is limited to %d characters", maxTagNameLength)
	}

	candidate := models.Tag{Name: name}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&candidate).Error
	if err != nil {
		return nil, err
	}

	var tag models.Tag
	if err := tx.First(&tag, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func listDocumentTags(db *gorm.DB, documentIDs []uuid.UUID, owner *uuid.UUID) ([]models.DocumentTag, error) {
	q := db.Preload("Tag").
		Joins("JOIN tags ON tags.id = document_tags.tag_id").
		Where("document_tags.document_id IN ?", documentIDs)
	if owner != nil {
		q = q.Where("document_tags.owner_id = ?", *owner)
	}

	var rows []models.DocumentTag
	err := q.Order("tags.name asc").Order("document_tags.owner_id asc").Find(&rows).Error
	return rows, err
}

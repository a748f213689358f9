package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultTagColor = "#9e9e9e"

// DocumentMetadata is a key/value pair, unique per (document, key).
type DocumentMetadata struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_document_metadata_document_key" json:"document_id"`
	Key        string    `gorm:"size:255;not null;uniqueIndex:idx_document_metadata_document_key;index" json:"key"`
	Value      string    `gorm:"size:255;not null" json:"value"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (DocumentMetadata) TableName() string {
	return "document_metadata"
}

func (m *DocumentMetadata) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type DocumentNote struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index:idx_document_notes_document_created" json:"document_id"`
	AuthorID   uuid.UUID `gorm:"type:uuid;not null;index" json:"author_id"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	CreatedAt  time.Time `gorm:"index:idx_document_notes_document_created" json:"created_at"`
}

func (DocumentNote) TableName() string {
	return "document_notes"
}

func (n *DocumentNote) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Tag is shared vocabulary; names are stored normalized.
type Tag struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name      string    `gorm:"size:50;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (Tag) TableName() string {
	return "tags"
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// DocumentTag is one user's assignment of a tag to a document.
type DocumentTag struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_document_tags_document_tag_owner" json:"document_id"`
	TagID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_document_tags_document_tag_owner;index" json:"tag_id"`
	OwnerID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_document_tags_document_tag_owner;index" json:"owner_id"`
	Color      string    `gorm:"size:7;not null" json:"color"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Relations
	Tag Tag `gorm:"foreignKey:TagID;constraint:OnDelete:CASCADE" json:"tag"`
}

func (DocumentTag) TableName() string {
	return "document_tags"
}

func (dt *DocumentTag) BeforeCreate(tx *gorm.DB) error {
	if dt.ID == uuid.Nil {
		dt.ID = uuid.New()
	}
	if dt.Color == "" {
		dt.Color = DefaultTagColor
	}
	return nil
}

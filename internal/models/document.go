package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Document struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OwnerID     uuid.UUID `gorm:"type:uuid;not null;index:idx_documents_owner_created" json:"owner_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"index:idx_documents_owner_created" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	Files    []DocumentFile     `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"files,omitempty"`
	Metadata []DocumentMetadata `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"metadata,omitempty"`
	Notes    []DocumentNote     `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"notes,omitempty"`
	Tags     []DocumentTag      `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"tags,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// GetOwnerID lets access policies treat documents as owned resources.
func (d *Document) GetOwnerID() uuid.UUID {
	return d.OwnerID
}

type DocumentFile struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	DocumentID       uuid.UUID `gorm:"type:uuid;not null;index:idx_document_files_document_created" json:"document_id"`
	StorageKey       string    `gorm:"size:500;not null;uniqueIndex" json:"-"`
	OriginalFilename string    `gorm:"size:255;not null" json:"original_filename"`
	ContentType      string    `gorm:"size:100;not null" json:"content_type"`
	Size             int64     `gorm:"not null" json:"size"`
	CreatedAt        time.Time `gorm:"index:idx_document_files_document_created" json:"uploaded_at"`
}

func (DocumentFile) TableName() string {
	return "document_files"
}

func (f *DocumentFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

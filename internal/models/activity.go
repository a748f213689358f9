package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActivityType string

const (
	ActivityDocumentCreated ActivityType = "document_created"
	ActivityDocumentUpdated ActivityType = "document_updated"
	ActivityDocumentDeleted ActivityType = "document_deleted"
	ActivityDocumentsMerged ActivityType = "documents_merged"
	ActivityFilesAdded      ActivityType = "files_added"
	ActivityFileRemoved     ActivityType = "file_removed"
)

// Activity is an audit row. DocumentID is kept after the document is gone,
// so it carries no foreign key.
type Activity struct {
	ID           uuid.UUID    `gorm:"type:uuid;primary_key" json:"id"`
	UserID       uuid.UUID    `gorm:"type:uuid;not null;index" json:"user_id"`
	ActivityType ActivityType `gorm:"type:varchar(50);not null;index" json:"activity_type"`
	DocumentID   *uuid.UUID   `gorm:"type:uuid;index" json:"document_id,omitempty"`
	Metadata     string       `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt    time.Time    `gorm:"index" json:"created_at"`
}

func (Activity) TableName() string {
	return "activities"
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	return nil
}

package services

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"gorm.io/gorm"
)

type ActivityService struct {
	db *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{
		db: db,
	}
}

// CreateActivity writes an audit row. Pass a transaction handle to make the
// row part of the change it describes.
func (s *ActivityService) CreateActivity(userID uuid.UUID, activityType models.ActivityType, documentID *uuid.UUID, metadata map[string]interface{}) error {
	metadataJSON := "{}"
	if len(metadata) > 0 {
		bytes, err := json.Marshal(metadata)
		if err == nil {
			metadataJSON = string(bytes)
		}
	}

	activity := models.Activity{
		UserID:       userID,
		ActivityType: activityType,
		DocumentID:   documentID,
		Metadata:     metadataJSON,
	}

	return s.db.Create(&activity).Error
}

// GetRecentActivities returns the newest activities of one user.
func (s *ActivityService) GetRecentActivities(userID uuid.UUID, limit int) ([]models.Activity, error) {
	var activities []models.Activity
	err := s.db.Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&activities).Error
	return activities, err
}

func recordActivity(tx *gorm.DB, userID uuid.UUID, activityType models.ActivityType, documentID uuid.UUID, metadata map[string]interface{}) error {
	return NewActivityService(tx).CreateActivity(userID, activityType, &documentID, metadata)
}

package database

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"github.com/sergiovlezh/documents-manager/internal/utils"
	"gorm.io/gorm"
)

// SeedDefaultUser creates an initial admin account when the users table is
// empty.
func SeedDefaultUser(db *gorm.DB) (*models.User, error) {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, err
	}

	if count > 0 {
		log.Debug().Msg("users already exist, skipping seed")
		return nil, nil
	}

	email := os.Getenv("DEFAULT_USER_EMAIL")
	if email == "" {
		email = "owner@documents.local"
	}

	password := os.Getenv("DEFAULT_USER_PASSWORD")
	generated := password == ""
	if generated {
		secret, err := utils.GenerateSecret(12)
		if err != nil {
			return nil, err
		}
		password = secret
	}

	name := os.Getenv("DEFAULT_USER_NAME")
	if name == "" {
		name = "Document Owner"
	}

	hashedPassword, err := utils.HashSecret(password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		DisplayName:  name,
		Role:         models.RoleAdmin,
	}

	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}

	event := log.Info().Str("email", email)
	if generated {
		// Shown once; there is no other way to learn it.
		event = event.Str("password", password)
	}
	event.Msg("created default user")
	return &user, nil
}

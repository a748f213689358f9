package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/sergiovlezh/documents-manager/internal/config"
	"github.com/sergiovlezh/documents-manager/internal/database"
	"github.com/sergiovlezh/documents-manager/internal/logger"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"gorm.io/gorm"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		log.Debug().Msg("no .env file found")
	}

	log.Info().Str("driver", cfg.DBDriver).Msg("starting schema migration")

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	if _, err := database.SeedDefaultUser(db); err != nil {
		log.Fatal().Err(err).Msg("failed to seed default user")
	}

	if err := verify(db); err != nil {
		log.Fatal().Err(err).Msg("verification failed")
	}

	log.Info().Msg("migration completed successfully")
}

// verify reports documents that break the at-least-one-file rule, which can
// only appear through manual edits of the database.
func verify(db *gorm.DB) error {
	var orphaned int64
	err := db.Model(&models.Document{}).
		Where("NOT EXISTS (SELECT 1 FROM document_files f WHERE f.document_id = documents.id)").
		Count(&orphaned).Error
	if err != nil {
		return err
	}

	if orphaned > 0 {
		log.Warn().Int64("documents", orphaned).Msg("found documents without files")
	} else {
		log.Info().Msg("every document has at least one file")
	}
	return nil
}

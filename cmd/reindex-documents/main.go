package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/sergiovlezh/documents-manager/internal/config"
	"github.com/sergiovlezh/documents-manager/internal/database"
	"github.com/sergiovlezh/documents-manager/internal/logger"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"github.com/sergiovlezh/documents-manager/internal/services"
)

const batchSize = 100

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		log.Debug().Msg("no .env file found")
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	searchService := services.NewSearchService(cfg)
	log.Info().Str("url", cfg.MeiliURL).Msg("meilisearch service initialized")

	var dbCount int64
	if err := db.Model(&models.Document{}).Count(&dbCount).Error; err != nil {
		log.Fatal().Err(err).Msg("failed to get document count from database")
	}

	meiliCount, err := searchService.GetDocumentCount()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get document count from meilisearch")
	}

	log.Info().Int64("database", dbCount).Int64("meilisearch", meiliCount).Msg("document counts")
	if meiliCount == dbCount {
		log.Info().Msg("counts match, refreshing every document anyway")
	} else {
		log.Info().Msg("counts differ, reindexing all documents")
	}

	totalIndexed := 0
	var lastID *uuid.UUID
	for {
		// Keyset pagination over ids.
		q := db.Model(&models.Document{}).Order("id asc").Limit(batchSize)
		if lastID != nil {
			q = q.Where("id > ?", *lastID)
		}

		var ids []uuid.UUID
		if err := q.Pluck("id", &ids).Error; err != nil {
			log.Fatal().Err(err).Msg("failed to fetch document ids")
		}
		if len(ids) == 0 {
			break
		}
		lastID = &ids[len(ids)-1]

		docs, err := services.LoadSearchDocuments(db, ids)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load documents")
		}

		if err := searchService.IndexDocuments(docs); err != nil {
			log.Error().Err(err).Str("after", lastID.String()).Msg("failed to index batch")
		} else {
			totalIndexed += len(docs)
			log.Info().Int("batch", len(docs)).Int("total", totalIndexed).Msg("indexed batch")
		}

		time.Sleep(100 * time.Millisecond)
	}

	finalCount, err := searchService.GetDocumentCount()
	if err != nil {
		log.Error().Err(err).Msg("failed to get final count")
	}

	log.Info().Int("indexed", totalIndexed).Int64("meilisearch", finalCount).Msg("reindexing completed")
}

package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/sergiovlezh/documents-manager/internal/config"
	"github.com/sergiovlezh/documents-manager/internal/handlers"
	"github.com/sergiovlezh/documents-manager/internal/middleware"
	"github.com/sergiovlezh/documents-manager/internal/services"
	"gorm.io/gorm"
)

// Dependencies are the backends the API runs on. Search, Index and
// RateLimiter are optional; Blobs is required for uploads and downloads.
type Dependencies struct {
	DB          *gorm.DB
	Blobs       services.BlobStore
	Search      *services.SearchService
	Index       *services.IndexQueue
	RateLimiter *middleware.RateLimiter
	Policy      services.AccessPolicy
}

// Close drains pending index updates and releases the rate limiter.
func (d Dependencies) Close() {
	if d.Index != nil {
		d.Index.Close()
	}
	if d.RateLimiter != nil {
		if err := d.RateLimiter.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close rate limiter")
		}
	}
}

// Setup connects the optional backends from cfg and builds the engine. The
// returned Dependencies must be closed after the server stops.
func Setup(db *gorm.DB, cfg *config.Config) (*gin.Engine, Dependencies) {
	deps := Dependencies{DB: db}

	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize storage service")
	} else {
		deps.Blobs = storageService
	}

	if cfg.MeiliURL != "" {
		deps.Search = services.NewSearchService(cfg)
		deps.Index = services.NewIndexQueue(db, deps.Search)
	}

	limiter, err := middleware.NewRateLimiter(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("rate limiting disabled")
	} else {
		deps.RateLimiter = limiter
	}

	return New(cfg, deps), deps
}

func New(cfg *config.Config, deps Dependencies) *gin.Engine {
	opts := []services.Option{services.WithPolicy(deps.Policy)}
	if deps.Index != nil {
		opts = append(opts, services.WithIndexQueue(deps.Index))
	}

	documentService := services.NewDocumentService(deps.DB, deps.Blobs, opts...)
	metadataService := services.NewMetadataService(deps.DB, opts...)
	noteService := services.NewNoteService(deps.DB, opts...)
	tagService := services.NewTagService(deps.DB, opts...)
	mergeService := services.NewMergeService(deps.DB, opts...)
	queryService := services.NewQueryService(deps.DB, opts...)
	activityService := services.NewActivityService(deps.DB)

	gin.SetMode(cfg.GinMode)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept-Language"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
	}))

	r.GET("/health", handlers.HealthCheck(deps.DB, handlers.Components{
		Storage:     deps.Blobs != nil,
		Search:      deps.Search != nil,
		RateLimiter: deps.RateLimiter != nil,
	}))

	// A nil limiter passes every request through.
	throttle := deps.RateLimiter.RateLimitByUser(cfg.RateLimitRequests, cfg.RateLimitWindow)

	api := r.Group("/api/v1")
	{
		// Public routes
		auth := api.Group("/auth")
		auth.Use(deps.RateLimiter.RateLimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow))
		{
			auth.POST("/register", handlers.Register(deps.DB, cfg))
			auth.POST("/login", handlers.Login(deps.DB, cfg))
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(cfg))
		{
			protected.GET("/auth/me", handlers.GetCurrentUser(deps.DB))

			// Documents
			protected.GET("/documents", handlers.ListDocuments(queryService))
			protected.POST("/documents", throttle, handlers.CreateDocument(cfg, documentService))
			protected.POST("/documents/merge", throttle, handlers.MergeDocuments(mergeService))
			protected.GET("/documents/:id", handlers.GetDocument(queryService))
			protected.PATCH("/documents/:id", handlers.UpdateDocument(documentService))
			protected.DELETE("/documents/:id", handlers.DeleteDocument(documentService))

			// Files
			protected.GET("/documents/:id/latest-file", handlers.LatestFile(queryService))
			protected.POST("/documents/:id/files", throttle, handlers.AddFiles(cfg, documentService))
			protected.DELETE("/documents/:id/files/:file_id", handlers.RemoveFile(documentService))
			protected.GET("/documents/:id/files/:file_id/download", handlers.DownloadFile(documentService))

			// Metadata
			protected.GET("/documents/:id/metadata", handlers.ListMetadata(metadataService))
			protected.PUT("/documents/:id/metadata", handlers.SetMetadata(metadataService))
			protected.DELETE("/documents/:id/metadata/:key", handlers.DeleteMetadata(metadataService))

			// Notes
			protected.GET("/documents/:id/notes", handlers.ListNotes(noteService))
			protected.POST("/documents/:id/notes", handlers.CreateNote(noteService))
			protected.DELETE("/documents/:id/notes/:note_id", handlers.DeleteNote(noteService))

			// Tags
			protected.GET("/documents/:id/tags", handlers.ListDocumentTags(tagService))
			protected.POST("/documents/:id/tags", handlers.AssignTag(tagService))
			protected.DELETE("/documents/:id/tags/:name", handlers.UnassignTag(tagService))
			protected.GET("/tags", handlers.ListTags(tagService))

			// Activities
			protected.GET("/activities/recent", handlers.GetRecentActivities(activityService))

			// Search
			protected.GET("/search", handlers.Search(deps.Search))
		}

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired(cfg), middleware.AdminRequired())
		{
			admin.DELETE("/tags/:name", handlers.DeleteTag(tagService))
		}
	}

	return r
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/sergiovlezh/documents-manager/internal/config"
	"github.com/sergiovlezh/documents-manager/internal/database"
	"github.com/sergiovlezh/documents-manager/internal/logger"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"github.com/sergiovlezh/documents-manager/internal/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// importItem is one document to create: a title and the files it consists of.
type importItem struct {
	Title string
	Paths []string
}

func main() {
	var (
		ownerEmail string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "import-documents <dir>",
		Short: "Import a directory tree as documents",
		Long: `Each sub-directory of <dir> becomes one document made of every file
below it. Each file directly inside <dir> becomes a single-file document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], ownerEmail, dryRun)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&ownerEmail, "owner", "", "email of the user that will own the documents (default: first admin)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list what would be imported without writing anything")

	envErr := godotenv.Load()
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		log.Debug().Msg("no .env file found")
	}

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("import failed")
	}
}

func run(ctx context.Context, dir, ownerEmail string, dryRun bool) error {
	items, err := collectImports(dir)
	if err != nil {
		return err
	}
	log.Info().Int("documents", len(items)).Str("dir", dir).Msg("collected import items")

	if dryRun {
		for _, item := range items {
			log.Info().Str("title", item.Title).Int("files", len(item.Paths)).Msg("would import")
		}
		return nil
	}

	cfg := config.Load()
	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		return err
	}

	owner, err := findOwner(db, ownerEmail)
	if err != nil {
		return err
	}
	log.Info().Str("email", owner.Email).Str("user_id", owner.ID.String()).Msg("importing as user")

	storage, err := services.NewStorageService(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage service: %w", err)
	}
	var opts []services.Option
	if cfg.MeiliURL != "" {
		index := services.NewIndexQueue(db, services.NewSearchService(cfg))
		defer index.Close()
		opts = append(opts, services.WithIndexQueue(index))
	}
	docs := services.NewDocumentService(db, storage, opts...)

	imported, failed, files := importAll(ctx, docs, owner.ID, items)
	log.Info().Int("imported", imported).Int("failed", failed).Int("files", files).Msg("import summary")
	if failed > 0 {
		return fmt.Errorf("%d documents failed to import", failed)
	}
	return nil
}

// importAll creates one document per item and keeps going past failures.
func importAll(ctx context.Context, docs *services.DocumentService, owner uuid.UUID, items []importItem) (imported, failed, files int) {
	for _, item := range items {
		doc, err := importItemAsDocument(ctx, docs, owner, item)
		if err != nil {
			log.Error().Err(err).Str("title", item.Title).Msg("failed to import document")
			failed++
			continue
		}
		imported++
		files += len(doc.Files)
		log.Info().Str("document_id", doc.ID.String()).Str("title", doc.Title).Int("files", len(doc.Files)).Msg("imported document")
	}
	return imported, failed, files
}

// collectImports walks dir and groups files into documents. Hidden entries
// and empty files are skipped. Results are sorted for a stable import order.
func collectImports(dir string) ([]importItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var items []importItem
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		if !entry.IsDir() {
			if nonEmptyFile(entry) {
				items = append(items, importItem{Paths: []string{path}})
			}
			continue
		}

		var paths []string
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() && nonEmptyFile(d) {
				paths = append(paths, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			log.Warn().Str("dir", path).Msg("skipping directory without files")
			continue
		}
		sort.Strings(paths)
		items = append(items, importItem{Title: entry.Name(), Paths: paths})
	}
	return items, nil
}

func nonEmptyFile(d fs.DirEntry) bool {
	info, err := d.Info()
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

func importItemAsDocument(ctx context.Context, docs *services.DocumentService, owner uuid.UUID, item importItem) (*models.Document, error) {
	uploads := make([]services.FileUpload, 0, len(item.Paths))
	for _, p := range item.Paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, err
		}

		contentType := mime.TypeByExtension(filepath.Ext(p))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		uploads = append(uploads, services.FileUpload{
			Filename:    filepath.Base(p),
			ContentType: contentType,
			Size:        info.Size(),
			Content:     f,
		})
	}

	return docs.Create(ctx, owner, services.CreateDocumentInput{
		Title: item.Title,
		Files: uploads,
	})
}

func findOwner(db *gorm.DB, email string) (*models.User, error) {
	var user models.User
	if email != "" {
		if err := db.Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
			return nil, fmt.Errorf("user %s not found: %w", email, err)
		}
		return &user, nil
	}

	err := db.Where("role = ?", models.RoleAdmin).Order("created_at asc").First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error checking for admin user: %w", err)
	}
	return nil, errors.New("no admin user found, pass --owner or run cmd/migrate to seed one")
}

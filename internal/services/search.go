package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog/log"
	"github.com/sergiovlezh/documents-manager/internal/config"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"gorm.io/gorm"
)

const documentsIndex = "documents"

// SearchDocument is the denormalized shape stored in the search index.
type SearchDocument struct {
	ID          string   `json:"id"`
	OwnerID     string   `json:"owner_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Filenames   []string `json:"filenames"`
	Tags        []string `json:"tags"`
	Metadata    []string `json:"metadata"`
	CreatedAt   int64    `json:"created_at"`
}

// Indexer receives committed document state.
type Indexer interface {
	IndexDocuments(docs []SearchDocument) error
	DeleteDocuments(ids []string) error
}

type SearchService struct {
	client *meilisearch.Client
	index  string
}

func NewSearchService(cfg *config.Config) *SearchService {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   cfg.MeiliURL,
		APIKey: cfg.MeiliAPIKey,
	})

	// Ensure documents index exists (best effort)
	_, err := client.GetIndex(documentsIndex)
	if err != nil {
		_, err = client.CreateIndex(&meilisearch.IndexConfig{
			Uid:        documentsIndex,
			PrimaryKey: "id",
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to create meilisearch documents index")
		}

		_, err = client.Index(documentsIndex).UpdateFilterableAttributes(&[]string{"owner_id", "tags"})
		if err != nil {
			log.Warn().Err(err).Msg("failed to update filterable attributes")
		}

		_, err = client.Index(documentsIndex).UpdateSortableAttributes(&[]string{"created_at", "title"})
		if err != nil {
			log.Warn().Err(err).Msg("failed to update sortable attributes")
		}

		_, err = client.Index(documentsIndex).UpdateSearchableAttributes(&[]string{"title", "description", "filenames", "tags", "metadata"})
		if err != nil {
			log.Warn().Err(err).Msg("failed to update searchable attributes")
		}
	}

	return &SearchService{
		client: client,
		index:  documentsIndex,
	}
}

func (s *SearchService) IndexDocuments(docs []SearchDocument) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := s.client.Index(s.index).AddDocuments(docs)
	return err
}

func (s *SearchService) DeleteDocuments(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.client.Index(s.index).DeleteDocuments(ids)
	return err
}

// Search runs a full-text query restricted to one owner's documents.
func (s *SearchService) Search(query string, ownerID uuid.UUID, limit int64) (*meilisearch.SearchResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	request := &meilisearch.SearchRequest{
		Limit:  limit,
		Filter: fmt.Sprintf("owner_id = %q", ownerID.String()),
	}

	return s.client.Index(s.index).Search(query, request)
}

func (s *SearchService) GetDocumentCount() (int64, error) {
	stats, err := s.client.Index(s.index).GetStats()
	if err != nil {
		return 0, err
	}
	return stats.NumberOfDocuments, nil
}

// LoadSearchDocuments builds index entries for the given documents with one
// query per relation. Tags are indexed under every user who applied them.
func LoadSearchDocuments(db *gorm.DB, ids []uuid.UUID) ([]SearchDocument, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var docs []models.Document
	err := db.Where("id IN ?", ids).
		Preload("Files").
		Preload("Metadata").
		Preload("Tags.Tag").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}

	out := make([]SearchDocument, 0, len(docs))
	for _, d := range docs {
		out = append(out, toSearchDocument(d))
	}
	return out, nil
}

func toSearchDocument(d models.Document) SearchDocument {
	sd := SearchDocument{
		ID:          d.ID.String(),
		OwnerID:     d.OwnerID.String(),
		Title:       d.Title,
		Description: d.Description,
		Filenames:   make([]string, 0, len(d.Files)),
		Tags:        make([]string, 0, len(d.Tags)),
		Metadata:    make([]string, 0, len(d.Metadata)),
		CreatedAt:   d.CreatedAt.Unix(),
	}
	for _, f := range d.Files {
		sd.Filenames = append(sd.Filenames, f.OriginalFilename)
	}
	seen := make(map[string]bool)
	for _, t := range d.Tags {
		if !seen[t.Tag.Name] {
			seen[t.Tag.Name] = true
			sd.Tags = append(sd.Tags, t.Tag.Name)
		}
	}
	for _, m := range d.Metadata {
		sd.Metadata = append(sd.Metadata, m.Key+": "+m.Value)
	}
	return sd
}

// reindex queues a refresh of ids once the change is committed. Index
// failures never fail the mutation.
func (o options) reindex(ids ...uuid.UUID) {
	if o.index != nil {
		o.index.Reindex(ids...)
	}
}

func (o options) unindex(ids ...uuid.UUID) {
	if o.index != nil {
		o.index.Remove(ids...)
	}
}

package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"gorm.io/gorm"
)

// Ordering is a list ordering for documents. A leading "-" means descending.
type Ordering string

const (
	OrderNewest   Ordering = "-created_at"
	OrderOldest   Ordering = "created_at"
	OrderTitle    Ordering = "title"
	OrderTitleRev Ordering = "-title"
)

var orderClauses = map[Ordering]string{
	OrderNewest:   "documents.created_at desc",
	OrderOldest:   "documents.created_at asc",
	OrderTitle:    "documents.title asc",
	OrderTitleRev: "documents.title desc",
}

// ParseOrdering maps a query parameter onto an Ordering, falling back to
// newest first.
func ParseOrdering(raw string) Ordering {
	o := Ordering(strings.TrimSpace(raw))
	if _, ok := orderClauses[o]; ok {
		return o
	}
	return OrderNewest
}

// DocumentFilter narrows a listing. Zero values do not filter.
type DocumentFilter struct {
	Query       string
	TagNames    []string
	MetadataKey string
}

type Page struct {
	Limit  int
	Offset int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// DocumentSummary is one row of a listing.
type DocumentSummary struct {
	models.Document
	FileCount int64                `json:"file_count"`
	Tags      []models.DocumentTag `json:"tags"`
}

// DocumentDetail is the full view of a document for one user.
type DocumentDetail struct {
	models.Document
	Files    []models.DocumentFile     `json:"files"`
	Tags     []models.DocumentTag      `json:"tags"`
	Metadata []models.DocumentMetadata `json:"metadata"`
	Notes    []models.DocumentNote     `json:"notes"`
}

// QueryService answers read-only questions about documents.
type QueryService struct {
	db   *gorm.DB
	opts options
}

func NewQueryService(db *gorm.DB, opts ...Option) *QueryService {
	return &QueryService{db: db, opts: newOptions(opts)}
}

// ListDocuments returns the user's documents. Related counts and tags are
// fetched with one query each for the whole page.
func (s *QueryService) ListDocuments(ctx context.Context, user uuid.UUID, filter DocumentFilter, order Ordering, page Page) ([]DocumentSummary, int64, error) {
	db := s.db.WithContext(ctx)
	page = page.normalize()

	q := s.filtered(db, user, filter)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []models.Document
	err := s.filtered(db, user, filter).
		Order(orderClauses[ParseOrdering(string(order))]).
		Order("documents.id asc").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	if len(docs) == 0 {
		return []DocumentSummary{}, total, nil
	}

	ids := make([]uuid.UUID, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	counts, err := countFiles(db, ids)
	if err != nil {
		return nil, 0, err
	}
	tags, err := listDocumentTags(db, ids, &user)
	if err != nil {
		return nil, 0, err
	}
	tagsByDoc := make(map[uuid.UUID][]models.DocumentTag, len(docs))
	for _, t := range tags {
		tagsByDoc[t.DocumentID] = append(tagsByDoc[t.DocumentID], t)
	}

	out := make([]DocumentSummary, len(docs))
	for i, d := range docs {
		docTags := tagsByDoc[d.ID]
		if docTags == nil {
			docTags = []models.DocumentTag{}
		}
		out[i] = DocumentSummary{Document: d, FileCount: counts[d.ID], Tags: docTags}
	}
	return out, total, nil
}

// GetDocument returns the document with its files in upload order and the
// user's own tags. Documents the user cannot read are reported as missing.
func (s *QueryService) GetDocument(ctx context.Context, id, user uuid.UUID) (*DocumentDetail, error) {
	db := s.db.WithContext(ctx)
	doc, err := s.opts.readableDocument(ctx, db, id, user, false)
	if err != nil {
		return nil, err
	}

	detail := DocumentDetail{Document: *doc}
	if err := db.Where("document_id = ?", id).Order("created_at asc").Order("id asc").Find(&detail.Files).Error; err != nil {
		return nil, err
	}
	if detail.Tags, err = listDocumentTags(db, []uuid.UUID{id}, &user); err != nil {
		return nil, err
	}
	if err := db.Where("document_id = ?", id).Order("key asc").Find(&detail.Metadata).Error; err != nil {
		return nil, err
	}
	if detail.Notes, err = listNotes(db, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// MostRecentFile returns the newest file of a document the caller can see,
// or nil when it has none.
func (s *QueryService) MostRecentFile(ctx context.Context, documentID, caller uuid.UUID) (*models.DocumentFile, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.opts.readableDocument(ctx, db, documentID, caller, false); err != nil {
		return nil, err
	}

	var files []models.DocumentFile
	err := db.
		Where("document_id = ?", documentID).
		Order("created_at desc").
		Order("id desc").
		Limit(1).
		Find(&files).Error
	if err != nil || len(files) == 0 {
		return nil, err
	}
	return &files[0], nil
}

// filtered builds the owner-scoped listing query. It is rebuilt for every
// statement since gorm chains are not reusable after Count.
func (s *QueryService) filtered(db *gorm.DB, user uuid.UUID, filter DocumentFilter) *gorm.DB {
	q := db.Model(&models.Document{}).Where("documents.owner_id = ?", user)
	if term := strings.TrimSpace(filter.Query); term != "" {
		like := "%" + escapeLike(strings.ToLower(term)) + "%"
		q = q.Where("(LOWER(documents.title) LIKE ? ESCAPE '\\' OR LOWER(documents.description) LIKE ? ESCAPE '\\')", like, like)
	}
	if names := normalizeTagNames(filter.TagNames); len(names) > 0 {
		tagged := db.Model(&models.DocumentTag{}).
			Select("document_tags.document_id").
			Joins("JOIN tags ON tags.id = document_tags.tag_id").
			Where("document_tags.owner_id = ? AND tags.name IN ?", user, names)
		q = q.Where("documents.id IN (?)", tagged)
	}
	if key := strings.TrimSpace(filter.MetadataKey); key != "" {
		withKey := db.Model(&models.DocumentMetadata{}).Select("document_id").Where("key = ?", key)
		q = q.Where("documents.id IN (?)", withKey)
	}
	return q
}

func countFiles(db *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	var rows []struct {
		DocumentID uuid.UUID
		Total      int64
	}
	err := db.Model(&models.DocumentFile{}).
		Select("document_id, COUNT(*) AS total").
		Where("document_id IN ?", ids).
		Group("document_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		counts[r.DocumentID] = r.Total
	}
	return counts, nil
}

func normalizeTagNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = NormalizeTagName(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

package services

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"gorm.io/gorm"
)

// MergeService folds several documents into the first one of them.
type MergeService struct {
	db   *gorm.DB
	opts options
}

func NewMergeService(db *gorm.DB, opts ...Option) *MergeService {
	return &MergeService{db: db, opts: newOptions(opts)}
}

// Merge combines sourceIDs into sourceIDs[0], the survivor, and deletes the
// rest. The survivor keeps its title and description and wins every
// metadata key conflict; among the others, earlier sources win. Tag
// assignments that would duplicate a survivor (tag, owner) pair are dropped.
// Everything happens in one transaction with all participants locked.
func (s *MergeService) Merge(ctx context.Context, sourceIDs []uuid.UUID, caller uuid.UUID) (*models.Document, error) {
	if len(sourceIDs) < 2 {
		return nil, validationError("at least two documents are required to merge")
	}
	seen := make(map[uuid.UUID]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		if seen[id] {
			return nil, validationError("cannot merge a document with itself")
		}
		seen[id] = true
	}

	survivorID := sourceIDs[0]
	absorbed := sourceIDs[1:]

	var survivor models.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockParticipants(ctx, tx, sourceIDs, caller); err != nil {
			return err
		}

		if err := tx.Model(&models.DocumentFile{}).
			Where("document_id IN ?", absorbed).
			Update("document_id", survivorID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.DocumentNote{}).
			Where("document_id IN ?", absorbed).
			Update("document_id", survivorID).Error; err != nil {
			return err
		}
		if err := mergeMetadata(tx, survivorID, absorbed); err != nil {
			return err
		}
		if err := mergeTags(tx, survivorID, absorbed); err != nil {
			return err
		}

		for _, id := range absorbed {
			if _, err := deleteDocumentRows(tx, id); err != nil {
				return err
			}
		}

		merged := make([]string, len(absorbed))
		for i, id := range absorbed {
			merged[i] = id.String()
		}
		if err := recordActivity(tx, caller, models.ActivityDocumentsMerged, survivorID, map[string]interface{}{
			"merged_document_ids": merged,
		}); err != nil {
			return err
		}

		return tx.Preload("Files", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc").Order("id asc")
		}).First(&survivor, "id = ?", survivorID).Error
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("survivor_id", survivorID.String()).
		Int("merged", len(absorbed)).
		Msg("documents merged")
	s.opts.reindex(survivorID)
	s.opts.unindex(absorbed...)
	return &survivor, nil
}

// lockParticipants locks every document in id order, so two merges over
// overlapping sets cannot deadlock, and checks ownership.
func (s *MergeService) lockParticipants(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, caller uuid.UUID) error {
	var docs []models.Document
	if err := forUpdate(tx).Where("id IN ?", ids).Order("id").Find(&docs).Error; err != nil {
		return err
	}
	if len(docs) != len(ids) {
		return notFoundError("one or more documents do not exist")
	}
	for i := range docs {
		if !s.opts.policy.CanWrite(ctx, caller, &docs[i]) {
			return permissionError("all merged documents must belong to the caller")
		}
	}
	return nil
}

// mergeMetadata moves over the keys the survivor lacks and drops the rest.
func mergeMetadata(tx *gorm.DB, survivorID uuid.UUID, absorbed []uuid.UUID) error {
	var existing []string
	if err := tx.Model(&models.DocumentMetadata{}).Where("document_id = ?", survivorID).Pluck("key", &existing).Error; err != nil {
		return err
	}
	taken := make(map[string]bool, len(existing))
	for _, k := range existing {
		taken[k] = true
	}

	var incoming []models.DocumentMetadata
	if err := tx.Where("document_id IN ?", absorbed).Find(&incoming).Error; err != nil {
		return err
	}
	sortBySource(incoming, absorbed, func(m models.DocumentMetadata) (uuid.UUID, string) {
		return m.DocumentID, m.Key
	})

	var move, drop []uuid.UUID
	for _, m := range incoming {
		if taken[m.Key] {
			drop = append(drop, m.ID)
			continue
		}
		taken[m.Key] = true
		move = append(move, m.ID)
	}

	// Drop first so the unique (document_id, key) index never sees a duplicate.
	if len(drop) > 0 {
		if err := tx.Where("id IN ?", drop).Delete(&models.DocumentMetadata{}).Error; err != nil {
			return err
		}
	}
	if len(move) > 0 {
		if err := tx.Model(&models.DocumentMetadata{}).Where("id IN ?", move).Update("document_id", survivorID).Error; err != nil {
			return err
		}
	}
	return nil
}

// mergeTags reparents assignments unless the survivor already has the same
// (tag, owner) pair.
func mergeTags(tx *gorm.DB, survivorID uuid.UUID, absorbed []uuid.UUID) error {
	type pair struct{ tag, owner uuid.UUID }

	var existing []models.DocumentTag
	if err := tx.Where("document_id = ?", survivorID).Find(&existing).Error; err != nil {
		return err
	}
	taken := make(map[pair]bool, len(existing))
	for _, t := range existing {
		taken[pair{t.TagID, t.OwnerID}] = true
	}

	var incoming []models.DocumentTag
	if err := tx.Where("document_id IN ?", absorbed).Find(&incoming).Error; err != nil {
		return err
	}
	sortBySource(incoming, absorbed, func(t models.DocumentTag) (uuid.UUID, string) {
		return t.DocumentID, t.TagID.String() + t.OwnerID.String()
	})

	var move, drop []uuid.UUID
	for _, t := range incoming {
		p := pair{t.TagID, t.OwnerID}
		if taken[p] {
			drop = append(drop, t.ID)
			continue
		}
		taken[p] = true
		move = append(move, t.ID)
	}

	if len(drop) > 0 {
		if err := tx.Where("id IN ?", drop).Delete(&models.DocumentTag{}).Error; err != nil {
			return err
		}
	}
	if len(move) > 0 {
		if err := tx.Model(&models.DocumentTag{}).Where("id IN ?", move).Update("document_id", survivorID).Error; err != nil {
			return err
		}
	}
	return nil
}

// sortBySource orders rows by the position of their document in order, then
// by a stable secondary key.
func sortBySource[T any](rows []T, order []uuid.UUID, key func(T) (uuid.UUID, string)) {
	pos := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	sort.SliceStable(rows, func(i, j int) bool {
		di, ki := key(rows[i])
		dj, kj := key(rows[j])
		if pos[di] != pos[dj] {
			return pos[di] < pos[dj]
		}
		return ki < kj
	})
}

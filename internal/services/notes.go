package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"gorm.io/gorm"
)

// NoteService is an append-only ledger of notes per document.
type NoteService struct {
	db   *gorm.DB
	opts options
}

func NewNoteService(db *gorm.DB, opts ...Option) *NoteService {
	return &NoteService{db: db, opts: newOptions(opts)}
}

func (s *NoteService) Add(ctx context.Context, documentID, author uuid.UUID, body string) (*models.DocumentNote, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, validationError("note body cannot be empty")
	}

	note := models.DocumentNote{
		DocumentID: documentID,
		AuthorID:   author,
		Body:       body,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.opts.readableDocument(ctx, tx, documentID, author, false); err != nil {
			return err
		}
		return tx.Create(&note).Error
	})
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// List returns notes oldest first; equal timestamps fall back to id order.
func (s *NoteService) List(ctx context.Context, documentID, caller uuid.UUID) ([]models.DocumentNote, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.opts.readableDocument(ctx, db, documentID, caller, false); err != nil {
		return nil, err
	}
	return listNotes(db, documentID)
}

// Delete removes a single note. The author and the document owner may do so.
func (s *NoteService) Delete(ctx context.Context, documentID, caller, noteID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := s.opts.readableDocument(ctx, tx, documentID, caller, false)
		if err != nil {
			return err
		}

		var note models.DocumentNote
		if err := tx.First(&note, "id = ? AND document_id = ?", noteID, documentID).Error; err != nil {
			return translate(err, "note")
		}
		if note.AuthorID != caller && !s.opts.policy.CanWrite(ctx, caller, doc) {
			return permissionError("only the author or the document owner can delete a note")
		}
		return tx.Delete(&note).Error
	})
}

func listNotes(db *gorm.DB, documentID uuid.UUID) ([]models.DocumentNote, error) {
	var notes []models.DocumentNote
	err := db.Where("document_id = ?", documentID).
		Order("created_at asc").
		Order("id asc").
		Find(&notes).Error
	return notes, err
}

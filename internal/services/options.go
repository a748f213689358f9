package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Option configures the collaborators shared by the document services.
type Option func(*options)

type options struct {
	policy AccessPolicy
	index  *IndexQueue
}

func WithPolicy(p AccessPolicy) Option {
	return func(o *options) {
		if p != nil {
			o.policy = p
		}
	}
}

// WithIndexQueue enables search index maintenance after each committed
// change. Services sharing one queue get their index updates applied in
// commit order.
func WithIndexQueue(q *IndexQueue) Option {
	return func(o *options) {
		if q != nil {
			o.index = q
		}
	}
}

func newOptions(opts []Option) options {
	o := options{policy: NewOwnershipPolicy()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// forUpdate adds a row lock where the dialect has one. SQLite serializes
// writers on its own and rejects FOR UPDATE.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func loadDocument(tx *gorm.DB, id uuid.UUID, lock bool) (*models.Document, error) {
	q := tx
	if lock {
		q = forUpdate(tx)
	}
	var doc models.Document
	if err := q.First(&doc, "id = ?", id).Error; err != nil {
		return nil, translate(err, "document")
	}
	return &doc, nil
}

// readableDocument loads a document the caller may see. Invisible documents
// are reported as missing.
func (o options) readableDocument(ctx context.Context, tx *gorm.DB, id, caller uuid.UUID, lock bool) (*models.Document, error) {
	doc, err := loadDocument(tx, id, lock)
	if err != nil {
		return nil, err
	}
	if !o.policy.CanRead(ctx, caller, doc) {
		return nil, notFoundError("document not found")
	}
	return doc, nil
}

// writableDocument loads a document the caller may change.
func (o options) writableDocument(ctx context.Context, tx *gorm.DB, id, caller uuid.UUID, lock bool) (*models.Document, error) {
	doc, err := loadDocument(tx, id, lock)
	if err != nil {
		return nil, err
	}
	if !o.policy.CanWrite(ctx, caller, doc) {
		return nil, permissionError("only the document owner can modify it")
	}
	return doc, nil
}

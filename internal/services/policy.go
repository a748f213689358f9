package services

import (
	"context"

	"github.com/google/uuid"
)

// Ownable is implemented by resources that belong to exactly one user.
type Ownable interface {
	GetOwnerID() uuid.UUID
}

// AccessPolicy decides who may see and who may change a document.
type AccessPolicy interface {
	CanRead(ctx context.Context, userID uuid.UUID, resource Ownable) bool
	CanWrite(ctx context.Context, userID uuid.UUID, resource Ownable) bool
}

// OwnershipPolicy grants read and write access to the owner only.
// A sharing feature can be layered on by wrapping it.
type OwnershipPolicy struct{}

func NewOwnershipPolicy() *OwnershipPolicy {
	return &OwnershipPolicy{}
}

func (p *OwnershipPolicy) CanRead(_ context.Context, userID uuid.UUID, resource Ownable) bool {
	return resource != nil && userID != uuid.Nil && resource.GetOwnerID() == userID
}

func (p *OwnershipPolicy) CanWrite(ctx context.Context, userID uuid.UUID, resource Ownable) bool {
	return p.CanRead(ctx, userID, resource)
}

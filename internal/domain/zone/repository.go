package zone

import (
	"context"

	"github.com/google/uuid"
)

// DraftRepository defines the persistence contract for the staging set.
type DraftRepository interface {
	// SaveBatch persists a new batch together with its drafts atomically.
	SaveBatch(ctx context.Context, batch *Batch, drafts []*Draft) error

	// FindBatch retrieves a batch by its identifier.
	FindBatch(ctx context.Context, batchID uuid.UUID) (*Batch, error)

	// FindByID retrieves a staged draft within a batch.
	FindByID(ctx context.Context, batchID, draftID uuid.UUID) (*Draft, error)

	// ListByBatch retrieves a batch's staged drafts in document order with pagination.
	ListByBatch(ctx context.Context, batchID uuid.UUID, page, limit int) ([]*Draft, int64, error)

	// ListAllByBatch retrieves every staged draft of a batch in document order.
	ListAllByBatch(ctx context.Context, batchID uuid.UUID) ([]*Draft, error)

	// Update persists changes to an existing draft with optimistic locking.
	Update(ctx context.Context, draft *Draft) error

	// Delete removes a draft from the staging set.
	Delete(ctx context.Context, batchID, draftID uuid.UUID) error
}

// Service is the outbound zone storage service.
type Service interface {
	ListZones(ctx context.Context, storeID string) ([]Zone, error)
	CreateZone(ctx context.Context, in CreateInput) (*Zone, error)
	UpdateZone(ctx context.Context, zoneID string, patch Patch) (*Zone, error)
	DeleteZone(ctx context.Context, zoneID string) error
}

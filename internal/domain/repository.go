package domain

import "context"

// RecipeRepository defines persistence for generated recipes. SaveChunk is
// transactional per chunk: either every item of the chunk is written or none.
type RecipeRepository interface {
	SaveChunk(ctx context.Context, batchID string, chunk int, items []ValidatedItem) ([]PersistedItem, error)
	UpdateImageRef(ctx context.Context, itemID, imageRef string) error
	GetByID(ctx context.Context, itemID string) (*PersistedItem, error)
	ListByBatch(ctx context.Context, batchID string) ([]PersistedItem, error)
}

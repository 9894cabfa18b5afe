package pipeline

import (
	"context"
	"fmt"
	"time"

	"batchgen/internal/domain"
	"batchgen/internal/infra"
	"batchgen/internal/metrics"
)

const (
	persistAttempts = 2 // one try plus one retry
	persistBackoff  = 2 * time.Second
)

// Persister writes validated chunks through the recipe repository. Each
// chunk is one transaction: all items land or none do, so a failed chunk can
// simply be retried whole.
type Persister struct {
	repo   domain.RecipeRepository
	logger infra.Logger
}

// NewPersister creates the persistence agent.
func NewPersister(repo domain.RecipeRepository, logger infra.Logger) *Persister {
	return &Persister{repo: repo, logger: logger}
}

// SaveChunk persists one chunk transactionally. Every item is written with
// the placeholder image reference so the synchronous path never waits on the
// image pipeline.
func (p *Persister) SaveChunk(ctx context.Context, batchID string, chunk int, items []domain.ValidatedItem) ([]domain.PersistedItem, error) {
	start := time.Now()
	var persisted []domain.PersistedItem
	err := withRetry(ctx, persistAttempts, persistBackoff, func(ctx context.Context) error {
		var saveErr error
		persisted, saveErr = p.repo.SaveChunk(ctx, batchID, chunk, items)
		return saveErr
	})
	metrics.ObserveAgent(domain.AgentStorage, start, err)
	if err != nil {
		return nil, fmt.Errorf("persist chunk %d: %w", chunk, err)
	}

	p.logger.Info().
		Str("batch_id", batchID).
		Int("chunk", chunk).
		Int("items", len(persisted)).
		Msg("persister: chunk committed")

	return persisted, nil
}

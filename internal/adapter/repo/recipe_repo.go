package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"batchgen/internal/domain"
)

// RecipeRepositoryPG implements domain.RecipeRepository.
type RecipeRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewRecipeRepository creates a new recipe repository backed by PostgreSQL.
func NewRecipeRepository(pool *pgxpool.Pool) *RecipeRepositoryPG {
	return &RecipeRepositoryPG{pool: pool}
}

// SaveChunk inserts every item in one transaction. Either the whole chunk
// lands or none of it does; a retry after a failed commit cannot produce
// partial duplicates.
func (r *RecipeRepositoryPG) SaveChunk(ctx context.Context, batchID string, chunk int, items []domain.ValidatedItem) ([]domain.PersistedItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin chunk tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
INSERT INTO recipes (id, batch_id, chunk, title, description, cuisine, difficulty, servings, prep_minutes, cook_minutes, ingredients, steps, nutrition, quality_score, corrections, image_ref)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING created_at;
`
	persisted := make([]domain.PersistedItem, 0, len(items))
	for _, item := range items {
		ingredients, mErr := json.Marshal(item.Ingredients)
		if mErr != nil {
			return nil, fmt.Errorf("marshal ingredients: %w", mErr)
		}
		steps, mErr := json.Marshal(item.Steps)
		if mErr != nil {
			return nil, fmt.Errorf("marshal steps: %w", mErr)
		}
		nutrition, mErr := json.Marshal(item.Nutrition)
		if mErr != nil {
			return nil, fmt.Errorf("marshal nutrition: %w", mErr)
		}
		corrections, mErr := json.Marshal(item.Corrections)
		if mErr != nil {
			return nil, fmt.Errorf("marshal corrections: %w", mErr)
		}

		id := uuid.NewString()
		var createdAt time.Time
		row := tx.QueryRow(ctx, query,
			id,
			batchID,
			chunk,
			item.Title,
			item.Description,
			item.Cuisine,
			item.Difficulty,
			item.Servings,
			item.PrepMinutes,
			item.CookMinutes,
			ingredients,
			steps,
			nutrition,
			item.QualityScore,
			corrections,
			domain.PlaceholderImageRef,
		)
		if err := row.Scan(&createdAt); err != nil {
			return nil, fmt.Errorf("insert recipe %q: %w", item.Title, err)
		}

		persisted = append(persisted, domain.PersistedItem{
			ID:            id,
			BatchID:       batchID,
			Chunk:         chunk,
			ImageRef:      domain.PlaceholderImageRef,
			CreatedAt:     createdAt,
			ValidatedItem: item,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit chunk tx: %w", err)
	}
	return persisted, nil
}

// UpdateImageRef flips the placeholder to the permanent image URL. The
// WHERE guard keeps a late retry from overwriting a real reference.
func (r *RecipeRepositoryPG) UpdateImageRef(ctx context.Context, itemID, imageRef string) error {
	query := `
UPDATE recipes
SET image_ref = $2,
    updated_at = NOW()
WHERE id = $1
  AND image_ref = $3;
`
	tag, err := r.pool.Exec(ctx, query, itemID, imageRef, domain.PlaceholderImageRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID fetches one persisted recipe.
func (r *RecipeRepositoryPG) GetByID(ctx context.Context, itemID string) (*domain.PersistedItem, error) {
	query := selectRecipe + `
WHERE id = $1;
`
	item, err := scanRecipe(r.pool.QueryRow(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

// ListByBatch returns every persisted recipe of a batch in insertion order.
func (r *RecipeRepositoryPG) ListByBatch(ctx context.Context, batchID string) ([]domain.PersistedItem, error) {
	query := selectRecipe + `
WHERE batch_id = $1
ORDER BY chunk, created_at;
`
	rows, err := r.pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.PersistedItem
	for rows.Next() {
		item, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

const selectRecipe = `
SELECT id, batch_id, chunk, title, description, cuisine, difficulty, servings, prep_minutes, cook_minutes, ingredients, steps, nutrition, quality_score, corrections, image_ref, created_at
FROM recipes
`

func scanRecipe(row pgx.Row) (*domain.PersistedItem, error) {
	var (
		item        domain.PersistedItem
		ingredients []byte
		steps       []byte
		nutrition   []byte
		corrections []byte
	)
	if err := row.Scan(
		&item.ID,
		&item.BatchID,
		&item.Chunk,
		&item.Title,
		&item.Description,
		&item.Cuisine,
		&item.Difficulty,
		&item.Servings,
		&item.PrepMinutes,
		&item.CookMinutes,
		&ingredients,
		&steps,
		&nutrition,
		&item.QualityScore,
		&corrections,
		&item.ImageRef,
		&item.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ingredients, &item.Ingredients); err != nil {
		return nil, fmt.Errorf("decode ingredients: %w", err)
	}
	if err := json.Unmarshal(steps, &item.Steps); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}
	if err := json.Unmarshal(nutrition, &item.Nutrition); err != nil {
		return nil, fmt.Errorf("decode nutrition: %w", err)
	}
	if len(corrections) > 0 {
		if err := json.Unmarshal(corrections, &item.Corrections); err != nil {
			return nil, fmt.Errorf("decode corrections: %w", err)
		}
	}
	return &item, nil
}

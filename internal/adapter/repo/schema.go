package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const recipesDDL = `
CREATE TABLE IF NOT EXISTS recipes (
    id            UUID PRIMARY KEY,
    batch_id      UUID NOT NULL,
    chunk         INT NOT NULL,
    title         TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    cuisine       TEXT NOT NULL DEFAULT '',
    difficulty    TEXT NOT NULL DEFAULT '',
    servings      INT NOT NULL,
    prep_minutes  INT NOT NULL,
    cook_minutes  INT NOT NULL,
    ingredients   JSONB NOT NULL,
    steps         JSONB NOT NULL,
    nutrition     JSONB NOT NULL,
    quality_score INT NOT NULL,
    corrections   JSONB,
    image_ref     TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_recipes_batch ON recipes (batch_id, chunk, created_at);
`

// EnsureSchema creates the recipes table when it does not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, recipesDDL)
	return err
}

package repo

import (
	"fmt"
	"testing"
	"time"
)

// fakeRow is a minimal pgx.Row that hands back a fixed column slice.
type fakeRow struct {
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan arity: got %d dests, have %d values", len(dest), len(r.values))
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *[]byte:
			*d = v.([]byte)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan column %d: unsupported dest %T", i, dest[i])
		}
	}
	return nil
}

func TestScanRecipeDecodesRow(t *testing.T) {
	created := time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC)
	row := fakeRow{values: []any{
		"rec-1",
		"batch-1",
		2,
		"Miso Ramen",
		"A rich bowl.",
		"japanese",
		"medium",
		4,
		20,
		35,
		[]byte(`[{"name":"noodles","amount":200,"unit":"g"}]`),
		[]byte(`["Boil the noodles.","Assemble the bowl."]`),
		[]byte(`{"calories":540,"protein_g":22,"carbs_g":60,"fat_g":18}`),
		96,
		[]byte(`["normalized unit grams to g"]`),
		"https://cdn.example.com/batches/batch-1/rec-1.png",
		created,
	}}

	item, err := scanRecipe(row)
	if err != nil {
		t.Fatalf("scanRecipe returned error: %v", err)
	}
	if item.ID != "rec-1" || item.BatchID != "batch-1" || item.Chunk != 2 {
		t.Fatalf("identity = %s/%s/%d, want rec-1/batch-1/2", item.ID, item.BatchID, item.Chunk)
	}
	if item.Title != "Miso Ramen" || item.QualityScore != 96 {
		t.Fatalf("Title/QualityScore = %q/%d, want Miso Ramen/96", item.Title, item.QualityScore)
	}
	if len(item.Ingredients) != 1 || item.Ingredients[0].Unit != "g" {
		t.Fatalf("Ingredients = %#v, want one entry in grams", item.Ingredients)
	}
	if len(item.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(item.Steps))
	}
	if item.Nutrition.Calories != 540 {
		t.Fatalf("Calories = %d, want 540", item.Nutrition.Calories)
	}
	if len(item.Corrections) != 1 {
		t.Fatalf("Corrections = %#v, want one entry", item.Corrections)
	}
	if !item.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt = %v, want %v", item.CreatedAt, created)
	}
}

func TestScanRecipeRejectsBadJSON(t *testing.T) {
	row := fakeRow{values: []any{
		"rec-1", "batch-1", 0, "T", "D", "c", "easy", 2, 5, 5,
		[]byte(`not json`),
		[]byte(`[]`),
		[]byte(`{}`),
		80,
		[]byte(nil),
		"asset://placeholder/recipe.png",
		time.Now(),
	}}
	if _, err := scanRecipe(row); err == nil {
		t.Fatalf("scanRecipe with malformed ingredients returned nil error")
	}
}

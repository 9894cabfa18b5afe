package domain

import "time"

// Ingredient is one line of a recipe's ingredient list.
type Ingredient struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// Nutrition carries per-serving nutritional values.
type Nutrition struct {
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein_g"`
	Carbs    float64 `json:"carbs_g"`
	Fat      float64 `json:"fat_g"`
}

// GeneratedItem is the raw output of the content generation service for one
// concept. It is transient and discarded once validation produced a
// ValidatedItem or a rejection.
type GeneratedItem struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Cuisine     string       `json:"cuisine"`
	Difficulty  string       `json:"difficulty"`
	Servings    int          `json:"servings"`
	PrepMinutes int          `json:"prep_minutes"`
	CookMinutes int          `json:"cook_minutes"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []string     `json:"steps"`
	Nutrition   Nutrition    `json:"nutrition"`

	// Provenance.
	ConceptName string `json:"-"`
	Chunk       int    `json:"-"`
}

// ValidatedItem is a GeneratedItem that passed or was auto-corrected to pass
// structural checks. Immutable once produced.
type ValidatedItem struct {
	GeneratedItem
	QualityScore int
	Corrections  []string
}

// PersistedItem is a ValidatedItem with a durable identity. ImageRef starts
// as the placeholder sentinel and is flipped exactly once by the image
// pipeline, never deleted by it.
type PersistedItem struct {
	ID        string
	BatchID   string
	Chunk     int
	ImageRef  string
	CreatedAt time.Time
	ValidatedItem
}

// ImageMetadata is the image pipeline's record for one persisted item. The
// ImageURL here may be a temporary generation-service URL; only the
// uploaded permanent URL ever reaches PersistedItem.ImageRef.
type ImageMetadata struct {
	ImageURL       string
	PromptUsed     string
	SimilarityHash string
	QualityScore   int
	IsPlaceholder  bool
	RetryCount     int
}

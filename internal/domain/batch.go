package domain

import (
	"fmt"
	"math"
	"time"
)

const (
	// MaxBatchCount caps how many items a single bulk request may ask for.
	MaxBatchCount = 100

	// DefaultChunkSize balances external-service timeout windows against
	// progress-update granularity.
	DefaultChunkSize = 5

	// PlaceholderImageRef is the sentinel written for every persisted recipe
	// until the image pipeline promotes a permanent URL. It is also the
	// final value for recipes whose image generation permanently failed.
	PlaceholderImageRef = "asset://placeholder/recipe.png"
)

// BatchRequest is the immutable input of one bulk generation run.
type BatchRequest struct {
	Count       int    `json:"count"`
	Cuisine     string `json:"cuisine,omitempty"`
	Diet        string `json:"diet,omitempty"`
	Difficulty  string `json:"difficulty,omitempty"`
	MaxCalories int    `json:"max_calories,omitempty"`

	EnableImageGeneration bool `json:"enable_image_generation"`
	EnableUpload          bool `json:"enable_upload"`
	EnableValidation      bool `json:"enable_validation"`
}

// Validate checks request shape only. It runs before any generation work.
func (r BatchRequest) Validate() error {
	if r.Count < 1 || r.Count > MaxBatchCount {
		return fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidRequest, MaxBatchCount)
	}
	if r.MaxCalories < 0 {
		return fmt.Errorf("%w: max_calories must not be negative", ErrInvalidRequest)
	}
	return nil
}

// ChunkStrategy describes how a batch is split for generation. Computed once
// by the planner and copied into the progress monitor at initialization.
type ChunkStrategy struct {
	BatchID           string
	TotalItems        int
	ChunkSize         int
	ChunkCount        int
	EstimatedDuration time.Duration
}

// NewChunkStrategy derives the chunking plan for count items.
func NewChunkStrategy(batchID string, count, chunkSize int) ChunkStrategy {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	chunks := int(math.Ceil(float64(count) / float64(chunkSize)))
	return ChunkStrategy{
		BatchID:    batchID,
		TotalItems: count,
		ChunkSize:  chunkSize,
		ChunkCount: chunks,
		// Rough planning figure: one generation round trip per chunk plus
		// validation and persistence overhead.
		EstimatedDuration: time.Duration(chunks) * 25 * time.Second,
	}
}

// Concept is a planned, not-yet-generated recipe skeleton used to seed
// diversity. Concepts only live until the generator consumes them.
type Concept struct {
	Name     string
	Category string
	Tags     []string
}

// SimilarityTo returns the share of tags the two concepts have in common,
// relative to the smaller tag set. 1 means full overlap.
func (c Concept) SimilarityTo(other Concept) float64 {
	if len(c.Tags) == 0 || len(other.Tags) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(c.Tags))
	for _, t := range c.Tags {
		seen[t] = struct{}{}
	}
	shared := 0
	for _, t := range other.Tags {
		if _, ok := seen[t]; ok {
			shared++
		}
	}
	smaller := len(c.Tags)
	if len(other.Tags) < smaller {
		smaller = len(other.Tags)
	}
	return float64(shared) / float64(smaller)
}

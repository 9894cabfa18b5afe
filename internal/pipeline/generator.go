package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"batchgen/internal/domain"
	"batchgen/internal/infra"
	"batchgen/internal/metrics"
	"batchgen/internal/providers/contentgen"
)

const (
	generateRetries = 3 // one call plus two retries
	generateBackoff = 5 * time.Second
)

// Generator calls the content generation service once per chunk and parses
// the response, rejecting malformed items while keeping the rest.
type Generator struct {
	client  *contentgen.Client
	logger  infra.Logger
	backoff time.Duration
}

// NewGenerator wires the generator agent to its provider client.
func NewGenerator(client *contentgen.Client, logger infra.Logger) *Generator {
	return &Generator{client: client, logger: logger, backoff: generateBackoff}
}

// ProcessChunk generates one recipe per concept in a single service call.
// Transport and parse failures retry with a fixed pause; when the budget is
// exhausted the whole chunk fails and the batch continues without it.
func (g *Generator) ProcessChunk(ctx context.Context, req domain.BatchRequest, batchID string, chunk int, concepts []domain.Concept) ([]domain.GeneratedItem, error) {
	start := time.Now()
	items, err := g.processChunk(ctx, req, batchID, chunk, concepts)
	metrics.ObserveAgent(domain.AgentGenerator, start, err)
	return items, err
}

func (g *Generator) processChunk(ctx context.Context, req domain.BatchRequest, batchID string, chunk int, concepts []domain.Concept) ([]domain.GeneratedItem, error) {
	chunkReq := contentgen.ChunkRequest{
		BatchID:     batchID,
		Chunk:       chunk,
		Concepts:    make([]contentgen.Concept, len(concepts)),
		Cuisine:     req.Cuisine,
		Diet:        req.Diet,
		Difficulty:  req.Difficulty,
		MaxCalories: req.MaxCalories,
	}
	for i, c := range concepts {
		chunkReq.Concepts[i] = contentgen.Concept{Name: c.Name, Category: c.Category, Tags: c.Tags}
	}

	var raw []json.RawMessage
	err := withRetry(ctx, generateRetries, g.backoff, func(ctx context.Context) error {
		var callErr error
		raw, callErr = g.client.GenerateChunk(ctx, chunkReq)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("generate chunk %d: %w", chunk, err)
	}

	items := make([]domain.GeneratedItem, 0, len(raw))
	for i, message := range raw {
		item, err := g.decodeItem(message, chunk)
		if err != nil {
			g.logger.Warn().
				Err(err).
				Str("batch_id", batchID).
				Int("chunk", chunk).
				Int("index", i).
				Msg("generator: rejecting malformed item")
			continue
		}
		item.ConceptName = matchConcept(item.Title, concepts, i)
		items = append(items, item)
	}
	return items, nil
}

// decodeItem parses one raw item and checks its wire shape. Domain-level
// range checks and auto-fixes belong to the validator, not here.
func (g *Generator) decodeItem(raw json.RawMessage, chunk int) (domain.GeneratedItem, error) {
	var wire contentgen.Item
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domain.GeneratedItem{}, fmt.Errorf("%w: %v", domain.ErrMalformedItem, err)
	}
	if strings.TrimSpace(wire.Title) == "" {
		return domain.GeneratedItem{}, fmt.Errorf("%w: missing title", domain.ErrMalformedItem)
	}
	if len(wire.Ingredients) == 0 {
		return domain.GeneratedItem{}, fmt.Errorf("%w: no ingredients", domain.ErrMalformedItem)
	}
	if len(wire.Steps) == 0 {
		return domain.GeneratedItem{}, fmt.Errorf("%w: no steps", domain.ErrMalformedItem)
	}

	item := domain.GeneratedItem{
		Title:       wire.Title,
		Description: wire.Description,
		Cuisine:     wire.Cuisine,
		Difficulty:  wire.Difficulty,
		Servings:    wire.Servings,
		PrepMinutes: wire.PrepMinutes,
		CookMinutes: wire.CookMinutes,
		Steps:       wire.Steps,
		Chunk:       chunk,
		Nutrition: domain.Nutrition{
			Calories: wire.Nutrition.Calories,
			Protein:  wire.Nutrition.Protein,
			Carbs:    wire.Nutrition.Carbs,
			Fat:      wire.Nutrition.Fat,
		},
	}
	item.Ingredients = make([]domain.Ingredient, len(wire.Ingredients))
	for i, ing := range wire.Ingredients {
		item.Ingredients[i] = domain.Ingredient{Name: ing.Name, Amount: ing.Amount, Unit: ing.Unit}
	}
	return item, nil
}

// matchConcept pairs a generated title with its seeding concept. Response
// order is best-effort, so a name match wins over position.
func matchConcept(title string, concepts []domain.Concept, index int) string {
	lowered := strings.ToLower(title)
	for _, c := range concepts {
		if strings.EqualFold(c.Name, title) || strings.Contains(lowered, strings.ToLower(c.Name)) {
			return c.Name
		}
	}
	if index >= 0 && index < len(concepts) {
		return concepts[index].Name
	}
	return ""
}

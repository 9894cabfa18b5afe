package pipeline

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"batchgen/internal/domain"
	"batchgen/internal/infra"
	"batchgen/internal/metrics"
)

var conceptTitle = cases.Title(language.English)

// similarityThreshold is the tag-overlap share at which two concepts count as
// near-duplicates and one of them is regenerated.
const similarityThreshold = 0.5

// maxDiversityRetries bounds regeneration attempts per duplicate pair before
// the duplicate is accepted with a warning.
const maxDiversityRetries = 3

var conceptCategories = []string{
	"pasta", "soup", "salad", "curry", "grill", "bake",
	"stir-fry", "stew", "bowl", "sandwich",
}

var conceptMains = []string{
	"chicken", "salmon", "tofu", "beef", "chickpea",
	"mushroom", "shrimp", "pork", "lentil", "halloumi",
}

var conceptStyles = []string{
	"herbed", "spicy", "smoky", "creamy", "zesty",
	"roasted", "crispy", "garlic", "glazed", "sesame",
}

// Planner turns a bulk request into a chunking strategy and a diverse set of
// recipe concepts.
type Planner struct {
	chunkSize int
	logger    infra.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// PlanResult is the planner's full output for one batch.
type PlanResult struct {
	Strategy domain.ChunkStrategy
	Concepts []domain.Concept

	// RequiresReview is set when diversity could not be reached within the
	// retry budget and duplicates were accepted.
	RequiresReview bool
}

// NewPlanner creates a planner with the configured chunk size.
func NewPlanner(chunkSize int, logger infra.Logger) *Planner {
	if chunkSize < 1 {
		chunkSize = domain.DefaultChunkSize
	}
	return &Planner{
		chunkSize: chunkSize,
		logger:    logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Strategy derives the chunking plan without generating concepts. It is
// cheap and runs on the request path so the progress monitor can be
// initialized before any generation work starts.
func (p *Planner) Strategy(batchID string, req domain.BatchRequest) domain.ChunkStrategy {
	return domain.NewChunkStrategy(batchID, req.Count, p.chunkSize)
}

// Plan computes the chunk strategy and generates count concepts whose
// pairwise tag overlap stays below the similarity threshold. If a pair
// cannot be diversified within the retry budget the duplicate is kept and
// the result is flagged for review instead of failing the batch.
func (p *Planner) Plan(batchID string, req domain.BatchRequest) (PlanResult, error) {
	start := time.Now()
	result, err := p.plan(batchID, req)
	metrics.ObserveAgent(domain.AgentPlanner, start, err)
	return result, err
}

func (p *Planner) plan(batchID string, req domain.BatchRequest) (PlanResult, error) {
	if req.Count < 1 {
		return PlanResult{}, fmt.Errorf("%w: no concepts producible for empty batch", domain.ErrBatchFatal)
	}

	strategy := domain.NewChunkStrategy(batchID, req.Count, p.chunkSize)

	concepts := make([]domain.Concept, 0, req.Count)
	requiresReview := false
	for i := 0; i < req.Count; i++ {
		candidate := p.randomConcept(req)
		retries := 0
		for p.conflicts(candidate, concepts) && retries < maxDiversityRetries {
			candidate = p.randomConcept(req)
			retries++
		}
		if p.conflicts(candidate, concepts) {
			requiresReview = true
			p.logger.Warn().
				Str("batch_id", batchID).
				Str("concept", candidate.Name).
				Msg("planner: accepting near-duplicate concept after retry budget")
		}
		concepts = append(concepts, candidate)
	}

	p.logger.Info().
		Str("batch_id", batchID).
		Int("concepts", len(concepts)).
		Int("chunks", strategy.ChunkCount).
		Bool("requires_review", requiresReview).
		Msg("planner: batch planned")

	return PlanResult{Strategy: strategy, Concepts: concepts, RequiresReview: requiresReview}, nil
}

// Chunks splits concepts according to the strategy, preserving order.
func (p *Planner) Chunks(strategy domain.ChunkStrategy, concepts []domain.Concept) [][]domain.Concept {
	chunks := make([][]domain.Concept, 0, strategy.ChunkCount)
	for start := 0; start < len(concepts); start += strategy.ChunkSize {
		end := start + strategy.ChunkSize
		if end > len(concepts) {
			end = len(concepts)
		}
		chunks = append(chunks, concepts[start:end])
	}
	return chunks
}

func (p *Planner) conflicts(candidate domain.Concept, accepted []domain.Concept) bool {
	for _, c := range accepted {
		if candidate.SimilarityTo(c) >= similarityThreshold {
			return true
		}
	}
	return false
}

func (p *Planner) randomConcept(req domain.BatchRequest) domain.Concept {
	p.mu.Lock()
	style := conceptStyles[p.rng.Intn(len(conceptStyles))]
	main := conceptMains[p.rng.Intn(len(conceptMains))]
	category := conceptCategories[p.rng.Intn(len(conceptCategories))]
	name := conceptTitle.String(fmt.Sprintf("%s %s %s", style, main, category))
	p.mu.Unlock()

	tags := []string{style, main, category}
	if req.Cuisine != "" {
		tags = append(tags, strings.ToLower(req.Cuisine))
	}
	if req.Diet != "" {
		tags = append(tags, strings.ToLower(req.Diet))
	}

	return domain.Concept{Name: name, Category: category, Tags: tags}
}

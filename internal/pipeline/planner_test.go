package pipeline

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"batchgen/internal/domain"
)

func TestPlannerPlanProducesOneConceptPerItem(t *testing.T) {
	p := NewPlanner(5, zerolog.Nop())
	result, err := p.Plan("b1", domain.BatchRequest{Count: 12, Cuisine: "Thai"})
	if err != nil {
		t.Fatalf("Plan() unexpected error: %v", err)
	}
	if len(result.Concepts) != 12 {
		t.Fatalf("concepts = %d, want 12", len(result.Concepts))
	}
	if result.Strategy.ChunkCount != 3 {
		t.Fatalf("ChunkCount = %d, want 3", result.Strategy.ChunkCount)
	}
	for _, c := range result.Concepts {
		if c.Name == "" || len(c.Tags) == 0 {
			t.Fatalf("concept missing name or tags: %+v", c)
		}
	}
}

func TestPlannerPlanRejectsEmptyBatch(t *testing.T) {
	p := NewPlanner(5, zerolog.Nop())
	if _, err := p.Plan("b1", domain.BatchRequest{Count: 0}); !errors.Is(err, domain.ErrBatchFatal) {
		t.Fatalf("Plan(0) error = %v, want ErrBatchFatal", err)
	}
}

func TestPlannerChunksPreserveOrderAndSize(t *testing.T) {
	p := NewPlanner(5, zerolog.Nop())
	strategy := domain.NewChunkStrategy("b1", 12, 5)

	concepts := make([]domain.Concept, 12)
	for i := range concepts {
		concepts[i] = domain.Concept{Name: string(rune('a' + i))}
	}

	chunks := p.Chunks(strategy, concepts)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if len(chunks[0]) != 5 || len(chunks[1]) != 5 || len(chunks[2]) != 2 {
		t.Fatalf("chunk sizes = %d/%d/%d, want 5/5/2", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	if chunks[2][1].Name != concepts[11].Name {
		t.Fatalf("ordering broken in final chunk")
	}
}

func TestPlannerStrategyMatchesPlan(t *testing.T) {
	p := NewPlanner(5, zerolog.Nop())
	req := domain.BatchRequest{Count: 7}

	strategy := p.Strategy("b1", req)
	result, err := p.Plan("b1", req)
	if err != nil {
		t.Fatalf("Plan() unexpected error: %v", err)
	}
	if strategy.ChunkCount != result.Strategy.ChunkCount || strategy.TotalItems != result.Strategy.TotalItems {
		t.Fatalf("Strategy() = %+v, Plan strategy = %+v", strategy, result.Strategy)
	}
}

func TestPlannerRequestTagsAttach(t *testing.T) {
	p := NewPlanner(5, zerolog.Nop())
	result, err := p.Plan("b1", domain.BatchRequest{Count: 3, Cuisine: "Italian", Diet: "Vegan"})
	if err != nil {
		t.Fatalf("Plan() unexpected error: %v", err)
	}
	for _, c := range result.Concepts {
		var hasCuisine, hasDiet bool
		for _, tag := range c.Tags {
			if tag == "italian" {
				hasCuisine = true
			}
			if tag == "vegan" {
				hasDiet = true
			}
		}
		if !hasCuisine || !hasDiet {
			t.Fatalf("concept tags = %v, want cuisine and diet tags", c.Tags)
		}
	}
}

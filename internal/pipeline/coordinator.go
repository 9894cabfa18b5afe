package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"batchgen/internal/domain"
	"batchgen/internal/imagepipe"
	"batchgen/internal/infra"
	"batchgen/internal/metrics"
	"batchgen/internal/progress"
)

// Coordinator owns the batch state machine. It drives the synchronous
// critical path (planning, generating, validating, saving), hands the
// imaging stage to the background image pipeline, and keeps the progress
// monitor current throughout.
type Coordinator struct {
	planner   *Planner
	generator *Generator
	validator *Validator
	persister *Persister
	images    *imagepipe.Pipeline
	monitor   *progress.Monitor
	logger    infra.Logger

	// baseCtx outlives individual HTTP requests; background work is tied to
	// the application lifetime, not the request that started the batch.
	baseCtx          context.Context
	chunkParallelism int

	mu        sync.Mutex
	cancelled map[string]bool
	active    map[string]struct{}
}

// NewCoordinator wires the batch coordinator.
func NewCoordinator(baseCtx context.Context, planner *Planner, generator *Generator, validator *Validator, persister *Persister, images *imagepipe.Pipeline, monitor *progress.Monitor, logger infra.Logger, chunkParallelism int) *Coordinator {
	if chunkParallelism < 1 {
		chunkParallelism = 3
	}
	return &Coordinator{
		planner:          planner,
		generator:        generator,
		validator:        validator,
		persister:        persister,
		images:           images,
		monitor:          monitor,
		logger:           logger,
		baseCtx:          baseCtx,
		chunkParallelism: chunkParallelism,
		cancelled:        make(map[string]bool),
		active:           make(map[string]struct{}),
	}
}

// StartBatch validates the request shape, registers the batch with the
// progress monitor, and launches the pipeline in the background. It returns
// the batch ID and chunking plan before any generation work has started.
func (c *Coordinator) StartBatch(req domain.BatchRequest) (string, domain.ChunkStrategy, error) {
	if err := req.Validate(); err != nil {
		return "", domain.ChunkStrategy{}, err
	}

	batchID := uuid.NewString()
	strategy := c.planner.Strategy(batchID, req)
	c.monitor.Initialize(strategy)
	metrics.BatchStarted()

	c.mu.Lock()
	c.active[batchID] = struct{}{}
	c.mu.Unlock()

	go c.run(req, strategy)

	c.logger.Info().
		Str("batch_id", batchID).
		Int("count", req.Count).
		Int("chunks", strategy.ChunkCount).
		Msg("coordinator: batch accepted")

	return batchID, strategy, nil
}

// Cancel stops scheduling new chunk and image work for the batch. In-flight
// external calls finish naturally; the batch settles in the error state once
// everything in flight has drained. It reports whether the batch was active.
func (c *Coordinator) Cancel(batchID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[batchID]; !ok {
		return false
	}
	c.cancelled[batchID] = true
	return true
}

func (c *Coordinator) isCancelled(batchID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled[batchID]
}

func (c *Coordinator) finish(batchID string) {
	c.mu.Lock()
	delete(c.cancelled, batchID)
	delete(c.active, batchID)
	c.mu.Unlock()
}

// run drives one batch through the state machine. Item- and chunk-level
// failures are absorbed into progress warnings; only batch-fatal conditions
// reach the terminal error state.
func (c *Coordinator) run(req domain.BatchRequest, strategy domain.ChunkStrategy) {
	ctx := c.baseCtx
	batchID := strategy.BatchID
	defer c.finish(batchID)

	// Planning.
	c.setPhase(batchID, domain.PhasePlanning, domain.AgentPlanner, domain.AgentWorking)
	plan, err := c.planner.Plan(batchID, req)
	if err != nil {
		c.fail(batchID, domain.AgentPlanner, err)
		return
	}
	if plan.RequiresReview {
		c.monitor.RecordError(batchID, "concept diversity below target; batch flagged for review")
	}
	c.agentDone(batchID, domain.AgentPlanner)

	// Generating: chunks run with bounded parallelism and no ordering
	// guarantee between them.
	c.setPhase(batchID, domain.PhaseGenerating, domain.AgentGenerator, domain.AgentWorking)
	chunks := c.planner.Chunks(strategy, plan.Concepts)
	generated := make([][]domain.GeneratedItem, len(chunks))

	g := new(errgroup.Group)
	g.SetLimit(c.chunkParallelism)
	for i, concepts := range chunks {
		if c.isCancelled(batchID) {
			break
		}
		i, concepts := i, concepts
		g.Go(func() error {
			items, genErr := c.generator.ProcessChunk(ctx, req, batchID, i+1, concepts)
			if genErr != nil {
				c.monitor.RecordError(batchID, fmt.Sprintf("chunk %d generation failed: %v", i+1, genErr))
			} else {
				generated[i] = items
			}
			c.monitor.Update(batchID, domain.ProgressPatch{ChunksDoneDelta: 1})
			return nil
		})
	}
	_ = g.Wait()
	c.agentDone(batchID, domain.AgentGenerator)
	if c.abortIfCancelled(batchID) {
		return
	}

	// Validating.
	c.setPhase(batchID, domain.PhaseValidating, domain.AgentValidator, domain.AgentWorking)
	validated := make([][]domain.ValidatedItem, len(chunks))
	for i, items := range generated {
		for _, item := range items {
			v, vErr := c.validate(ctx, req, item)
			if vErr != nil {
				c.monitor.RecordError(batchID, fmt.Sprintf("item %q rejected: %v", item.Title, vErr))
				continue
			}
			validated[i] = append(validated[i], v)
		}
	}
	c.agentDone(batchID, domain.AgentValidator)
	if c.abortIfCancelled(batchID) {
		return
	}

	// Saving: one transaction per chunk. A failed chunk is recorded and the
	// rest of the batch continues.
	c.setPhase(batchID, domain.PhaseSaving, domain.AgentStorage, domain.AgentWorking)
	var persisted []domain.PersistedItem
	for i, items := range validated {
		if len(items) == 0 {
			continue
		}
		if c.isCancelled(batchID) {
			break
		}
		saved, saveErr := c.persister.SaveChunk(ctx, batchID, i+1, items)
		if saveErr != nil {
			c.monitor.RecordError(batchID, fmt.Sprintf("chunk %d persistence failed: %v", i+1, saveErr))
			continue
		}
		persisted = append(persisted, saved...)
		c.monitor.Update(batchID, domain.ProgressPatch{ItemsCompletedDelta: len(saved)})
	}
	c.agentDone(batchID, domain.AgentStorage)
	if c.abortIfCancelled(batchID) {
		return
	}
	if len(persisted) == 0 {
		c.fail(batchID, domain.AgentStorage, fmt.Errorf("%w: no chunks persisted", domain.ErrBatchFatal))
		return
	}

	// Imaging: the synchronous path ends here. Images settle in the
	// background; a permanently failed image keeps its placeholder and the
	// batch still completes.
	imaging := req.EnableImageGeneration && req.EnableUpload
	var remaining time.Duration
	if imaging {
		remaining = c.images.EstimateDuration(len(persisted))
	}
	c.monitor.Update(batchID, domain.ProgressPatch{
		Phase:              phasePtr(domain.PhaseImaging),
		EstimatedRemaining: &remaining,
	})

	if imaging {
		c.images.Run(ctx, batchID, persisted, func() bool { return c.isCancelled(batchID) })
	} else {
		c.monitor.Update(batchID, domain.ProgressPatch{
			PlaceholderDelta: len(persisted),
			AgentStatus:      map[string]domain.AgentState{domain.AgentArtist: domain.AgentComplete},
		})
	}
	if c.abortIfCancelled(batchID) {
		return
	}

	c.monitor.Update(batchID, domain.ProgressPatch{Phase: phasePtr(domain.PhaseComplete)})
	c.logger.Info().
		Str("batch_id", batchID).
		Int("items", len(persisted)).
		Msg("coordinator: batch complete")
}

// validate applies the validation stage, honoring the request's
// enableValidation flag and retrying once on transient internal errors.
func (c *Coordinator) validate(ctx context.Context, req domain.BatchRequest, item domain.GeneratedItem) (domain.ValidatedItem, error) {
	if !req.EnableValidation {
		return domain.ValidatedItem{GeneratedItem: item, QualityScore: 100}, nil
	}
	var v domain.ValidatedItem
	err := withRetry(ctx, 2, 500*time.Millisecond, func(context.Context) error {
		var pErr error
		v, pErr = c.validator.Process(item)
		if pErr != nil && !retryable(pErr) {
			return pErr
		}
		return pErr
	})
	return v, err
}

func (c *Coordinator) setPhase(batchID string, phase domain.Phase, agent string, state domain.AgentState) {
	c.monitor.Update(batchID, domain.ProgressPatch{
		Phase:       phasePtr(phase),
		AgentStatus: map[string]domain.AgentState{agent: state},
	})
}

func (c *Coordinator) agentDone(batchID, agent string) {
	c.monitor.Update(batchID, domain.ProgressPatch{
		AgentStatus: map[string]domain.AgentState{agent: domain.AgentComplete},
	})
}

// fail moves the batch to the terminal error state.
func (c *Coordinator) fail(batchID, agent string, err error) {
	c.logger.Error().Err(err).Str("batch_id", batchID).Msg("coordinator: batch failed")
	c.monitor.RecordError(batchID, err.Error())
	c.monitor.Update(batchID, domain.ProgressPatch{
		Phase:       phasePtr(domain.PhaseError),
		AgentStatus: map[string]domain.AgentState{agent: domain.AgentError},
	})
}

// abortIfCancelled settles a cancelled batch once in-flight work drained.
func (c *Coordinator) abortIfCancelled(batchID string) bool {
	if !c.isCancelled(batchID) {
		return false
	}
	c.monitor.RecordError(batchID, domain.ErrBatchCancelled.Error())
	c.monitor.Update(batchID, domain.ProgressPatch{Phase: phasePtr(domain.PhaseError)})
	c.logger.Info().Str("batch_id", batchID).Msg("coordinator: batch cancelled")
	return true
}

func phasePtr(p domain.Phase) *domain.Phase {
	return &p
}

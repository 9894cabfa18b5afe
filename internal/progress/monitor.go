package progress

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"batchgen/internal/domain"
)

// Monitor holds per-batch progress state. All operations are pure in-memory
// mutations; callers must never hold monitor state across network I/O.
// Updates for one batch are serialized by a per-batch lock so concurrent
// merge-patches cannot lose increments.
type Monitor struct {
	mu      sync.RWMutex
	active  map[string]*entry
	expired *expirable.LRU[string, domain.ProgressState]

	// onChange, when set, receives a snapshot after every mutation. It is
	// invoked while the per-batch lock is held so snapshots arrive in
	// mutation order; the sink must not block.
	onChange func(domain.ProgressState)
}

type entry struct {
	mu    sync.Mutex
	state domain.ProgressState
}

const retainedBatches = 512

// NewMonitor creates a Monitor whose terminal states are retained for the
// given window so reconnecting clients can still read them.
func NewMonitor(retention time.Duration) *Monitor {
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	return &Monitor{
		active:  make(map[string]*entry),
		expired: expirable.NewLRU[string, domain.ProgressState](retainedBatches, nil, retention),
	}
}

// OnChange registers the single mutation sink, typically the stream broker.
func (m *Monitor) OnChange(fn func(domain.ProgressState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Initialize registers a fresh batch from its chunk strategy. Every agent,
// including storage and artist, starts idle so clients always see the full
// agent map.
func (m *Monitor) Initialize(strategy domain.ChunkStrategy) domain.ProgressState {
	state := domain.ProgressState{
		BatchID:     strategy.BatchID,
		Phase:       domain.PhasePlanning,
		ChunksTotal: strategy.ChunkCount,
		ItemsTotal:  strategy.TotalItems,
		Errors:      []string{},
		AgentStatus: map[string]domain.AgentState{
			domain.AgentPlanner:   domain.AgentIdle,
			domain.AgentGenerator: domain.AgentIdle,
			domain.AgentValidator: domain.AgentIdle,
			domain.AgentStorage:   domain.AgentIdle,
			domain.AgentArtist:    domain.AgentIdle,
		},
		EstimatedRemaining: strategy.EstimatedDuration,
		StartedAt:          time.Now(),
	}

	m.mu.Lock()
	m.active[strategy.BatchID] = &entry{state: state}
	m.mu.Unlock()

	m.notify(state.Clone())
	return state
}

// Update applies a merge-patch to the batch's state. Unknown batches and
// terminal states are ignored.
func (m *Monitor) Update(batchID string, patch domain.ProgressPatch) {
	e := m.lookup(batchID)
	if e == nil {
		return
	}

	e.mu.Lock()
	if e.state.Phase.Terminal() {
		e.mu.Unlock()
		return
	}
	applyPatch(&e.state, patch)
	snapshot := e.state.Clone()

	// Retire and notify before releasing the entry lock. Counters are
	// non-decreasing per batch, so subscribers must observe snapshots in
	// mutation order; publishing after unlock would let a later snapshot
	// overtake an earlier one.
	if snapshot.Phase.Terminal() {
		m.retire(batchID, snapshot)
	}
	m.notify(snapshot)
	e.mu.Unlock()
}

// RecordError appends a warning or error message to the batch. It never
// replaces previous entries and never changes the phase.
func (m *Monitor) RecordError(batchID, message string) {
	e := m.lookup(batchID)
	if e == nil {
		return
	}

	e.mu.Lock()
	e.state.Errors = append(e.state.Errors, message)
	m.notify(e.state.Clone())
	e.mu.Unlock()
}

// Get returns a snapshot of the batch's progress, falling back to the
// retention cache for recently finished batches.
func (m *Monitor) Get(batchID string) (domain.ProgressState, bool) {
	if e := m.lookup(batchID); e != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.state.Clone(), true
	}
	if state, ok := m.expired.Get(batchID); ok {
		return state.Clone(), true
	}
	return domain.ProgressState{}, false
}

func (m *Monitor) lookup(batchID string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[batchID]
}

// retire moves a terminal batch into the TTL retention cache.
func (m *Monitor) retire(batchID string, state domain.ProgressState) {
	m.mu.Lock()
	delete(m.active, batchID)
	m.mu.Unlock()
	m.expired.Add(batchID, state)
}

func (m *Monitor) notify(state domain.ProgressState) {
	m.mu.RLock()
	fn := m.onChange
	m.mu.RUnlock()
	if fn != nil {
		fn(state)
	}
}

func applyPatch(state *domain.ProgressState, patch domain.ProgressPatch) {
	if patch.Phase != nil {
		state.Phase = *patch.Phase
		if state.Phase.Terminal() {
			state.FinishedAt = time.Now()
			state.EstimatedRemaining = 0
		}
	}
	if patch.ChunksDone != nil {
		state.ChunksDone = *patch.ChunksDone
	}
	if patch.ItemsCompleted != nil {
		state.ItemsCompleted = *patch.ItemsCompleted
	}
	if patch.EstimatedRemaining != nil {
		state.EstimatedRemaining = *patch.EstimatedRemaining
	}
	for agent, status := range patch.AgentStatus {
		state.AgentStatus[agent] = status
	}
	state.ChunksDone += patch.ChunksDoneDelta
	if state.ChunksDone > state.ChunksTotal {
		state.ChunksDone = state.ChunksTotal
	}
	state.ItemsCompleted += patch.ItemsCompletedDelta
	state.ImagesGenerated += patch.ImagesGeneratedDelta
	state.PlaceholderCount += patch.PlaceholderDelta

	// Invariants: counters are clamped so a misbehaving stage can never
	// report more work than the batch contains.
	if state.ItemsCompleted > state.ItemsTotal {
		state.ItemsCompleted = state.ItemsTotal
	}
	if state.ImagesGenerated > state.ItemsCompleted {
		state.ImagesGenerated = state.ItemsCompleted
	}
}

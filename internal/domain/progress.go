package domain

import (
	"encoding/json"
	"time"
)

// Phase enumerates the batch lifecycle states.
type Phase string

const (
	PhasePlanning   Phase = "planning"
	PhaseGenerating Phase = "generating"
	PhaseValidating Phase = "validating"
	PhaseSaving     Phase = "saving"
	PhaseImaging    Phase = "imaging"
	PhaseComplete   Phase = "complete"
	PhaseError      Phase = "error"
)

// Terminal reports whether the phase ends the batch lifecycle.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// AgentState enumerates per-agent working states.
type AgentState string

const (
	AgentIdle     AgentState = "idle"
	AgentWorking  AgentState = "working"
	AgentComplete AgentState = "complete"
	AgentError    AgentState = "error"
)

// Agent names as reported in ProgressState.AgentStatus. Every batch carries
// all five from initialization; storage and artist must not be omitted even
// when uploads or image generation are disabled.
const (
	AgentPlanner   = "planner"
	AgentGenerator = "generator"
	AgentValidator = "validator"
	AgentStorage   = "storage"
	AgentArtist    = "artist"
)

// ProgressState is the single source of truth for one batch's status. It is
// mutated in place by every stage and becomes immutable once Phase is
// terminal.
type ProgressState struct {
	BatchID            string                `json:"batch_id"`
	Phase              Phase                 `json:"phase"`
	ChunksDone         int                   `json:"chunks_done"`
	ChunksTotal        int                   `json:"chunks_total"`
	ItemsCompleted     int                   `json:"items_completed"`
	ItemsTotal         int                   `json:"items_total"`
	ImagesGenerated    int                   `json:"images_generated"`
	PlaceholderCount   int                   `json:"placeholder_count"`
	Errors             []string              `json:"errors"`
	AgentStatus        map[string]AgentState `json:"agent_status"`
	EstimatedRemaining time.Duration         `json:"estimated_remaining_ms"`
	StartedAt          time.Time             `json:"started_at"`
	FinishedAt         time.Time             `json:"finished_at,omitempty"`
}

// MarshalJSON emits the remaining-time estimate in milliseconds instead of
// Duration's native nanoseconds.
func (s ProgressState) MarshalJSON() ([]byte, error) {
	type alias ProgressState
	return json.Marshal(struct {
		alias
		EstimatedRemaining int64 `json:"estimated_remaining_ms"`
	}{alias(s), s.EstimatedRemaining.Milliseconds()})
}

// Clone returns a deep copy so readers never share mutable maps or slices
// with the monitor.
func (s ProgressState) Clone() ProgressState {
	out := s
	out.Errors = append([]string(nil), s.Errors...)
	out.AgentStatus = make(map[string]AgentState, len(s.AgentStatus))
	for k, v := range s.AgentStatus {
		out.AgentStatus[k] = v
	}
	return out
}

// ProgressPatch carries merge-patch updates for a ProgressState. Only
// non-nil fields are applied; deltas are added atomically under the
// per-batch lock so concurrent background tasks never lose increments.
type ProgressPatch struct {
	Phase                *Phase
	ChunksDone           *int
	ItemsCompleted       *int
	EstimatedRemaining   *time.Duration
	AgentStatus          map[string]AgentState
	ChunksDoneDelta      int
	ItemsCompletedDelta  int
	ImagesGeneratedDelta int
	PlaceholderDelta     int
}

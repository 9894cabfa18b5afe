package progress

import (
	"sync"
	"time"

	"batchgen/internal/domain"
	"batchgen/internal/metrics"
)

// Event names pushed to stream subscribers.
const (
	EventConnected = "connected"
	EventProgress  = "progress"
	EventComplete  = "complete"
	EventError     = "error"
)

// Event is one named message on a batch's progress stream.
type Event struct {
	Name    string
	Payload any
}

// ConnectedPayload is sent once per subscription.
type ConnectedPayload struct {
	BatchID   string    `json:"batch_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CompletePayload is sent exactly once when a batch reaches complete.
type CompletePayload struct {
	BatchID          string   `json:"batch_id"`
	TotalItems       int      `json:"total_items"`
	SavedItems       int      `json:"saved_items"`
	ImagesGenerated  int      `json:"images_generated"`
	PlaceholderCount int      `json:"placeholder_count"`
	TotalTimeMs      int64    `json:"total_time_ms"`
	Errors           []string `json:"errors"`
}

// ErrorPayload is sent when a batch reaches the batch-fatal error state.
type ErrorPayload struct {
	BatchID        string       `json:"batch_id"`
	Error          string       `json:"error"`
	Phase          domain.Phase `json:"phase"`
	ItemsCompleted int          `json:"items_completed"`
	TotalItems     int          `json:"total_items"`
}

// Broker fans monitor mutations out to per-batch subscribers. Slow
// subscribers are skipped rather than blocking the pipeline; the next state
// snapshot supersedes anything they missed.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

const subscriberBuffer = 16

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a subscriber for one batch. The returned cancel
// function must be called when the client disconnects.
func (b *Broker) Subscribe(batchID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	set, ok := b.subs[batchID]
	if !ok {
		set = make(map[chan Event]struct{})
		b.subs[batchID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()
	metrics.StreamSubscribed()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if set, ok := b.subs[batchID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(b.subs, batchID)
				}
			}
			b.mu.Unlock()
			metrics.StreamUnsubscribed()
		})
	}
	return ch, cancel
}

// Publish converts a state snapshot into its stream event and delivers it to
// every subscriber of the batch. Meant to be wired as Monitor.OnChange.
func (b *Broker) Publish(state domain.ProgressState) {
	event := EventFor(state)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[state.BatchID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// EventFor maps a progress snapshot onto the named event clients receive.
func EventFor(state domain.ProgressState) Event {
	switch state.Phase {
	case domain.PhaseComplete:
		return Event{Name: EventComplete, Payload: CompletePayloadFor(state)}
	case domain.PhaseError:
		message := ""
		if len(state.Errors) > 0 {
			message = state.Errors[len(state.Errors)-1]
		}
		return Event{Name: EventError, Payload: ErrorPayload{
			BatchID:        state.BatchID,
			Error:          message,
			Phase:          state.Phase,
			ItemsCompleted: state.ItemsCompleted,
			TotalItems:     state.ItemsTotal,
		}}
	default:
		return Event{Name: EventProgress, Payload: state}
	}
}

// CompletePayloadFor summarizes a completed batch.
func CompletePayloadFor(state domain.ProgressState) CompletePayload {
	totalMs := int64(0)
	if !state.FinishedAt.IsZero() {
		totalMs = state.FinishedAt.Sub(state.StartedAt).Milliseconds()
	}
	return CompletePayload{
		BatchID:          state.BatchID,
		TotalItems:       state.ItemsTotal,
		SavedItems:       state.ItemsCompleted,
		ImagesGenerated:  state.ImagesGenerated,
		PlaceholderCount: state.PlaceholderCount,
		TotalTimeMs:      totalMs,
		Errors:           state.Errors,
	}
}

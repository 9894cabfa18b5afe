package progress

import (
	"testing"
	"time"

	"batchgen/internal/domain"
)

func TestBrokerDeliversToSubscribers(t *testing.T) {
	b := NewBroker()
	events, cancel := b.Subscribe("b1")
	defer cancel()

	b.Publish(domain.ProgressState{BatchID: "b1", Phase: domain.PhaseGenerating})

	select {
	case event := <-events:
		if event.Name != EventProgress {
			t.Fatalf("event = %s, want progress", event.Name)
		}
	case <-time.After(time.Second):
		t.Fatalf("no event delivered")
	}
}

func TestBrokerIsolatesBatches(t *testing.T) {
	b := NewBroker()
	events, cancel := b.Subscribe("b1")
	defer cancel()

	b.Publish(domain.ProgressState{BatchID: "other", Phase: domain.PhaseGenerating})

	select {
	case event := <-events:
		t.Fatalf("received %s for a different batch", event.Name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBroker()
	_, cancel := b.Subscribe("b1")
	defer cancel()

	// Publishing past the buffer must not block the pipeline.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			b.Publish(domain.ProgressState{BatchID: "b1", Phase: domain.PhaseGenerating})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Publish blocked on a full subscriber")
	}
}

func TestBrokerCancelRemovesSubscriber(t *testing.T) {
	b := NewBroker()
	events, cancel := b.Subscribe("b1")
	cancel()

	b.Publish(domain.ProgressState{BatchID: "b1", Phase: domain.PhaseGenerating})
	select {
	case event, ok := <-events:
		if ok {
			t.Fatalf("received %s after cancel", event.Name)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventForTerminalPhases(t *testing.T) {
	complete := EventFor(domain.ProgressState{
		BatchID:          "b1",
		Phase:            domain.PhaseComplete,
		ItemsTotal:       10,
		ItemsCompleted:   9,
		ImagesGenerated:  7,
		PlaceholderCount: 2,
	})
	if complete.Name != EventComplete {
		t.Fatalf("event = %s, want complete", complete.Name)
	}
	payload, ok := complete.Payload.(CompletePayload)
	if !ok {
		t.Fatalf("payload type = %T, want CompletePayload", complete.Payload)
	}
	if payload.SavedItems != 9 || payload.ImagesGenerated != 7 || payload.PlaceholderCount != 2 {
		t.Fatalf("payload = %+v", payload)
	}

	failed := EventFor(domain.ProgressState{
		BatchID: "b1",
		Phase:   domain.PhaseError,
		Errors:  []string{"first", "fatal"},
	})
	if failed.Name != EventError {
		t.Fatalf("event = %s, want error", failed.Name)
	}
	errPayload := failed.Payload.(ErrorPayload)
	if errPayload.Error != "fatal" {
		t.Fatalf("error payload = %q, want last recorded error", errPayload.Error)
	}
}

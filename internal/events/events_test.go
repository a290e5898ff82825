package events

import (
	"context"
	"testing"
)

func TestMemoryPublisherRetainsEvents(t *testing.T) {
	pub := NewMemoryPublisher()

	event := NewEvent(KindToolExecuted)
	event.Tool = "transfer_funds"
	event.Success = true
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got := pub.Events()
	if len(got) != 1 {
		t.Fatalf("expected one event, got %d", len(got))
	}
	if got[0].Tool != "transfer_funds" || got[0].Kind != KindToolExecuted {
		t.Fatalf("unexpected event %+v", got[0])
	}
	if got[0].ID == "" || got[0].Timestamp == 0 {
		t.Fatalf("expected stamped event, got %+v", got[0])
	}
}

func TestMemoryPublisherBoundsRetention(t *testing.T) {
	pub := NewMemoryPublisher()
	for i := 0; i < 600; i++ {
		if err := pub.Publish(context.Background(), NewEvent(KindTurnCompleted)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if got := len(pub.Events()); got != 512 {
		t.Fatalf("expected retention cap of 512, got %d", got)
	}
}

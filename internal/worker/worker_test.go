package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"newsdesk/internal/gateway"
	"newsdesk/internal/queue"
)

// mockCounterStore records counter adjustments.
type mockCounterStore struct {
	mu      sync.Mutex
	deltas  map[int64]int
	failFor int64
}

func newMockCounterStore() *mockCounterStore {
	return &mockCounterStore{deltas: make(map[int64]int)}
}

func (m *mockCounterStore) AdjustCommentCount(ctx context.Context, postID int64, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if postID == m.failFor {
		return errors.New("counter update failed")
	}
	m.deltas[postID] += delta
	return nil
}

// mockBroadcaster records published changes.
type mockBroadcaster struct {
	mu      sync.Mutex
	changes []gateway.Change
}

func (m *mockBroadcaster) Publish(ctx context.Context, change gateway.Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, change)
}

func TestHandler_CommentCreatedIncrementsCounter(t *testing.T) {
	counters := newMockCounterStore()
	broadcast := &mockBroadcaster{}
	h := NewHandler(counters, broadcast)

	event := queue.NewCommentCreatedEvent(7, 42, 3)
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if counters.deltas[7] != 1 {
		t.Errorf("post 7 delta = %d, want 1", counters.deltas[7])
	}
	if len(broadcast.changes) != 1 || broadcast.changes[0].Table != "comments" || broadcast.changes[0].Op != "insert" {
		t.Errorf("changes = %+v, want one comments/insert", broadcast.changes)
	}
}

func TestHandler_CommentDeletedAppliesCascadeDelta(t *testing.T) {
	counters := newMockCounterStore()
	h := NewHandler(counters, nil) // no change feed wired

	// Comment plus three cascade-deleted replies.
	event := queue.NewCommentDeletedEvent(7, 42, 3, 4)
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if counters.deltas[7] != -4 {
		t.Errorf("post 7 delta = %d, want -4", counters.deltas[7])
	}
}

func TestHandler_StatusChangeBroadcastsWithoutCounterTouch(t *testing.T) {
	counters := newMockCounterStore()
	broadcast := &mockBroadcaster{}
	h := NewHandler(counters, broadcast)

	event := queue.NewCommentStatusChangedEvent(7, 42, 3, "approved")
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(counters.deltas) != 0 {
		t.Errorf("counters touched: %v", counters.deltas)
	}
	if len(broadcast.changes) != 1 || broadcast.changes[0].Op != "update" {
		t.Errorf("changes = %+v, want one comments/update", broadcast.changes)
	}
}

func TestHandler_CounterFailurePropagates(t *testing.T) {
	counters := newMockCounterStore()
	counters.failFor = 7
	h := NewHandler(counters, nil)

	event := queue.NewCommentCreatedEvent(7, 42, 3)
	if err := h.HandleEvent(context.Background(), event); err == nil {
		t.Error("expected counter failure to propagate")
	}
}

func TestHandler_UnknownEventType(t *testing.T) {
	h := NewHandler(newMockCounterStore(), nil)

	err := h.HandleEvent(context.Background(), queue.ModerationEvent{Type: "mystery"})
	if err == nil {
		t.Error("expected error for unknown event type")
	}
}

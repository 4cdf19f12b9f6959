package queue

import "testing"

func TestModerationEvent_MapRoundTrip(t *testing.T) {
	event := NewCommentDeletedEvent(7, 42, 3, 4)

	values, err := event.ToMap()
	if err != nil {
		t.Fatalf("to map: %v", err)
	}
	if values["type"] != EventCommentDeleted {
		t.Errorf("type field = %v, want %s", values["type"], EventCommentDeleted)
	}

	parsed, err := ParseModerationEvent(values)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.PostID != 7 || parsed.CommentID != 42 || parsed.ActorID != 3 {
		t.Errorf("parsed = %+v", parsed)
	}
	if parsed.Delta != -4 {
		t.Errorf("delta = %d, want -4 (comment plus cascade-deleted replies)", parsed.Delta)
	}
}

func TestParseModerationEvent_MissingData(t *testing.T) {
	if _, err := ParseModerationEvent(map[string]interface{}{"type": EventPostDeleted}); err == nil {
		t.Error("expected error for message without data field")
	}
}

func TestNewCommentStatusChangedEvent(t *testing.T) {
	event := NewCommentStatusChangedEvent(1, 2, 3, "approved")
	if event.Type != EventCommentStatusChanged || event.Status != "approved" {
		t.Errorf("event = %+v", event)
	}
}

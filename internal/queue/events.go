package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the moderation stream
const (
	EventCommentCreated       = "comment_created"
	EventCommentDeleted       = "comment_deleted"
	EventCommentStatusChanged = "comment_status_changed"
	EventPostDeleted          = "post_deleted"
)

// Stream names
const (
	StreamModeration = "stream:moderation"
)

// Consumer group name for counter workers
const (
	ConsumerGroupCounters = "counter_workers"
)

// ModerationEvent is published for every comment/post mutation that affects
// counters or subscribed listings. All event types share this structure.
type ModerationEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp when the event occurred

	PostID    int64 `json:"post_id,omitempty"`
	CommentID int64 `json:"comment_id,omitempty"`
	ActorID   int64 `json:"actor_id,omitempty"`

	// Delta is how many comments the event added or removed from the post
	// (a cascade delete removes the comment plus its replies).
	Delta int `json:"delta,omitempty"`

	// Status carries the new status for EventCommentStatusChanged.
	Status string `json:"status,omitempty"`
}

// NewCommentCreatedEvent is published after a comment insert. The worker
// bumps the post's comment counter and notifies subscribed listings.
func NewCommentCreatedEvent(postID, commentID, actorID int64) ModerationEvent {
	return ModerationEvent{
		Type:      EventCommentCreated,
		Timestamp: time.Now().Unix(),
		PostID:    postID,
		CommentID: commentID,
		ActorID:   actorID,
		Delta:     1,
	}
}

// NewCommentDeletedEvent is published after a delete. deleted counts the
// comment and every cascade-deleted reply.
func NewCommentDeletedEvent(postID, commentID, actorID int64, deleted int) ModerationEvent {
	return ModerationEvent{
		Type:      EventCommentDeleted,
		Timestamp: time.Now().Unix(),
		PostID:    postID,
		CommentID: commentID,
		ActorID:   actorID,
		Delta:     -deleted,
	}
}

// NewCommentStatusChangedEvent is published when a moderator approves or
// rejects a comment.
func NewCommentStatusChangedEvent(postID, commentID, actorID int64, status string) ModerationEvent {
	return ModerationEvent{
		Type:      EventCommentStatusChanged,
		Timestamp: time.Now().Unix(),
		PostID:    postID,
		CommentID: commentID,
		ActorID:   actorID,
		Status:    status,
	}
}

// NewPostDeletedEvent is published after a post delete so listings refetch.
func NewPostDeletedEvent(postID, actorID int64) ModerationEvent {
	return ModerationEvent{
		Type:      EventPostDeleted,
		Timestamp: time.Now().Unix(),
		PostID:    postID,
		ActorID:   actorID,
	}
}

// ToMap converts the event to field-value pairs for Redis XADD. The full
// event is serialized as JSON in a "data" field; "type" is kept separate so
// it is inspectable without unmarshalling.
func (e ModerationEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseModerationEvent parses a ModerationEvent from stream message values.
func ParseModerationEvent(values map[string]interface{}) (ModerationEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return ModerationEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event ModerationEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return ModerationEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}

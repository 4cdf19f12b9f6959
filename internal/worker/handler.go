package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"newsdesk/internal/gateway"
	"newsdesk/internal/queue"
)

// CounterStore adjusts denormalized per-post counters. The post repository
// satisfies it; the interface keeps the worker off the DB layer directly.
type CounterStore interface {
	// AdjustCommentCount adds delta (possibly negative) to a post's comment
	// counter.
	AdjustCommentCount(ctx context.Context, postID int64, delta int) error
}

// ChangeBroadcaster notifies subscribed listings that a table changed so
// they refetch. The gateway change feed satisfies it.
type ChangeBroadcaster interface {
	Publish(ctx context.Context, change gateway.Change)
}

// Handler processes moderation events from the queue: it keeps comment
// counters in sync and broadcasts row-change notifications.
type Handler struct {
	counters  CounterStore
	broadcast ChangeBroadcaster // can be nil if the change feed is not wired
}

// NewHandler creates a new event handler.
func NewHandler(counters CounterStore, broadcast ChangeBroadcaster) *Handler {
	return &Handler{counters: counters, broadcast: broadcast}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.ModerationEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventCommentCreated, queue.EventCommentDeleted:
		err = h.handleCommentCountChange(ctx, event)
	case queue.EventCommentStatusChanged:
		h.notifyChange(ctx, "comments", "update", event.CommentID)
	case queue.EventPostDeleted:
		h.notifyChange(ctx, "posts", "delete", event.PostID)
	default:
		log.Printf("[Worker] Unknown event type: %s", event.Type)
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		log.Printf("[Worker] HandleEvent FAILED: type=%s duration=%v err=%v",
			event.Type, time.Since(startTime), err)
		return err
	}

	log.Printf("[Worker] HandleEvent OK: type=%s duration=%v", event.Type, time.Since(startTime))
	return nil
}

// handleCommentCountChange applies the event's delta to the post's comment
// counter. A delete event carries a negative delta covering the comment and
// its cascade-deleted replies.
func (h *Handler) handleCommentCountChange(ctx context.Context, event queue.ModerationEvent) error {
	log.Printf("[Worker] %s: post=%d comment=%d delta=%d", event.Type, event.PostID, event.CommentID, event.Delta)

	if event.Delta != 0 {
		if err := h.counters.AdjustCommentCount(ctx, event.PostID, event.Delta); err != nil {
			return fmt.Errorf("adjust comment count: %w", err)
		}
	}

	op := "insert"
	if event.Delta < 0 {
		op = "delete"
	}
	h.notifyChange(ctx, "comments", op, event.CommentID)
	return nil
}

// notifyChange broadcasts a refetch trigger. Best-effort.
func (h *Handler) notifyChange(ctx context.Context, table, op string, id int64) {
	if h.broadcast == nil {
		return
	}
	h.broadcast.Publish(ctx, gateway.Change{Table: table, Op: op, IDs: []int64{id}})
}

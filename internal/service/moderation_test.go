package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"newsdesk/internal/gateway"
	"newsdesk/internal/model"
	"newsdesk/internal/notify"
	"newsdesk/internal/queue"
)

func loadedModerationService(t *testing.T, rows []model.Comment, commentRepo *mockCommentRepository, pub *mockPublisher) *ModerationService {
	t.Helper()
	commentRepo.listFn = func(ctx context.Context, spec gateway.QuerySpec) ([]model.Comment, int64, error) {
		out := make([]model.Comment, len(rows))
		copy(out, rows)
		return out, int64(len(rows)), nil
	}

	svc := NewModerationService(commentRepo, &mockPostRepository{}, nil, &mockGateway{}, pub, notify.NewCenter(time.Minute))
	if err := svc.Comments.Refetch(context.Background()); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	return svc
}

func TestModerationService_ApprovePublishesCounterEvent(t *testing.T) {
	rows := []model.Comment{{ID: 1, PostID: 7, Status: model.CommentStatusPending}}
	commentRepo := &mockCommentRepository{}
	pub := &mockPublisher{}
	svc := loadedModerationService(t, rows, commentRepo, pub)

	if err := svc.ApproveComment(context.Background(), 1); err != nil {
		t.Fatalf("approve: %v", err)
	}

	items := svc.Comments.Items()
	if items[0].Status != model.CommentStatusApproved {
		t.Errorf("status = %q, want approved", items[0].Status)
	}
	if len(commentRepo.updateStatusCalls) != 1 {
		t.Fatalf("updateStatusCalls = %v, want one call", commentRepo.updateStatusCalls)
	}
	// Going public counts as an insert for the comment counter.
	if len(pub.events) != 1 || pub.events[0].Type != queue.EventCommentCreated {
		t.Errorf("events = %v, want one comment_created", pub.events)
	}
}

func TestModerationService_RejectApprovedPublishesRemoval(t *testing.T) {
	rows := []model.Comment{{ID: 1, PostID: 7, Status: model.CommentStatusApproved}}
	pub := &mockPublisher{}
	svc := loadedModerationService(t, rows, &mockCommentRepository{}, pub)

	if err := svc.RejectComment(context.Background(), 1); err != nil {
		t.Fatalf("reject: %v", err)
	}

	if len(pub.events) != 1 || pub.events[0].Type != queue.EventCommentDeleted {
		t.Fatalf("events = %v, want one comment_deleted", pub.events)
	}
	if pub.events[0].Delta != -1 {
		t.Errorf("delta = %d, want -1", pub.events[0].Delta)
	}
}

func TestModerationService_RejectPendingOnlyBroadcasts(t *testing.T) {
	rows := []model.Comment{{ID: 1, PostID: 7, Status: model.CommentStatusPending}}
	pub := &mockPublisher{}
	svc := loadedModerationService(t, rows, &mockCommentRepository{}, pub)

	if err := svc.RejectComment(context.Background(), 1); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// Never visible, so the counter must not move.
	if len(pub.events) != 1 || pub.events[0].Type != queue.EventCommentStatusChanged {
		t.Errorf("events = %v, want one status_changed", pub.events)
	}
}

func TestModerationService_ApproveRollbackOnFailure(t *testing.T) {
	rows := []model.Comment{{ID: 1, PostID: 7, Status: model.CommentStatusPending}}
	commentRepo := &mockCommentRepository{
		updateStatusFn: func(ctx context.Context, ids []int64, status model.CommentStatus) error {
			return errors.New("store unavailable")
		},
	}
	pub := &mockPublisher{}
	svc := loadedModerationService(t, rows, commentRepo, pub)

	if err := svc.ApproveComment(context.Background(), 1); err == nil {
		t.Fatal("expected approve to fail")
	}

	items := svc.Comments.Items()
	if items[0].Status != model.CommentStatusPending {
		t.Errorf("status = %q, want rollback to pending", items[0].Status)
	}
	if len(pub.events) != 0 {
		t.Errorf("events = %v, want none after rollback", pub.events)
	}
}

func TestModerationService_ApproveAlreadyApprovedIsNoop(t *testing.T) {
	rows := []model.Comment{{ID: 1, PostID: 7, Status: model.CommentStatusApproved}}
	commentRepo := &mockCommentRepository{}
	pub := &mockPublisher{}
	svc := loadedModerationService(t, rows, commentRepo, pub)

	if err := svc.ApproveComment(context.Background(), 1); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if len(commentRepo.updateStatusCalls) != 0 || len(pub.events) != 0 {
		t.Error("approving an approved comment should not touch the store")
	}
}

func TestModerationService_TogglePinPersists(t *testing.T) {
	rows := []model.Comment{
		{ID: 1, PostID: 7, Status: model.CommentStatusApproved, CreatedAt: time.Unix(300, 0)},
		{ID: 2, PostID: 7, Status: model.CommentStatusApproved, CreatedAt: time.Unix(200, 0)},
	}
	var persisted []bool
	commentRepo := &mockCommentRepository{
		setPinnedFn: func(ctx context.Context, id int64, pinned bool) error {
			persisted = append(persisted, pinned)
			return nil
		},
	}
	svc := loadedModerationService(t, rows, commentRepo, &mockPublisher{})

	if err := svc.TogglePinComment(context.Background(), 2); err != nil {
		t.Fatalf("toggle pin: %v", err)
	}

	items := svc.Comments.Items()
	if items[0].ID != 2 || !items[0].IsPinned {
		t.Errorf("first item = %+v, want pinned comment 2 on top", items[0])
	}
	if len(persisted) != 1 || !persisted[0] {
		t.Errorf("persisted = %v, want [true]", persisted)
	}
}

func TestModerationService_RemoteChangeRefetchesListing(t *testing.T) {
	var mu sync.Mutex
	current := []model.Comment{{ID: 1, PostID: 7, Status: model.CommentStatusPending}}
	commentRepo := &mockCommentRepository{
		listFn: func(ctx context.Context, spec gateway.QuerySpec) ([]model.Comment, int64, error) {
			mu.Lock()
			defer mu.Unlock()
			out := make([]model.Comment, len(current))
			copy(out, current)
			return out, int64(len(current)), nil
		},
	}
	gw := &mockGateway{}
	svc := NewModerationService(commentRepo, &mockPostRepository{}, nil, gw, &mockPublisher{}, notify.NewCenter(time.Minute))
	if err := svc.WatchChanges(context.Background()); err != nil {
		t.Fatalf("watch changes: %v", err)
	}
	defer svc.Stop()

	if err := svc.Comments.Refetch(context.Background()); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if len(svc.Comments.Items()) != 1 {
		t.Fatalf("items = %d, want 1 before the change", len(svc.Comments.Items()))
	}

	onChange, ok := gw.subscriptions["comments"]
	if !ok {
		t.Fatal("comments table is not watched")
	}
	if _, ok := gw.subscriptions["posts"]; !ok {
		t.Fatal("posts table is not watched")
	}

	// Another admin approves a second comment somewhere else; the feed fires
	// and the listing picks it up with a full refetch.
	mu.Lock()
	current = append(current, model.Comment{ID: 2, PostID: 7, Status: model.CommentStatusPending})
	mu.Unlock()
	onChange(gateway.Change{Table: "comments", Op: "insert", IDs: []int64{2}})

	if got := len(svc.Comments.Items()); got != 2 {
		t.Errorf("items = %d, want 2 after the change fired", got)
	}
}

func TestModerationService_EditRewritesContent(t *testing.T) {
	rows := []model.Comment{{ID: 1, PostID: 7, Status: model.CommentStatusApproved, Content: "frist"}}
	var persisted string
	commentRepo := &mockCommentRepository{
		updateContentFn: func(ctx context.Context, id int64, content string) error {
			persisted = content
			return nil
		},
	}
	pub := &mockPublisher{}
	svc := loadedModerationService(t, rows, commentRepo, pub)

	if err := svc.EditComment(context.Background(), 1, "  first  "); err != nil {
		t.Fatalf("edit: %v", err)
	}

	if got := svc.Comments.Items()[0].Content; got != "first" {
		t.Errorf("content = %q, want trimmed rewrite", got)
	}
	if persisted != "first" {
		t.Errorf("persisted = %q, want %q", persisted, "first")
	}
	// Visibility did not change, so the counter pipeline stays quiet.
	if len(pub.events) != 0 {
		t.Errorf("events = %v, want none", pub.events)
	}
}

func TestModerationService_ReplyToReplyLandsUnderRoot(t *testing.T) {
	rootID := int64(1)
	rows := []model.Comment{
		{ID: 1, PostID: 7, Status: model.CommentStatusApproved},
		{ID: 2, PostID: 7, ParentID: &rootID, Status: model.CommentStatusApproved},
	}
	commentRepo := &mockCommentRepository{}
	pub := &mockPublisher{}
	svc := loadedModerationService(t, rows, commentRepo, pub)

	ctx := gateway.WithSession(context.Background(), gateway.Session{UserID: 42, Role: model.RoleAdmin})
	if err := svc.ReplyToComment(ctx, 2, "Thanks for the report"); err != nil {
		t.Fatalf("reply: %v", err)
	}

	if len(commentRepo.createCalls) != 1 {
		t.Fatalf("createCalls = %d, want 1", len(commentRepo.createCalls))
	}
	created := commentRepo.createCalls[0]
	if created.ParentID == nil || *created.ParentID != rootID {
		t.Errorf("parent = %v, want root %d", created.ParentID, rootID)
	}
	if created.Status != model.CommentStatusApproved {
		t.Errorf("status = %q, want approved", created.Status)
	}
	if created.UserID == nil || *created.UserID != 42 {
		t.Errorf("author = %v, want admin 42", created.UserID)
	}
	if len(pub.events) != 1 || pub.events[0].Type != queue.EventCommentCreated {
		t.Errorf("events = %v, want one comment_created", pub.events)
	}
}

func TestModerationService_ReplyRequiresSession(t *testing.T) {
	rows := []model.Comment{{ID: 1, PostID: 7, Status: model.CommentStatusApproved}}
	commentRepo := &mockCommentRepository{}
	svc := loadedModerationService(t, rows, commentRepo, &mockPublisher{})

	err := svc.ReplyToComment(context.Background(), 1, "hello")
	if !errors.Is(err, gateway.ErrSessionRequired) {
		t.Fatalf("err = %v, want ErrSessionRequired", err)
	}
	if len(commentRepo.createCalls) != 0 {
		t.Error("reply without a session must not reach the store")
	}
}

func TestModerationService_DeleteRequiresConfirmation(t *testing.T) {
	rows := []model.Comment{{ID: 1, PostID: 7, Status: model.CommentStatusApproved}}
	svc := loadedModerationService(t, rows, &mockCommentRepository{}, &mockPublisher{})

	err := svc.DeleteComment(context.Background(), 1, false)
	if err == nil {
		t.Fatal("expected unconfirmed delete to fail")
	}
	if len(svc.Comments.Items()) != 1 {
		t.Error("unconfirmed delete must not remove anything")
	}
}

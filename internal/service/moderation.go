package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"

	"newsdesk/internal/gateway"
	"newsdesk/internal/moderation"
	"newsdesk/internal/model"
	"newsdesk/internal/notify"
	"newsdesk/internal/queue"
	"newsdesk/internal/repository"
)

// Searchable fields for the admin free-text search.
var (
	commentSearchFields = []string{"content", "guest_name"}
	postSearchFields    = []string{"title", "category"}
)

const defaultPageSize = 20

// ModerationService drives the admin back-office screens: the comment
// moderation queue and the post listing, both held as optimistic working
// lists reconciled against the store.
type ModerationService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	db          *sqlx.DB
	gw          gateway.Gateway
	publisher   queue.Publisher
	notifier    *notify.Center

	Comments *moderation.List[model.Comment]
	Posts    *moderation.List[model.Post]

	mu           sync.Mutex
	commentQuery moderation.Query
	postQuery    moderation.Query

	commentSearch *moderation.Debouncer
	postSearch    *moderation.Debouncer

	unsubscribe []gateway.Unsubscribe
}

func NewModerationService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	db *sqlx.DB,
	gw gateway.Gateway,
	publisher queue.Publisher,
	notifier *notify.Center,
) *ModerationService {
	s := &ModerationService{
		commentRepo:   commentRepo,
		postRepo:      postRepo,
		db:            db,
		gw:            gw,
		publisher:     publisher,
		notifier:      notifier,
		commentQuery:  moderation.Query{Limit: defaultPageSize},
		postQuery:     moderation.Query{Limit: defaultPageSize},
		commentSearch: moderation.NewDebouncer(moderation.DefaultDebounce),
		postSearch:    moderation.NewDebouncer(moderation.DefaultDebounce),
	}

	s.Comments = moderation.NewList(moderation.Config[model.Comment]{
		ID:          func(c model.Comment) int64 { return c.ID },
		Pinned:      func(c model.Comment) bool { return c.IsPinned },
		SetPinned:   func(c *model.Comment, pinned bool) { c.IsPinned = pinned },
		CreatedUnix: func(c model.Comment) int64 { return c.CreatedAt.Unix() },
		Fetch: func(ctx context.Context, q moderation.Query) ([]model.Comment, int64, error) {
			return s.commentRepo.List(ctx, querySpec(q, commentSearchFields))
		},
	}, notifier)

	s.Posts = moderation.NewList(moderation.Config[model.Post]{
		ID:          func(p model.Post) int64 { return p.ID },
		Pinned:      func(p model.Post) bool { return p.IsPinned },
		SetPinned:   func(p *model.Post, pinned bool) { p.IsPinned = pinned },
		CreatedUnix: func(p model.Post) int64 { return p.CreatedAt.Unix() },
		Fetch: func(ctx context.Context, q moderation.Query) ([]model.Post, int64, error) {
			return s.postRepo.List(ctx, querySpec(q, postSearchFields))
		},
	}, notifier)

	return s
}

// WatchChanges subscribes both listings to the change feed. Any remote
// mutation to a watched table triggers a full refetch of that listing, not
// an incremental patch. Called once at startup; Stop releases the
// subscriptions.
func (s *ModerationService) WatchChanges(ctx context.Context) error {
	tables := map[string]func(context.Context) error{
		"comments": s.Comments.Refetch,
		"posts":    s.Posts.Refetch,
	}
	for table, refetch := range tables {
		table, refetch := table, refetch
		unsub, err := s.gw.SubscribeToChanges(ctx, table, func(gateway.Change) {
			if err := refetch(context.Background()); err != nil {
				log.Printf("[ModerationService] Refetch after %s change failed: %v", table, err)
			}
		})
		if err != nil {
			return fmt.Errorf("subscribe to %s changes: %w", table, err)
		}
		s.unsubscribe = append(s.unsubscribe, unsub)
	}
	return nil
}

// querySpec translates a listing query into the gateway's query contract:
// pinned records first, newest first within each group.
func querySpec(q moderation.Query, searchFields []string) gateway.QuerySpec {
	spec := gateway.QuerySpec{
		Search:       q.Search,
		SearchFields: searchFields,
		Sort: []gateway.Sort{
			{Field: "is_pinned", Desc: true},
			{Field: "created_at", Desc: true},
		},
		Offset: q.Offset,
		Limit:  q.Limit,
	}
	if spec.Limit <= 0 {
		spec.Limit = defaultPageSize
	}
	for field, value := range q.Filters {
		spec.Filters = append(spec.Filters, gateway.Filter{Field: field, Op: gateway.OpEq, Value: value})
	}
	return spec
}

// QueryComments replaces the whole comment listing query and reloads.
func (s *ModerationService) QueryComments(ctx context.Context, q moderation.Query) error {
	s.mu.Lock()
	s.commentQuery = q
	s.mu.Unlock()
	return s.Comments.SetQuery(ctx, q)
}

// FilterComments replaces the comment filters and reloads from page one.
func (s *ModerationService) FilterComments(ctx context.Context, filters map[string]string) error {
	s.mu.Lock()
	s.commentQuery.Filters = filters
	s.commentQuery.Offset = 0
	q := s.commentQuery
	s.mu.Unlock()
	return s.Comments.SetQuery(ctx, q)
}

// SearchComments schedules a debounced search so a burst of keystrokes
// issues one query, for the trailing term.
func (s *ModerationService) SearchComments(term string) {
	s.commentSearch.Trigger(func() {
		s.mu.Lock()
		s.commentQuery.Search = term
		s.commentQuery.Offset = 0
		q := s.commentQuery
		s.mu.Unlock()
		if err := s.Comments.SetQuery(context.Background(), q); err != nil {
			log.Printf("[ModerationService] Comment search %q failed: %v", term, err)
		}
	})
}

// PageComments moves the comment listing window.
func (s *ModerationService) PageComments(ctx context.Context, offset, limit int) error {
	s.mu.Lock()
	s.commentQuery.Offset = offset
	s.commentQuery.Limit = limit
	q := s.commentQuery
	s.mu.Unlock()
	return s.Comments.SetQuery(ctx, q)
}

// ApproveComment moves a comment to approved, optimistically.
func (s *ModerationService) ApproveComment(ctx context.Context, commentID int64) error {
	return s.setCommentStatus(ctx, commentID, model.CommentStatusApproved, "Comment approved")
}

// RejectComment moves a comment to rejected, optimistically.
func (s *ModerationService) RejectComment(ctx context.Context, commentID int64) error {
	return s.setCommentStatus(ctx, commentID, model.CommentStatusRejected, "Comment rejected")
}

func (s *ModerationService) setCommentStatus(ctx context.Context, commentID int64, status model.CommentStatus, okMessage string) error {
	prior, ok := s.displayedComment(commentID)
	if !ok {
		return moderation.ErrNotDisplayed
	}
	if prior.Status == status {
		return nil
	}

	err := s.Comments.Mutate(ctx, commentID,
		func(c *model.Comment) { c.Status = status },
		func(ctx context.Context) error {
			if err := s.commentRepo.UpdateStatus(ctx, []int64{commentID}, status); err != nil {
				return err
			}
			s.publishStatusTransition(ctx, prior, status)
			return nil
		},
	)
	if err == nil {
		s.notifier.Success(okMessage)
	}
	return err
}

// publishStatusTransition emits the counter event matching the comment's
// change in public visibility. A pending comment turning approved appears on
// the site; an approved comment turning rejected disappears from it; other
// transitions only touch the admin listing.
func (s *ModerationService) publishStatusTransition(ctx context.Context, prior model.Comment, status model.CommentStatus) {
	if s.publisher == nil {
		return
	}
	actorID := actorFrom(ctx)

	var event queue.ModerationEvent
	switch {
	case prior.Status != model.CommentStatusApproved && status == model.CommentStatusApproved:
		event = queue.NewCommentCreatedEvent(prior.PostID, prior.ID, actorID)
	case prior.Status == model.CommentStatusApproved && status != model.CommentStatusApproved:
		event = queue.NewCommentDeletedEvent(prior.PostID, prior.ID, actorID, 1)
	default:
		event = queue.NewCommentStatusChangedEvent(prior.PostID, prior.ID, actorID, string(status))
	}
	if _, err := s.publisher.Publish(ctx, queue.StreamModeration, event); err != nil {
		log.Printf("[ModerationService] Failed to publish status event for comment %d: %v", prior.ID, err)
	}
}

// EditComment rewrites a comment's body, optimistically. Editing never
// changes moderation status or public visibility, so no counter event.
func (s *ModerationService) EditComment(ctx context.Context, commentID int64, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.ErrContentRequired
	}
	if len(content) > model.MaxCommentLength {
		return model.ErrContentTooLong
	}

	err := s.Comments.Mutate(ctx, commentID,
		func(c *model.Comment) { c.Content = content },
		func(ctx context.Context) error {
			return s.commentRepo.UpdateContent(ctx, commentID, content)
		},
	)
	if err == nil {
		s.notifier.Success("Comment updated")
	}
	return err
}

// TogglePinComment flips the pin flag; pinned comments float to the top of
// the queue.
func (s *ModerationService) TogglePinComment(ctx context.Context, commentID int64) error {
	return s.Comments.TogglePin(ctx, commentID, func(ctx context.Context, pinned bool) error {
		return s.commentRepo.SetPinned(ctx, commentID, pinned)
	})
}

// DeleteComment permanently removes a comment and its replies. Requires the
// confirmed flag from the confirmation modal.
func (s *ModerationService) DeleteComment(ctx context.Context, commentID int64, confirmed bool) error {
	err := s.Comments.Delete(ctx, commentID, confirmed, func(ctx context.Context) error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		postID, deleted, err := s.commentRepo.Delete(ctx, tx, commentID)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}

		s.publishCommentDeleted(ctx, postID, commentID, deleted)
		return nil
	})
	if err == nil {
		s.notifier.Success("Comment deleted")
	}
	return err
}

// BulkDeleteComments deletes the current selection in one batch.
func (s *ModerationService) BulkDeleteComments(ctx context.Context, confirmed bool) error {
	err := s.Comments.BulkDelete(ctx, confirmed, func(ctx context.Context, ids []int64) error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		deletedByPost, err := s.commentRepo.DeleteMany(ctx, tx, ids)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}

		for postID, deleted := range deletedByPost {
			s.publishCommentDeleted(ctx, postID, 0, deleted)
		}
		return nil
	})
	if err == nil {
		s.notifier.Success("Selected comments deleted")
	}
	return err
}

// ReplyToComment posts a reply under the given comment as the acting admin.
// The reply is approved immediately, and the listing is refetched rather than
// patched locally so joined author fields come back populated.
func (s *ModerationService) ReplyToComment(ctx context.Context, parentID int64, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.ErrContentRequired
	}
	if len(content) > model.MaxCommentLength {
		return model.ErrContentTooLong
	}
	session, ok := gateway.SessionFromContext(ctx)
	if !ok {
		return gateway.ErrSessionRequired
	}

	parent, ok := s.displayedComment(parentID)
	if !ok {
		return moderation.ErrNotDisplayed
	}
	// Replies to replies land under the thread root, same as the public path.
	rootID := parent.ID
	if parent.ParentID != nil {
		rootID = *parent.ParentID
	}

	reply := &model.Comment{
		PostID:   parent.PostID,
		ParentID: &rootID,
		UserID:   &session.UserID,
		Content:  content,
		Status:   model.CommentStatusApproved,
	}
	created, err := s.commentRepo.Create(ctx, reply)
	if err != nil {
		return err
	}

	if s.publisher != nil {
		event := queue.NewCommentCreatedEvent(created.PostID, created.ID, session.UserID)
		if _, err := s.publisher.Publish(ctx, queue.StreamModeration, event); err != nil {
			log.Printf("[ModerationService] Failed to publish CommentCreated event for reply %d: %v", created.ID, err)
		}
	}

	if err := s.Comments.Refetch(ctx); err != nil {
		return err
	}
	s.notifier.Success("Reply posted")
	return nil
}

// publishCommentDeleted emits the counter catch-up event. deleted counts
// publicly visible rows that went away, cascaded replies included.
func (s *ModerationService) publishCommentDeleted(ctx context.Context, postID, commentID int64, deleted int) {
	if s.publisher == nil || deleted == 0 {
		return
	}
	event := queue.NewCommentDeletedEvent(postID, commentID, actorFrom(ctx), deleted)
	if _, err := s.publisher.Publish(ctx, queue.StreamModeration, event); err != nil {
		log.Printf("[ModerationService] Failed to publish CommentDeleted event: %v", err)
	}
}

// QueryPosts replaces the whole post listing query and reloads.
func (s *ModerationService) QueryPosts(ctx context.Context, q moderation.Query) error {
	s.mu.Lock()
	s.postQuery = q
	s.mu.Unlock()
	return s.Posts.SetQuery(ctx, q)
}

// FilterPosts replaces the post filters and reloads from page one.
func (s *ModerationService) FilterPosts(ctx context.Context, filters map[string]string) error {
	s.mu.Lock()
	s.postQuery.Filters = filters
	s.postQuery.Offset = 0
	q := s.postQuery
	s.mu.Unlock()
	return s.Posts.SetQuery(ctx, q)
}

// SearchPosts schedules a debounced post search.
func (s *ModerationService) SearchPosts(term string) {
	s.postSearch.Trigger(func() {
		s.mu.Lock()
		s.postQuery.Search = term
		s.postQuery.Offset = 0
		q := s.postQuery
		s.mu.Unlock()
		if err := s.Posts.SetQuery(context.Background(), q); err != nil {
			log.Printf("[ModerationService] Post search %q failed: %v", term, err)
		}
	})
}

// PagePosts moves the post listing window.
func (s *ModerationService) PagePosts(ctx context.Context, offset, limit int) error {
	s.mu.Lock()
	s.postQuery.Offset = offset
	s.postQuery.Limit = limit
	q := s.postQuery
	s.mu.Unlock()
	return s.Posts.SetQuery(ctx, q)
}

// TogglePinPost flips the pin flag on a post.
func (s *ModerationService) TogglePinPost(ctx context.Context, postID int64) error {
	return s.Posts.TogglePin(ctx, postID, func(ctx context.Context, pinned bool) error {
		return s.postRepo.SetPinned(ctx, postID, pinned)
	})
}

// PublishPost moves a post from draft to published, optimistically.
func (s *ModerationService) PublishPost(ctx context.Context, postID int64) error {
	return s.setPostStatus(ctx, postID, model.PostStatusPublished, "Post published")
}

// UnpublishPost moves a post back to draft.
func (s *ModerationService) UnpublishPost(ctx context.Context, postID int64) error {
	return s.setPostStatus(ctx, postID, model.PostStatusDraft, "Post moved to drafts")
}

func (s *ModerationService) setPostStatus(ctx context.Context, postID int64, status model.PostStatus, okMessage string) error {
	err := s.Posts.Mutate(ctx, postID,
		func(p *model.Post) { p.Status = status },
		func(ctx context.Context) error {
			return s.postRepo.SetStatus(ctx, postID, status)
		},
	)
	if err == nil {
		s.notifier.Success(okMessage)
	}
	return err
}

// DeletePost permanently removes a post and, through the database cascade,
// its comments. Requires the confirmed flag.
func (s *ModerationService) DeletePost(ctx context.Context, postID int64, confirmed bool) error {
	err := s.Posts.Delete(ctx, postID, confirmed, func(ctx context.Context) error {
		if err := s.postRepo.Delete(ctx, postID); err != nil {
			return err
		}
		s.publishPostDeleted(ctx, postID)
		return nil
	})
	if err == nil {
		s.notifier.Success("Post deleted")
	}
	return err
}

// BulkDeletePosts deletes the selected posts in one batch.
func (s *ModerationService) BulkDeletePosts(ctx context.Context, confirmed bool) error {
	err := s.Posts.BulkDelete(ctx, confirmed, func(ctx context.Context, ids []int64) error {
		if err := s.postRepo.DeleteMany(ctx, ids); err != nil {
			return err
		}
		for _, id := range ids {
			s.publishPostDeleted(ctx, id)
		}
		return nil
	})
	if err == nil {
		s.notifier.Success("Selected posts deleted")
	}
	return err
}

func (s *ModerationService) publishPostDeleted(ctx context.Context, postID int64) {
	if s.publisher == nil {
		return
	}
	event := queue.NewPostDeletedEvent(postID, actorFrom(ctx))
	if _, err := s.publisher.Publish(ctx, queue.StreamModeration, event); err != nil {
		log.Printf("[ModerationService] Failed to publish PostDeleted event: %v", err)
	}
}

// Stop tears down the debounce timers and change subscriptions. Called on
// shutdown.
func (s *ModerationService) Stop() {
	s.commentSearch.Stop()
	s.postSearch.Stop()
	for _, unsub := range s.unsubscribe {
		if err := unsub(); err != nil {
			log.Printf("[ModerationService] Unsubscribe failed: %v", err)
		}
	}
	s.unsubscribe = nil
}

// displayedComment finds a comment in the working list by id.
func (s *ModerationService) displayedComment(commentID int64) (model.Comment, bool) {
	for _, c := range s.Comments.Items() {
		if c.ID == commentID {
			return c, true
		}
	}
	return model.Comment{}, false
}

// actorFrom extracts the acting admin's id for event attribution; zero when
// the context carries no session.
func actorFrom(ctx context.Context) int64 {
	session, ok := gateway.SessionFromContext(ctx)
	if !ok {
		return 0
	}
	return session.UserID
}

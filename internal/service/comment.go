package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"newsdesk/internal/cache"
	"newsdesk/internal/gateway"
	"newsdesk/internal/model"
	"newsdesk/internal/queue"
	"newsdesk/internal/repository"
	"newsdesk/internal/thread"
)

// CommentService handles the public side of commenting: submission, the
// threaded listing, and per-comment likes.
type CommentService struct {
	commentRepo  repository.CommentRepository
	postRepo     repository.PostRepository
	userRepo     repository.UserRepository
	settingsRepo repository.SettingsRepository
	gw           gateway.Gateway
	likes        cache.LikesCache
	publisher    queue.Publisher
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	settingsRepo repository.SettingsRepository,
	gw gateway.Gateway,
	likes cache.LikesCache,
	publisher queue.Publisher,
) *CommentService {
	return &CommentService{
		commentRepo:  commentRepo,
		postRepo:     postRepo,
		userRepo:     userRepo,
		settingsRepo: settingsRepo,
		gw:           gw,
		likes:        likes,
		publisher:    publisher,
	}
}

// Create submits a comment on a post. Unauthenticated callers must provide
// guest name and email; authenticated callers must not. New comments start
// pending unless the caller is an admin, whose comments go live immediately.
func (s *CommentService) Create(ctx context.Context, postID int64, req model.CreateCommentRequest) (*model.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, model.ErrContentRequired
	}
	if len(content) > model.MaxCommentLength {
		return nil, model.ErrContentTooLong
	}

	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if !settings.CommentsEnabled {
		return nil, model.ErrCommentsDisabled
	}

	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("check post exists: %w", err)
	}
	if !exists {
		return nil, model.ErrPostNotFound
	}

	comment := &model.Comment{
		PostID:  postID,
		Content: content,
		Status:  model.CommentStatusPending,
	}

	session, authenticated := s.gw.CurrentSession(ctx)
	switch {
	case authenticated:
		if req.GuestName != "" || req.GuestEmail != "" {
			return nil, model.ErrAuthorConflict
		}
		user, err := s.userRepo.GetByID(ctx, session.UserID)
		if err != nil {
			return nil, err
		}
		if user.IsBlocked {
			return nil, model.ErrUserBlocked
		}
		comment.UserID = &user.ID
		if session.Role == model.RoleAdmin {
			comment.Status = model.CommentStatusApproved
		}
	default:
		guestName := strings.TrimSpace(req.GuestName)
		guestEmail := strings.TrimSpace(req.GuestEmail)
		if guestName == "" || guestEmail == "" {
			return nil, model.ErrGuestInfoMissing
		}
		comment.GuestName = &guestName
		comment.GuestEmail = &guestEmail
	}

	// Threads are two levels deep. A reply to a reply is re-parented to the
	// top-level comment, with an @mention so the addressee stays visible.
	if req.ParentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != postID {
			return nil, model.ErrParentMismatch
		}
		comment.ParentID = req.ParentID
		if parent.ParentID != nil {
			comment.ParentID = parent.ParentID
			if name := authorName(ctx, s.userRepo, parent); name != "" {
				comment.Content = "@" + name + " " + comment.Content
			}
		}
	}

	created, err := s.commentRepo.Create(ctx, comment)
	if err != nil {
		return nil, err
	}

	log.Printf("[CommentService] New %s comment %d on post %d", created.Status, created.ID, postID)

	// Counter catch-up happens off the request path, only once the comment
	// is publicly visible.
	if s.publisher != nil && created.Status == model.CommentStatusApproved {
		event := queue.NewCommentCreatedEvent(postID, created.ID, session.UserID)
		if _, err := s.publisher.Publish(ctx, queue.StreamModeration, event); err != nil {
			log.Printf("[CommentService] Failed to publish CommentCreated event: %v", err)
		}
	}

	return created, nil
}

// Thread returns the approved comment thread for a post: pinned-then-recent
// roots each with a flat reply list, windowed to the first few roots unless
// expanded.
func (s *CommentService) Thread(ctx context.Context, postID int64, expanded bool) (*model.ThreadResponse, error) {
	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("check post exists: %w", err)
	}
	if !exists {
		return nil, model.ErrPostNotFound
	}

	flat, err := s.commentRepo.ListApprovedByPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	liked := s.likedSet(ctx, flat)
	roots := thread.Build(flat, liked)
	visible, hidden := thread.Window(roots, expanded)

	return &model.ThreadResponse{
		Comments:    visible,
		HiddenRoots: hidden,
		Total:       len(flat),
	}, nil
}

// likedSet resolves the viewer's liked-comment flags through the cache,
// warming it from the database on a cold miss. Failures degrade to unliked
// rather than failing the thread.
func (s *CommentService) likedSet(ctx context.Context, flat []model.Comment) map[int64]bool {
	session, authenticated := s.gw.CurrentSession(ctx)
	if !authenticated || len(flat) == 0 || s.likes == nil {
		return nil
	}

	ids := make([]int64, len(flat))
	for i := range flat {
		ids[i] = flat[i].ID
	}

	liked, found, err := s.likes.LikedSet(ctx, session.UserID, ids)
	if err != nil {
		log.Printf("[CommentService] Likes cache read failed for user %d: %v", session.UserID, err)
		return nil
	}
	if found {
		return liked
	}

	likedIDs, err := s.commentRepo.LikedCommentIDs(ctx, session.UserID)
	if err != nil {
		log.Printf("[CommentService] Failed to load liked comments for user %d: %v", session.UserID, err)
		return nil
	}
	if err := s.likes.Warm(ctx, session.UserID, likedIDs); err != nil {
		log.Printf("[CommentService] Likes cache warm failed for user %d: %v", session.UserID, err)
	}

	liked = make(map[int64]bool, len(likedIDs))
	for _, id := range likedIDs {
		liked[id] = true
	}
	return liked
}

// Like records a like through the counter procedure and mirrors it into the
// cache. The procedure inserts the like row and bumps the counter
// atomically; a duplicate like affects zero rows.
func (s *CommentService) Like(ctx context.Context, commentID int64) (int, error) {
	session, authenticated := s.gw.CurrentSession(ctx)
	if !authenticated {
		return 0, model.ErrInvalidCredentials
	}

	if _, err := s.commentRepo.GetByID(ctx, commentID); err != nil {
		return 0, err
	}

	affected, err := s.gw.CallProcedure(ctx, "like_comment", commentID, session.UserID)
	if err != nil {
		return 0, fmt.Errorf("like comment: %w", err)
	}
	if affected == 0 {
		return 0, model.ErrAlreadyLiked
	}

	if s.likes != nil {
		if err := s.likes.Add(ctx, session.UserID, commentID); err != nil {
			log.Printf("[CommentService] Likes cache add failed: %v", err)
		}
	}

	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return 0, err
	}
	return comment.LikeCount, nil
}

// Unlike removes a like through the counter procedure.
func (s *CommentService) Unlike(ctx context.Context, commentID int64) (int, error) {
	session, authenticated := s.gw.CurrentSession(ctx)
	if !authenticated {
		return 0, model.ErrInvalidCredentials
	}

	affected, err := s.gw.CallProcedure(ctx, "unlike_comment", commentID, session.UserID)
	if err != nil {
		return 0, fmt.Errorf("unlike comment: %w", err)
	}
	if affected == 0 {
		return 0, model.ErrNotLiked
	}

	if s.likes != nil {
		if err := s.likes.Remove(ctx, session.UserID, commentID); err != nil {
			log.Printf("[CommentService] Likes cache remove failed: %v", err)
		}
	}

	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return 0, err
	}
	return comment.LikeCount, nil
}

// authorName resolves the display handle for a comment's author, empty when
// it cannot be determined.
func authorName(ctx context.Context, users repository.UserRepository, c *model.Comment) string {
	if c.IsGuest() {
		if c.GuestName != nil {
			return *c.GuestName
		}
		return ""
	}
	user, err := users.GetByID(ctx, *c.UserID)
	if err != nil {
		return ""
	}
	return user.Username
}

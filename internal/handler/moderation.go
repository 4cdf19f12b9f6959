package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"newsdesk/internal/gateway"
	"newsdesk/internal/httputil"
	"newsdesk/internal/model"
	"newsdesk/internal/moderation"
	"newsdesk/internal/notify"
	"newsdesk/internal/service"
)

// ModerationHandler exposes the admin back-office screens: the comment
// moderation queue, the post listing, and the notification surface.
type ModerationHandler struct {
	moderationService *service.ModerationService
	notifier          *notify.Center
}

func NewModerationHandler(moderationService *service.ModerationService, notifier *notify.Center) *ModerationHandler {
	return &ModerationHandler{
		moderationService: moderationService,
		notifier:          notifier,
	}
}

// listQuery reads filter/search/pagination params shared by both listings.
// Every query param other than the reserved ones is an equality filter.
func listQuery(r *http.Request) moderation.Query {
	q := moderation.Query{
		Search:  r.URL.Query().Get("search"),
		Filters: map[string]string{},
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && offset > 0 {
		q.Offset = offset
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		q.Limit = limit
	}
	for key, values := range r.URL.Query() {
		switch key {
		case "search", "offset", "limit":
			continue
		}
		if len(values) > 0 && values[0] != "" {
			q.Filters[key] = values[0]
		}
	}
	return q
}

func writeModerationError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, moderation.ErrNotDisplayed):
		httputil.WriteNotFound(w, what+" is not in the current listing")
	case errors.Is(err, moderation.ErrMutationInFlight):
		httputil.WriteConflict(w, "Another change to this "+what+" is still in progress")
	case errors.Is(err, moderation.ErrConfirmationRequired):
		httputil.WriteBadRequest(w, "Deletion requires confirmation")
	case errors.Is(err, moderation.ErrEmptySelection):
		httputil.WriteBadRequest(w, "Nothing is selected")
	default:
		log.Printf("[ERROR] Moderation handler: %s err=%v", what, err)
		httputil.WriteInternalError(w, "Operation failed")
	}
}

// =============================================================================
// COMMENT QUEUE
// =============================================================================

// ListComments handles GET /admin/comments
func (h *ModerationHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	if err := h.moderationService.QueryComments(r.Context(), listQuery(r)); err != nil {
		httputil.WriteInternalError(w, "Failed to load comments")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, model.CommentListResponse{
		Comments: h.moderationService.Comments.Items(),
		Total:    h.moderationService.Comments.Total(),
	})
}

// SearchComments handles POST /admin/comments/search
// Debounced: a burst of keystrokes results in one listing query. The
// refreshed listing is fetched with a follow-up GET.
func (h *ModerationHandler) SearchComments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Term string `json:"term"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	h.moderationService.SearchComments(req.Term)
	w.WriteHeader(http.StatusAccepted)
}

// ApproveComment handles POST /admin/comments/{id}/approve
func (h *ModerationHandler) ApproveComment(w http.ResponseWriter, r *http.Request) {
	h.commentAction(w, r, h.moderationService.ApproveComment)
}

// RejectComment handles POST /admin/comments/{id}/reject
func (h *ModerationHandler) RejectComment(w http.ResponseWriter, r *http.Request) {
	h.commentAction(w, r, h.moderationService.RejectComment)
}

// TogglePinComment handles POST /admin/comments/{id}/pin
func (h *ModerationHandler) TogglePinComment(w http.ResponseWriter, r *http.Request) {
	h.commentAction(w, r, h.moderationService.TogglePinComment)
}

func (h *ModerationHandler) commentAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id int64) error) {
	commentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}
	if err := action(r.Context(), commentID); err != nil {
		writeModerationError(w, err, "comment")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, model.CommentListResponse{
		Comments: h.moderationService.Comments.Items(),
		Total:    h.moderationService.Comments.Total(),
	})
}

// EditComment handles PATCH /admin/comments/{id}
func (h *ModerationHandler) EditComment(w http.ResponseWriter, r *http.Request) {
	commentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.moderationService.EditComment(r.Context(), commentID, req.Content); err != nil {
		switch {
		case errors.Is(err, model.ErrContentRequired):
			httputil.WriteBadRequest(w, "Comment content is required")
		case errors.Is(err, model.ErrContentTooLong):
			httputil.WriteBadRequest(w, "Comment content too long")
		default:
			writeModerationError(w, err, "comment")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, model.CommentListResponse{
		Comments: h.moderationService.Comments.Items(),
		Total:    h.moderationService.Comments.Total(),
	})
}

// ReplyComment handles POST /admin/comments/{id}/reply
// Posts an approved reply as the acting admin and returns the refreshed
// listing.
func (h *ModerationHandler) ReplyComment(w http.ResponseWriter, r *http.Request) {
	commentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.moderationService.ReplyToComment(r.Context(), commentID, req.Content); err != nil {
		switch {
		case errors.Is(err, model.ErrContentRequired):
			httputil.WriteBadRequest(w, "Reply content is required")
		case errors.Is(err, model.ErrContentTooLong):
			httputil.WriteBadRequest(w, "Reply content too long")
		case errors.Is(err, gateway.ErrSessionRequired):
			httputil.WriteUnauthorized(w, "Authentication required")
		default:
			writeModerationError(w, err, "comment")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, model.CommentListResponse{
		Comments: h.moderationService.Comments.Items(),
		Total:    h.moderationService.Comments.Total(),
	})
}

// DeleteComment handles DELETE /admin/comments/{id}?confirmed=true
func (h *ModerationHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	commentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}
	confirmed := r.URL.Query().Get("confirmed") == "true"
	if err := h.moderationService.DeleteComment(r.Context(), commentID, confirmed); err != nil {
		writeModerationError(w, err, "comment")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Comment deleted"})
}

// SelectComment handles PUT /admin/comments/{id}/select and
// DELETE /admin/comments/{id}/select
func (h *ModerationHandler) SelectComment(w http.ResponseWriter, r *http.Request) {
	commentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}

	if r.Method == http.MethodDelete {
		h.moderationService.Comments.Deselect(commentID)
	} else if err := h.moderationService.Comments.Select(commentID); err != nil {
		writeModerationError(w, err, "comment")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]int64{"selected": h.moderationService.Comments.Selected()})
}

// BulkDeleteComments handles POST /admin/comments/bulk-delete
func (h *ModerationHandler) BulkDeleteComments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirmed bool `json:"confirmed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := h.moderationService.BulkDeleteComments(r.Context(), req.Confirmed); err != nil {
		writeModerationError(w, err, "comment")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, model.CommentListResponse{
		Comments: h.moderationService.Comments.Items(),
		Total:    h.moderationService.Comments.Total(),
	})
}

// =============================================================================
// POST LISTING
// =============================================================================

// ListPosts handles GET /admin/posts
func (h *ModerationHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	if err := h.moderationService.QueryPosts(r.Context(), listQuery(r)); err != nil {
		httputil.WriteInternalError(w, "Failed to load posts")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, model.PostListResponse{
		Posts: h.moderationService.Posts.Items(),
		Total: h.moderationService.Posts.Total(),
	})
}

// SearchPosts handles POST /admin/posts/search
func (h *ModerationHandler) SearchPosts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Term string `json:"term"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	h.moderationService.SearchPosts(req.Term)
	w.WriteHeader(http.StatusAccepted)
}

// TogglePinPost handles POST /admin/posts/{id}/pin
func (h *ModerationHandler) TogglePinPost(w http.ResponseWriter, r *http.Request) {
	h.postAction(w, r, h.moderationService.TogglePinPost)
}

// PublishPost handles POST /admin/posts/{id}/publish
func (h *ModerationHandler) PublishPost(w http.ResponseWriter, r *http.Request) {
	h.postAction(w, r, h.moderationService.PublishPost)
}

// UnpublishPost handles POST /admin/posts/{id}/unpublish
func (h *ModerationHandler) UnpublishPost(w http.ResponseWriter, r *http.Request) {
	h.postAction(w, r, h.moderationService.UnpublishPost)
}

func (h *ModerationHandler) postAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id int64) error) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}
	if err := action(r.Context(), postID); err != nil {
		writeModerationError(w, err, "post")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, model.PostListResponse{
		Posts: h.moderationService.Posts.Items(),
		Total: h.moderationService.Posts.Total(),
	})
}

// DeletePost handles DELETE /admin/posts/{id}?confirmed=true
func (h *ModerationHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}
	confirmed := r.URL.Query().Get("confirmed") == "true"
	if err := h.moderationService.DeletePost(r.Context(), postID, confirmed); err != nil {
		writeModerationError(w, err, "post")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Post deleted"})
}

// SelectPost handles PUT /admin/posts/{id}/select and
// DELETE /admin/posts/{id}/select
func (h *ModerationHandler) SelectPost(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}

	if r.Method == http.MethodDelete {
		h.moderationService.Posts.Deselect(postID)
	} else if err := h.moderationService.Posts.Select(postID); err != nil {
		writeModerationError(w, err, "post")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]int64{"selected": h.moderationService.Posts.Selected()})
}

// BulkDeletePosts handles POST /admin/posts/bulk-delete
func (h *ModerationHandler) BulkDeletePosts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirmed bool `json:"confirmed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := h.moderationService.BulkDeletePosts(r.Context(), req.Confirmed); err != nil {
		writeModerationError(w, err, "post")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, model.PostListResponse{
		Posts: h.moderationService.Posts.Items(),
		Total: h.moderationService.Posts.Total(),
	})
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// CurrentNotification handles GET /admin/notifications
// Returns the currently displayed toast, if any.
func (h *ModerationHandler) CurrentNotification(w http.ResponseWriter, r *http.Request) {
	msg, ok := h.notifier.Current()
	if !ok {
		httputil.WriteNoContent(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, msg)
}

// DismissNotification handles DELETE /admin/notifications
func (h *ModerationHandler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	h.notifier.Dismiss()
	httputil.WriteNoContent(w)
}

package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"newsdesk/internal/httputil"
	"newsdesk/internal/model"
	"newsdesk/internal/service"
)

type CommentHandler struct {
	commentService *service.CommentService
}

func NewCommentHandler(commentService *service.CommentService) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
	}
}

// Thread handles GET /posts/{id}/comments
// Returns the approved thread, collapsed to the first roots unless
// expanded=true.
func (h *CommentHandler) Thread(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}

	expanded := r.URL.Query().Get("expanded") == "true"

	thread, err := h.commentService.Thread(r.Context(), postID, expanded)
	if err != nil {
		if errors.Is(err, model.ErrPostNotFound) {
			httputil.WriteNotFound(w, "Post not found")
			return
		}
		log.Printf("[ERROR] Thread handler: post=%d err=%v", postID, err)
		httputil.WriteInternalError(w, "Failed to load comments")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, thread)
}

// Create handles POST /posts/{id}/comments
// Open to guests; authenticated callers are identified by their session.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}

	var req model.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	comment, err := h.commentService.Create(r.Context(), postID, req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrPostNotFound):
			httputil.WriteNotFound(w, "Post not found")
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Parent comment not found")
		case errors.Is(err, model.ErrContentRequired):
			httputil.WriteBadRequest(w, "Comment content is required")
		case errors.Is(err, model.ErrContentTooLong):
			httputil.WriteBadRequest(w, "Comment content too long")
		case errors.Is(err, model.ErrParentMismatch):
			httputil.WriteBadRequest(w, "Parent comment belongs to another post")
		case errors.Is(err, model.ErrGuestInfoMissing):
			httputil.WriteBadRequest(w, "Guest name and email are required")
		case errors.Is(err, model.ErrAuthorConflict):
			httputil.WriteBadRequest(w, "Signed-in users cannot comment as guests")
		case errors.Is(err, model.ErrCommentsDisabled):
			httputil.WriteForbidden(w, "Comments are disabled")
		case errors.Is(err, model.ErrUserBlocked):
			httputil.WriteForbidden(w, "You are blocked from commenting")
		default:
			log.Printf("[ERROR] Create comment handler: post=%d err=%v", postID, err)
			httputil.WriteInternalError(w, "Failed to create comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// Like handles POST /comments/{id}/like
func (h *CommentHandler) Like(w http.ResponseWriter, r *http.Request) {
	commentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}

	count, err := h.commentService.Like(r.Context(), commentID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Comment not found")
		case errors.Is(err, model.ErrAlreadyLiked):
			httputil.WriteConflict(w, "Comment already liked")
		case errors.Is(err, model.ErrInvalidCredentials):
			httputil.WriteUnauthorized(w, "Authentication required")
		default:
			log.Printf("[ERROR] Like handler: comment=%d err=%v", commentID, err)
			httputil.WriteInternalError(w, "Failed to like comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{"like_count": count})
}

// Unlike handles DELETE /comments/{id}/like
func (h *CommentHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	commentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid comment ID")
		return
	}

	count, err := h.commentService.Unlike(r.Context(), commentID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Comment not found")
		case errors.Is(err, model.ErrNotLiked):
			httputil.WriteConflict(w, "Comment was not liked")
		case errors.Is(err, model.ErrInvalidCredentials):
			httputil.WriteUnauthorized(w, "Authentication required")
		default:
			log.Printf("[ERROR] Unlike handler: comment=%d err=%v", commentID, err)
			httputil.WriteInternalError(w, "Failed to unlike comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{"like_count": count})
}

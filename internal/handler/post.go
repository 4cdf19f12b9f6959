package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"newsdesk/internal/gateway"
	"newsdesk/internal/httputil"
	"newsdesk/internal/model"
	"newsdesk/internal/service"
)

type PostHandler struct {
	postService *service.PostService
}

func NewPostHandler(postService *service.PostService) *PostHandler {
	return &PostHandler{
		postService: postService,
	}
}

// Create handles POST /admin/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, ok := gateway.SessionFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	post, err := h.postService.Create(r.Context(), session.UserID, req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrTitleRequired):
			httputil.WriteBadRequest(w, "Post title is required")
		case errors.Is(err, model.ErrTitleTooLong):
			httputil.WriteBadRequest(w, "Post title too long")
		default:
			log.Printf("[ERROR] Create post handler: user=%d err=%v", session.UserID, err)
			httputil.WriteInternalError(w, "Failed to create post")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, post)
}

// GetByID handles GET /posts/{id}
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}

	post, err := h.postService.GetByID(r.Context(), postID)
	if err != nil {
		if errors.Is(err, model.ErrPostNotFound) {
			httputil.WriteNotFound(w, "Post not found")
			return
		}
		log.Printf("[ERROR] Get post handler: post=%d err=%v", postID, err)
		httputil.WriteInternalError(w, "Failed to load post")
		return
	}

	// Drafts are only visible in the back-office.
	if post.Status != model.PostStatusPublished {
		session, ok := gateway.SessionFromContext(r.Context())
		if !ok || session.Role != model.RoleAdmin {
			httputil.WriteNotFound(w, "Post not found")
			return
		}
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}

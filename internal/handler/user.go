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

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// UpdateProfile handles PATCH /me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	session, ok := gateway.SessionFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), session.UserID, &req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrUserNotFound):
			httputil.WriteNotFound(w, "User not found")
		case errors.Is(err, model.ErrUsernameExists):
			httputil.WriteConflict(w, "Username is already taken")
		case errors.Is(err, model.ErrInvalidCredentials):
			httputil.WriteBadRequest(w, "Username cannot be empty")
		default:
			log.Printf("[ERROR] Update profile handler: user=%d err=%v", session.UserID, err)
			httputil.WriteInternalError(w, "Failed to update profile")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

// UploadAvatar handles POST /me/avatar (multipart form, field "avatar")
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	session, ok := gateway.SessionFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := r.ParseMultipartForm(model.MaxUploadSizeBytes); err != nil {
		httputil.WriteBadRequest(w, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		httputil.WriteBadRequest(w, "Missing avatar file")
		return
	}
	defer file.Close()

	result, err := h.userService.UploadAvatar(r.Context(), session.UserID, file, header)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrFileTooLarge):
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "File exceeds the upload limit")
		case errors.Is(err, model.ErrInvalidImageType):
			httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported image type")
		case errors.Is(err, gateway.ErrNoFileStore):
			httputil.WriteError(w, http.StatusServiceUnavailable, httputil.ErrCodeInternal, "File storage is not configured")
		case errors.Is(err, model.ErrUploadTimeout):
			httputil.WriteError(w, http.StatusGatewayTimeout, httputil.ErrCodeInternal, "Upload timed out")
		default:
			log.Printf("[ERROR] Upload avatar handler: user=%d err=%v", session.UserID, err)
			httputil.WriteInternalError(w, "Failed to upload avatar")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// List handles GET /admin/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	spec := gateway.QuerySpec{
		Search:       r.URL.Query().Get("search"),
		SearchFields: []string{"username", "display_name"},
		Sort:         []gateway.Sort{{Field: "created_at", Desc: true}},
		Limit:        20,
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && offset > 0 {
		spec.Offset = offset
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		spec.Limit = limit
	}

	users, total, err := h.userService.List(r.Context(), spec)
	if err != nil {
		log.Printf("[ERROR] List users handler: err=%v", err)
		httputil.WriteInternalError(w, "Failed to list users")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"total": total,
	})
}

// SetBlocked handles PUT /admin/users/{id}/block and
// DELETE /admin/users/{id}/block
func (h *UserHandler) SetBlocked(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid user ID")
		return
	}

	blocked := r.Method != http.MethodDelete
	if err := h.userService.SetBlocked(r.Context(), userID, blocked); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		log.Printf("[ERROR] Set blocked handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to update user")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"is_blocked": blocked})
}

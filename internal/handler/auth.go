package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"newsdesk/internal/gateway"
	"newsdesk/internal/httputil"
	"newsdesk/internal/model"
	"newsdesk/internal/service"
)

type AuthHandler struct {
	userService *service.UserService
	authService *service.AuthService
}

func NewAuthHandler(userService *service.UserService, authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authService: authService,
	}
}

// loginResponse is returned by Register and Login.
type loginResponse struct {
	User        *model.User `json:"user"`
	AccessToken string      `json:"access_token"`
	ExpiresIn   int         `json:"expires_in"`
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	user, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrUsernameExists):
			httputil.WriteConflict(w, "Username is already taken")
		case errors.Is(err, model.ErrInvalidCredentials):
			httputil.WriteBadRequest(w, "Username and password are required")
		default:
			log.Printf("[ERROR] Register handler: err=%v", err)
			httputil.WriteInternalError(w, "Failed to register")
		}
		return
	}

	h.writeAuthenticated(w, http.StatusCreated, user)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	user, err := h.userService.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			httputil.WriteUnauthorized(w, "Invalid username or password")
			return
		}
		log.Printf("[ERROR] Login handler: err=%v", err)
		httputil.WriteInternalError(w, "Failed to log in")
		return
	}

	h.writeAuthenticated(w, http.StatusOK, user)
}

// Logout handles POST /auth/logout by clearing the token cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Me handles GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := gateway.SessionFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.userService.GetByID(r.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		log.Printf("[ERROR] Me handler: user=%d err=%v", session.UserID, err)
		httputil.WriteInternalError(w, "Failed to load user")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) writeAuthenticated(w http.ResponseWriter, status int, user *model.User) {
	token, err := h.authService.GenerateAccessToken(user)
	if err != nil {
		log.Printf("[ERROR] Token generation: user=%d err=%v", user.ID, err)
		httputil.WriteInternalError(w, "Failed to issue token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		MaxAge:   h.authService.ExpiresIn(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	httputil.WriteJSON(w, status, loginResponse{
		User:        user,
		AccessToken: token,
		ExpiresIn:   h.authService.ExpiresIn(),
	})
}

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"newsdesk/internal/handler"
	"newsdesk/internal/httputil"
	authmw "newsdesk/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler       *handler.AuthHandler
	UserHandler       *handler.UserHandler
	PostHandler       *handler.PostHandler
	CommentHandler    *handler.CommentHandler
	ModerationHandler *handler.ModerationHandler
	SettingsHandler   *handler.SettingsHandler
	JWTSecret         string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Public routes - no authentication required
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", cfg.AuthHandler.Register)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Post("/logout", cfg.AuthHandler.Logout)
	})

	r.Get("/settings", cfg.SettingsHandler.Get)

	// Public reading surface. Optional auth so signed-in readers get their
	// like flags and admins see drafts.
	r.Group(func(r chi.Router) {
		r.Use(authmw.OptionalAuth(cfg.JWTSecret))

		r.Get("/posts/{id}", cfg.PostHandler.GetByID)
		r.Get("/posts/{id}/comments", cfg.CommentHandler.Thread)
		r.Post("/posts/{id}/comments", cfg.CommentHandler.Create)
	})

	// Signed-in reader routes
	r.Group(func(r chi.Router) {
		r.Use(authmw.Auth(cfg.JWTSecret))

		r.Get("/me", cfg.AuthHandler.Me)
		r.Patch("/me", cfg.UserHandler.UpdateProfile)
		r.Post("/me/avatar", cfg.UserHandler.UploadAvatar)

		r.Post("/comments/{id}/like", cfg.CommentHandler.Like)
		r.Delete("/comments/{id}/like", cfg.CommentHandler.Unlike)
	})

	// Admin back-office
	r.Route("/admin", func(r chi.Router) {
		r.Use(authmw.Auth(cfg.JWTSecret))
		r.Use(authmw.AdminOnly)

		r.Route("/comments", func(r chi.Router) {
			r.Get("/", cfg.ModerationHandler.ListComments)
			r.Post("/search", cfg.ModerationHandler.SearchComments)
			r.Post("/bulk-delete", cfg.ModerationHandler.BulkDeleteComments)
			r.Post("/{id}/approve", cfg.ModerationHandler.ApproveComment)
			r.Post("/{id}/reject", cfg.ModerationHandler.RejectComment)
			r.Post("/{id}/pin", cfg.ModerationHandler.TogglePinComment)
			r.Post("/{id}/reply", cfg.ModerationHandler.ReplyComment)
			r.Patch("/{id}", cfg.ModerationHandler.EditComment)
			r.Put("/{id}/select", cfg.ModerationHandler.SelectComment)
			r.Delete("/{id}/select", cfg.ModerationHandler.SelectComment)
			r.Delete("/{id}", cfg.ModerationHandler.DeleteComment)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", cfg.ModerationHandler.ListPosts)
			r.Post("/", cfg.PostHandler.Create)
			r.Post("/search", cfg.ModerationHandler.SearchPosts)
			r.Post("/bulk-delete", cfg.ModerationHandler.BulkDeletePosts)
			r.Post("/{id}/pin", cfg.ModerationHandler.TogglePinPost)
			r.Post("/{id}/publish", cfg.ModerationHandler.PublishPost)
			r.Post("/{id}/unpublish", cfg.ModerationHandler.UnpublishPost)
			r.Put("/{id}/select", cfg.ModerationHandler.SelectPost)
			r.Delete("/{id}/select", cfg.ModerationHandler.SelectPost)
			r.Delete("/{id}", cfg.ModerationHandler.DeletePost)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", cfg.UserHandler.List)
			r.Put("/{id}/block", cfg.UserHandler.SetBlocked)
			r.Delete("/{id}/block", cfg.UserHandler.SetBlocked)
		})

		r.Patch("/settings", cfg.SettingsHandler.Update)
		r.Post("/settings/logo", cfg.SettingsHandler.UploadLogo)

		r.Get("/notifications", cfg.ModerationHandler.CurrentNotification)
		r.Delete("/notifications", cfg.ModerationHandler.DismissNotification)
	})

	return r
}

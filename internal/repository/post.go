package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"newsdesk/internal/gateway"
	"newsdesk/internal/model"
)

var postColumns = []string{
	"id", "user_id", "title", "category", "type", "status", "is_pinned",
	"like_count", "share_count", "comment_count", "language",
	"created_at", "updated_at",
}

type postRepository struct {
	db *sqlx.DB
	gw gateway.Gateway
}

func NewPostRepository(db *sqlx.DB, gw gateway.Gateway) PostRepository {
	return &postRepository{db: db, gw: gw}
}

// Create inserts a new draft post and reads back the stored row.
func (r *postRepository) Create(ctx context.Context, post *model.Post) (*model.Post, error) {
	query := `
		INSERT INTO posts (user_id, title, category, type, status, language)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, title, category, type, status, is_pinned,
		          like_count, share_count, comment_count, language,
		          created_at, updated_at
	`
	var created model.Post
	err := r.db.GetContext(ctx, &created, query,
		post.UserID, post.Title, post.Category, post.Type, post.Status, post.Language)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return &created, nil
}

// GetByID retrieves a single post with its author joined.
func (r *postRepository) GetByID(ctx context.Context, postID int64) (*model.Post, error) {
	query := `
		SELECT p.id, p.user_id, p.title, p.category, p.type, p.status, p.is_pinned,
		       p.like_count, p.share_count, p.comment_count, p.language,
		       p.created_at, p.updated_at,
		       u.id as "author.id", u.username as "author.username",
		       u.display_name as "author.display_name", u.avatar_url as "author.avatar_url"
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = $1
	`

	type postRow struct {
		model.Post
		AuthorID       int64   `db:"author.id"`
		AuthorUsername string  `db:"author.username"`
		AuthorDisplay  *string `db:"author.display_name"`
		AuthorAvatar   *string `db:"author.avatar_url"`
	}

	var row postRow
	err := r.db.GetContext(ctx, &row, query, postID)
	if err == sql.ErrNoRows {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	post := row.Post
	post.Author = &model.UserSummary{
		ID:          row.AuthorID,
		Username:    row.AuthorUsername,
		DisplayName: row.AuthorDisplay,
		AvatarURL:   row.AuthorAvatar,
	}
	return &post, nil
}

// Exists checks if a post exists.
func (r *postRepository) Exists(ctx context.Context, postID int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, postID)
	if err != nil {
		return false, fmt.Errorf("check post exists: %w", err)
	}
	return exists, nil
}

// List runs the admin post listing through the gateway.
func (r *postRepository) List(ctx context.Context, spec gateway.QuerySpec) ([]model.Post, int64, error) {
	var posts []model.Post
	total, err := r.gw.Query(ctx, &posts, "posts", postColumns, spec)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	return posts, total, nil
}

// SetPinned flips the pin flag on one post.
func (r *postRepository) SetPinned(ctx context.Context, postID int64, pinned bool) error {
	err := r.gw.Update(ctx, "posts", []int64{postID}, map[string]interface{}{"is_pinned": pinned})
	if err != nil {
		return fmt.Errorf("set post pinned: %w", err)
	}
	return nil
}

// SetStatus moves a post between draft and published.
func (r *postRepository) SetStatus(ctx context.Context, postID int64, status model.PostStatus) error {
	err := r.gw.Update(ctx, "posts", []int64{postID}, map[string]interface{}{"status": string(status)})
	if err != nil {
		return fmt.Errorf("set post status: %w", err)
	}
	return nil
}

// Delete removes a post. Its comments go with it via ON DELETE CASCADE.
func (r *postRepository) Delete(ctx context.Context, postID int64) error {
	err := r.gw.Delete(ctx, "posts", []int64{postID})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// DeleteMany removes a batch of posts in one statement.
func (r *postRepository) DeleteMany(ctx context.Context, postIDs []int64) error {
	if len(postIDs) == 0 {
		return nil
	}
	err := r.gw.Delete(ctx, "posts", postIDs)
	if err != nil {
		return fmt.Errorf("delete posts: %w", err)
	}
	return nil
}

// AdjustCommentCount moves the denormalized counter, clamping at zero so a
// replayed delete event cannot drive it negative.
func (r *postRepository) AdjustCommentCount(ctx context.Context, postID int64, delta int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE posts SET comment_count = GREATEST(comment_count + $1, 0)
		WHERE id = $2
	`, delta, postID)
	if err != nil {
		return fmt.Errorf("adjust comment count: %w", err)
	}
	return nil
}

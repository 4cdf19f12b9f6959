package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"newsdesk/internal/gateway"
	"newsdesk/internal/model"
)

// commentColumns is the persisted column set, used by gateway listings.
var commentColumns = []string{
	"id", "post_id", "parent_id", "user_id", "guest_name", "guest_email",
	"content", "status", "like_count", "is_pinned", "created_at",
}

type commentRepository struct {
	db *sqlx.DB
	gw gateway.Gateway
}

func NewCommentRepository(db *sqlx.DB, gw gateway.Gateway) CommentRepository {
	return &commentRepository{db: db, gw: gw}
}

// Create inserts a new comment and reads back the stored row.
func (r *commentRepository) Create(ctx context.Context, comment *model.Comment) (*model.Comment, error) {
	query := `
		INSERT INTO comments (post_id, parent_id, user_id, guest_name, guest_email, content, status, is_pinned)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, post_id, parent_id, user_id, guest_name, guest_email,
		          content, status, like_count, is_pinned, created_at
	`
	var created model.Comment
	err := r.db.GetContext(ctx, &created, query,
		comment.PostID, comment.ParentID, comment.UserID,
		comment.GuestName, comment.GuestEmail,
		comment.Content, comment.Status, comment.IsPinned)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return &created, nil
}

// GetByID retrieves a single comment without joins.
func (r *commentRepository) GetByID(ctx context.Context, commentID int64) (*model.Comment, error) {
	query := `
		SELECT id, post_id, parent_id, user_id, guest_name, guest_email,
		       content, status, like_count, is_pinned, created_at
		FROM comments
		WHERE id = $1
	`
	var comment model.Comment
	err := r.db.GetContext(ctx, &comment, query, commentID)
	if err == sql.ErrNoRows {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &comment, nil
}

// ListApprovedByPost returns the flat approved thread, oldest first, with
// registered authors joined. Guest comments keep their guest_name.
func (r *commentRepository) ListApprovedByPost(ctx context.Context, postID int64) ([]model.Comment, error) {
	query := `
		SELECT c.id, c.post_id, c.parent_id, c.user_id, c.guest_name, c.guest_email,
		       c.content, c.status, c.like_count, c.is_pinned, c.created_at,
		       u.id as "author.id", u.username as "author.username",
		       u.display_name as "author.display_name", u.avatar_url as "author.avatar_url"
		FROM comments c
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.post_id = $1 AND c.status = $2
		ORDER BY c.created_at ASC, c.id ASC
	`

	// Scans the joined author columns, which are NULL for guest comments.
	type commentRow struct {
		ID             int64               `db:"id"`
		PostID         int64               `db:"post_id"`
		ParentID       *int64              `db:"parent_id"`
		UserID         *int64              `db:"user_id"`
		GuestName      *string             `db:"guest_name"`
		GuestEmail     *string             `db:"guest_email"`
		Content        string              `db:"content"`
		Status         model.CommentStatus `db:"status"`
		LikeCount      int                 `db:"like_count"`
		IsPinned       bool                `db:"is_pinned"`
		CreatedAt      time.Time           `db:"created_at"`
		AuthorID       *int64              `db:"author.id"`
		AuthorUsername *string             `db:"author.username"`
		AuthorDisplay  *string             `db:"author.display_name"`
		AuthorAvatar   *string             `db:"author.avatar_url"`
	}

	var rows []commentRow
	err := r.db.SelectContext(ctx, &rows, query, postID, model.CommentStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	comments := make([]model.Comment, len(rows))
	for i, row := range rows {
		comments[i] = model.Comment{
			ID:         row.ID,
			PostID:     row.PostID,
			ParentID:   row.ParentID,
			UserID:     row.UserID,
			GuestName:  row.GuestName,
			GuestEmail: row.GuestEmail,
			Content:    row.Content,
			Status:     row.Status,
			LikeCount:  row.LikeCount,
			IsPinned:   row.IsPinned,
			CreatedAt:  row.CreatedAt,
		}
		if row.AuthorID != nil {
			comments[i].Author = &model.UserSummary{
				ID:          *row.AuthorID,
				Username:    *row.AuthorUsername,
				DisplayName: row.AuthorDisplay,
				AvatarURL:   row.AuthorAvatar,
			}
		}
	}
	return comments, nil
}

// List runs the admin moderation listing through the gateway.
func (r *commentRepository) List(ctx context.Context, spec gateway.QuerySpec) ([]model.Comment, int64, error) {
	var comments []model.Comment
	total, err := r.gw.Query(ctx, &comments, "comments", commentColumns, spec)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	return comments, total, nil
}

// UpdateStatus moves a batch of comments to the given moderation status.
func (r *commentRepository) UpdateStatus(ctx context.Context, commentIDs []int64, status model.CommentStatus) error {
	if len(commentIDs) == 0 {
		return nil
	}
	err := r.gw.Update(ctx, "comments", commentIDs, map[string]interface{}{"status": string(status)})
	if err != nil {
		return fmt.Errorf("update comment status: %w", err)
	}
	return nil
}

// SetPinned flips the pin flag on one comment.
func (r *commentRepository) SetPinned(ctx context.Context, commentID int64, pinned bool) error {
	err := r.gw.Update(ctx, "comments", []int64{commentID}, map[string]interface{}{"is_pinned": pinned})
	if err != nil {
		return fmt.Errorf("set comment pinned: %w", err)
	}
	return nil
}

// UpdateContent replaces the body of one comment.
func (r *commentRepository) UpdateContent(ctx context.Context, commentID int64, content string) error {
	err := r.gw.Update(ctx, "comments", []int64{commentID}, map[string]interface{}{"content": content})
	if err != nil {
		return fmt.Errorf("update comment content: %w", err)
	}
	return nil
}

// Delete removes a comment and its replies (ON DELETE CASCADE). The cascade
// count is taken before the delete since the rows are gone afterwards.
func (r *commentRepository) Delete(ctx context.Context, tx *sqlx.Tx, commentID int64) (int64, int, error) {
	var postID int64
	err := tx.GetContext(ctx, &postID, `SELECT post_id FROM comments WHERE id = $1`, commentID)
	if err == sql.ErrNoRows {
		return 0, 0, model.ErrCommentNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("get comment: %w", err)
	}

	// Only approved rows are reflected in the public counter, so only they
	// are counted here.
	var deletedCount int
	err = tx.GetContext(ctx, &deletedCount, `
		SELECT COUNT(*) FROM comments
		WHERE (id = $1 OR parent_id = $1) AND status = 'approved'
	`, commentID)
	if err != nil {
		return 0, 0, fmt.Errorf("count comments to delete: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, commentID)
	if err != nil {
		return 0, 0, fmt.Errorf("delete comment: %w", err)
	}

	return postID, deletedCount, nil
}

// DeleteMany removes a batch of comments and their replies in one statement
// and returns how many rows each post lost.
func (r *commentRepository) DeleteMany(ctx context.Context, tx *sqlx.Tx, commentIDs []int64) (map[int64]int, error) {
	if len(commentIDs) == 0 {
		return map[int64]int{}, nil
	}

	type postCount struct {
		PostID int64 `db:"post_id"`
		Count  int   `db:"count"`
	}
	var counts []postCount
	err := tx.SelectContext(ctx, &counts, `
		SELECT post_id, COUNT(*) as count FROM comments
		WHERE (id = ANY($1) OR parent_id = ANY($1)) AND status = 'approved'
		GROUP BY post_id
	`, pq.Array(commentIDs))
	if err != nil {
		return nil, fmt.Errorf("count comments to delete: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM comments WHERE id = ANY($1)`, pq.Array(commentIDs))
	if err != nil {
		return nil, fmt.Errorf("delete comments: %w", err)
	}

	deletedByPost := make(map[int64]int, len(counts))
	for _, c := range counts {
		deletedByPost[c.PostID] = c.Count
	}
	return deletedByPost, nil
}

// LikedCommentIDs returns every comment id the user has liked.
func (r *commentRepository) LikedCommentIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `
		SELECT comment_id FROM comment_likes WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("get liked comments: %w", err)
	}
	return ids, nil
}

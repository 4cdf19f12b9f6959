package model

import (
	"errors"
	"time"
)

// CommentStatus governs public visibility of a comment.
type CommentStatus string

const (
	CommentStatusPending  CommentStatus = "pending"
	CommentStatusApproved CommentStatus = "approved"
	CommentStatusRejected CommentStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s CommentStatus) Valid() bool {
	switch s {
	case CommentStatusPending, CommentStatusApproved, CommentStatusRejected:
		return true
	}
	return false
}

// Comment represents a comment on a post. The author is exactly one of a
// registered user (UserID set) or a guest (GuestName + GuestEmail set).
type Comment struct {
	ID         int64         `db:"id" json:"id"`
	PostID     int64         `db:"post_id" json:"post_id"`
	ParentID   *int64        `db:"parent_id" json:"parent_id,omitempty"`
	UserID     *int64        `db:"user_id" json:"-"`
	GuestName  *string       `db:"guest_name" json:"guest_name,omitempty"`
	GuestEmail *string       `db:"guest_email" json:"-"`
	Content    string        `db:"content" json:"content"`
	Status     CommentStatus `db:"status" json:"status"`
	LikeCount  int           `db:"like_count" json:"like_count"`
	IsPinned   bool          `db:"is_pinned" json:"is_pinned"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`

	// Joined / derived fields, never persisted.
	Author         *UserSummary `json:"author,omitempty"`
	Replies        []Comment    `json:"replies,omitempty"`
	ViewerHasLiked bool         `json:"viewer_has_liked"`
}

// IsGuest reports whether the comment was authored anonymously.
func (c *Comment) IsGuest() bool {
	return c.UserID == nil
}

// CreateCommentRequest is the request body for submitting a public comment.
// Guest fields are required when the caller is not authenticated.
type CreateCommentRequest struct {
	Content    string `json:"content"`
	ParentID   *int64 `json:"parent_id,omitempty"`
	GuestName  string `json:"guest_name,omitempty"`
	GuestEmail string `json:"guest_email,omitempty"`
}

// ThreadResponse is the public comment thread for a post: root comments with
// their reply lists, plus the collapsed-view window.
type ThreadResponse struct {
	Comments    []Comment `json:"comments"`
	HiddenRoots int       `json:"hidden_roots"`
	Total       int       `json:"total"`
}

// CommentListResponse is the paginated admin listing response.
type CommentListResponse struct {
	Comments []Comment `json:"comments"`
	Total    int64     `json:"total"`
	Offset   int       `json:"offset"`
	Limit    int       `json:"limit"`
}

// AdminReplyRequest is the request body for an admin reply to a comment.
type AdminReplyRequest struct {
	Content string `json:"content"`
}

// Comment constraints
const (
	MaxCommentLength = 2000
)

// Comment errors
var (
	ErrCommentNotFound  = errors.New("comment not found")
	ErrNotCommentOwner  = errors.New("not the owner of this comment")
	ErrContentRequired  = errors.New("comment content is required")
	ErrContentTooLong   = errors.New("comment content too long")
	ErrGuestInfoMissing = errors.New("guest name and email are required")
	ErrParentMismatch   = errors.New("parent comment belongs to another post")
	ErrAuthorConflict   = errors.New("comment cannot have both a user and guest author")
	ErrUserBlocked      = errors.New("user is blocked from commenting")
	ErrInvalidStatus    = errors.New("invalid comment status")
	ErrAlreadyLiked     = errors.New("comment already liked")
	ErrNotLiked         = errors.New("comment not liked")
)

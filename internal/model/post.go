package model

import (
	"errors"
	"time"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Valid reports whether s is one of the known statuses.
func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// Post represents an article managed through the admin back-office.
type Post struct {
	ID           int64      `db:"id" json:"id"`
	UserID       int64      `db:"user_id" json:"user_id"`
	Title        string     `db:"title" json:"title"`
	Category     string     `db:"category" json:"category"`
	Type         string     `db:"type" json:"type"`
	Status       PostStatus `db:"status" json:"status"`
	IsPinned     bool       `db:"is_pinned" json:"is_pinned"`
	LikeCount    int        `db:"like_count" json:"like_count"`
	ShareCount   int        `db:"share_count" json:"share_count"`
	CommentCount int        `db:"comment_count" json:"comment_count"`
	Language     string     `db:"language" json:"language"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	// Joined field (not in posts table)
	Author *UserSummary `json:"author,omitempty"`
}

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Type     string `json:"type"`
	Language string `json:"language"`
}

// PostListResponse is the paginated admin post listing response.
type PostListResponse struct {
	Posts  []Post `json:"posts"`
	Total  int64  `json:"total"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

// Post constraints
const (
	MaxPostTitleLength = 300
)

// Post errors
var (
	ErrPostNotFound  = errors.New("post not found")
	ErrNotPostOwner  = errors.New("not the owner of this post")
	ErrTitleRequired = errors.New("post title is required")
	ErrTitleTooLong  = errors.New("post title too long")
)

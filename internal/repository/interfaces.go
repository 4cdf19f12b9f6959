package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"newsdesk/internal/gateway"
	"newsdesk/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, userID int64, req *model.UpdateProfileRequest) (*model.User, error)
	SetAvatar(ctx context.Context, userID int64, avatarURL, avatarKey string) error
	SetBlocked(ctx context.Context, userID int64, blocked bool) error
	List(ctx context.Context, spec gateway.QuerySpec) ([]model.User, int64, error)
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) (*model.Post, error)
	GetByID(ctx context.Context, postID int64) (*model.Post, error)
	Exists(ctx context.Context, postID int64) (bool, error)
	List(ctx context.Context, spec gateway.QuerySpec) ([]model.Post, int64, error)
	SetPinned(ctx context.Context, postID int64, pinned bool) error
	SetStatus(ctx context.Context, postID int64, status model.PostStatus) error
	Delete(ctx context.Context, postID int64) error
	DeleteMany(ctx context.Context, postIDs []int64) error
	// AdjustCommentCount moves the denormalized counter by delta, clamping
	// at zero. The queue worker is the only caller.
	AdjustCommentCount(ctx context.Context, postID int64, delta int) error
}

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) (*model.Comment, error)
	GetByID(ctx context.Context, commentID int64) (*model.Comment, error)
	// ListApprovedByPost returns every approved comment for a post in
	// ascending creation order, with authors joined. The thread builder
	// consumes this flat list.
	ListApprovedByPost(ctx context.Context, postID int64) ([]model.Comment, error)
	List(ctx context.Context, spec gateway.QuerySpec) ([]model.Comment, int64, error)
	UpdateStatus(ctx context.Context, commentIDs []int64, status model.CommentStatus) error
	SetPinned(ctx context.Context, commentID int64, pinned bool) error
	UpdateContent(ctx context.Context, commentID int64, content string) error
	// Delete removes a comment and its replies. It returns the post the
	// comment belonged to and how many approved rows went away, cascaded
	// replies included, so the counter worker can catch up.
	Delete(ctx context.Context, tx *sqlx.Tx, commentID int64) (postID int64, deletedCount int, err error)
	// DeleteMany removes a batch of comments plus cascaded replies and
	// returns the per-post deletion counts.
	DeleteMany(ctx context.Context, tx *sqlx.Tx, commentIDs []int64) (map[int64]int, error)
	// LikedCommentIDs returns the ids of every comment the user has liked,
	// used to warm the likes cache.
	LikedCommentIDs(ctx context.Context, userID int64) ([]int64, error)
}

type SettingsRepository interface {
	Get(ctx context.Context) (*model.SiteSettings, error)
	Update(ctx context.Context, req *model.UpdateSettingsRequest) (*model.SiteSettings, error)
	SetLogo(ctx context.Context, logoURL, logoKey string) error
}

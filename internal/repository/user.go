package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"newsdesk/internal/gateway"
	"newsdesk/internal/model"
)

var userColumns = []string{
	"id", "username", "display_name", "email", "avatar_url", "avatar_key",
	"bio", "role", "is_blocked", "created_at", "updated_at",
}

const userSelectColumns = `
	id, username, password_hashed, display_name, email, avatar_url, avatar_key,
	bio, role, is_blocked, created_at, updated_at`

type userRepository struct {
	db *sqlx.DB
	gw gateway.Gateway
}

func NewUserRepository(db *sqlx.DB, gw gateway.Gateway) UserRepository {
	return &userRepository{db: db, gw: gw}
}

// Create inserts a new user and fills in the generated fields.
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (username, password_hashed, display_name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		user.Username, user.PasswordHashed, user.DisplayName, user.Email, user.Role).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return model.ErrUsernameExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT`+userSelectColumns+` FROM users WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT`+userSelectColumns+` FROM users WHERE username = $1`, username)
	if err == sql.ErrNoRows {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return &user, nil
}

func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username)
	if err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}
	return exists, nil
}

// UpdateProfile applies the non-nil request fields and returns the updated
// row. A nil-only request is a no-op read.
func (r *userRepository) UpdateProfile(ctx context.Context, userID int64, req *model.UpdateProfileRequest) (*model.User, error) {
	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)

	addSet := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if req.Username != nil {
		addSet("username", *req.Username)
	}
	if req.DisplayName != nil {
		addSet("display_name", *req.DisplayName)
	}
	if req.Email != nil {
		addSet("email", *req.Email)
	}
	if req.Bio != nil {
		addSet("bio", *req.Bio)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, userID)
	}

	args = append(args, userID)
	query := fmt.Sprintf(`
		UPDATE users SET %s, updated_at = NOW()
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(sets, ", "), len(args), userSelectColumns)

	var user model.User
	err := r.db.GetContext(ctx, &user, query, args...)
	if err == sql.ErrNoRows {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, model.ErrUsernameExists
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &user, nil
}

// SetAvatar stores the new avatar location. The old object key is read by
// the caller beforehand if it wants to clean up storage.
func (r *userRepository) SetAvatar(ctx context.Context, userID int64, avatarURL, avatarKey string) error {
	err := r.gw.Update(ctx, "users", []int64{userID}, map[string]interface{}{
		"avatar_url": avatarURL,
		"avatar_key": avatarKey,
	})
	if err != nil {
		return fmt.Errorf("set avatar: %w", err)
	}
	return nil
}

// SetBlocked flips the comment-ban flag on a user.
func (r *userRepository) SetBlocked(ctx context.Context, userID int64, blocked bool) error {
	err := r.gw.Update(ctx, "users", []int64{userID}, map[string]interface{}{"is_blocked": blocked})
	if err != nil {
		return fmt.Errorf("set user blocked: %w", err)
	}
	return nil
}

// List runs the admin user listing through the gateway. Password hashes are
// not part of the listed column set.
func (r *userRepository) List(ctx context.Context, spec gateway.QuerySpec) ([]model.User, int64, error) {
	var users []model.User
	total, err := r.gw.Query(ctx, &users, "users", userColumns, spec)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

package service

import (
	"bytes"
	"context"
	"log"
	"mime/multipart"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"newsdesk/internal/gateway"
	"newsdesk/internal/model"
	"newsdesk/internal/repository"
)

// UserService handles accounts: registration, login, profile editing and
// the admin-side block flag.
type UserService struct {
	repo repository.UserRepository
	gw   gateway.Gateway
}

// NewUserService wires the user repository and the gateway carrying the
// upload surface.
func NewUserService(repo repository.UserRepository, gw gateway.Gateway) *UserService {
	return &UserService{repo: repo, gw: gw}
}

// Register creates a new user account.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	if strings.TrimSpace(req.Username) == "" {
		return nil, model.ErrInvalidCredentials
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, model.ErrInvalidCredentials
	}

	exists, err := s.repo.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, model.ErrUsernameExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:       req.Username,
		PasswordHashed: string(hashedPassword),
		Role:           model.RoleUser,
	}
	if req.DisplayName != "" {
		user.DisplayName = &req.DisplayName
	}
	if req.Email != "" {
		user.Email = &req.Email
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Printf("[UserService] Registered user %d (%s)", user.ID, user.Username)
	return user, nil
}

// Login authenticates a user with username and password.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	user, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		// Don't reveal whether the username exists.
		return nil, model.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(req.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	return user, nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateProfile applies the caller's profile edits.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, req *model.UpdateProfileRequest) (*model.User, error) {
	if req.Username != nil && strings.TrimSpace(*req.Username) == "" {
		return nil, model.ErrInvalidCredentials
	}
	return s.repo.UpdateProfile(ctx, userID, req)
}

// UploadAvatar stores a new avatar for the caller and records its location.
// The image is normalized to 200x200 JPEG and the key is stable per user, so
// a re-upload overwrites the old object in place. The store write goes
// through the gateway, which bounds it with the upload timeout.
func (s *UserService) UploadAvatar(ctx context.Context, userID int64, file multipart.File, header *multipart.FileHeader) (*model.UploadResult, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	data, _, err := readAndValidateImage(file, header, model.MaxUploadSizeBytes)
	if err != nil {
		return nil, err
	}
	jpegBytes, err := resizeToJPEG(data, model.AvatarWidth, model.AvatarHeight, 85)
	if err != nil {
		return nil, err
	}

	name := user.Username + "-avatar" + model.ImageExt
	result, err := s.gw.UploadFile(ctx, bytes.NewReader(jpegBytes), model.AvatarFolder, name, model.ContentTypeJPEG)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetAvatar(ctx, userID, result.URL, result.Key); err != nil {
		return nil, err
	}

	log.Printf("[UserService] User %d updated avatar", userID)
	return &result, nil
}

// SetBlocked flips the comment-ban flag on a user. Blocked users can still
// log in; they just cannot comment.
func (s *UserService) SetBlocked(ctx context.Context, userID int64, blocked bool) error {
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.SetBlocked(ctx, userID, blocked); err != nil {
		return err
	}
	log.Printf("[UserService] User %d blocked=%v", userID, blocked)
	return nil
}

// List runs the admin user listing.
func (s *UserService) List(ctx context.Context, spec gateway.QuerySpec) ([]model.User, int64, error) {
	return s.repo.List(ctx, spec)
}

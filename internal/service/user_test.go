package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"newsdesk/internal/gateway"
	"newsdesk/internal/model"
)

// =============================================================================
// MOCK REPOSITORY
// =============================================================================
//
// Services depend on repository interfaces, so tests swap in mocks with
// per-test behavior instead of hitting a real database.

type mockUserRepository struct {
	createFn           func(ctx context.Context, user *model.User) error
	getByIDFn          func(ctx context.Context, id int64) (*model.User, error)
	getByUsernameFn    func(ctx context.Context, username string) (*model.User, error)
	existsByUsernameFn func(ctx context.Context, username string) (bool, error)
	updateProfileFn    func(ctx context.Context, userID int64, req *model.UpdateProfileRequest) (*model.User, error)
	setBlockedFn       func(ctx context.Context, userID int64, blocked bool) error

	createCalls     []*model.User
	setBlockedCalls []int64
	avatarURLs      []string
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	m.createCalls = append(m.createCalls, user)
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if m.existsByUsernameFn != nil {
		return m.existsByUsernameFn(ctx, username)
	}
	return false, nil
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, userID int64, req *model.UpdateProfileRequest) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, req)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) SetAvatar(ctx context.Context, userID int64, avatarURL, avatarKey string) error {
	m.avatarURLs = append(m.avatarURLs, avatarURL)
	return nil
}

func (m *mockUserRepository) SetBlocked(ctx context.Context, userID int64, blocked bool) error {
	m.setBlockedCalls = append(m.setBlockedCalls, userID)
	if m.setBlockedFn != nil {
		return m.setBlockedFn(ctx, userID, blocked)
	}
	return nil
}

func (m *mockUserRepository) List(ctx context.Context, spec gateway.QuerySpec) ([]model.User, int64, error) {
	return nil, 0, nil
}

// =============================================================================
// REGISTER TESTS
// =============================================================================

func TestUserService_Register_Success(t *testing.T) {
	mockRepo := &mockUserRepository{
		createFn: func(ctx context.Context, user *model.User) error {
			user.ID = 1
			user.CreatedAt = time.Now()
			user.UpdatedAt = time.Now()
			return nil
		},
	}
	svc := NewUserService(mockRepo, nil)

	req := &model.RegisterRequest{
		Username:    "testuser",
		Password:    "securepassword123",
		DisplayName: "Test User",
	}

	user, err := svc.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if user.Username != req.Username {
		t.Errorf("username = %q, want %q", user.Username, req.Username)
	}
	if user.DisplayName == nil || *user.DisplayName != req.DisplayName {
		t.Errorf("display_name = %v, want %q", user.DisplayName, req.DisplayName)
	}
	if user.Role != model.RoleUser {
		t.Errorf("role = %q, want %q", user.Role, model.RoleUser)
	}

	// Password must be stored hashed.
	if user.PasswordHashed == req.Password {
		t.Error("password should be hashed, not stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(req.Password)); err != nil {
		t.Error("stored hash does not verify against the original password")
	}
}

func TestUserService_Register_UsernameTaken(t *testing.T) {
	mockRepo := &mockUserRepository{
		existsByUsernameFn: func(ctx context.Context, username string) (bool, error) {
			return true, nil
		},
	}
	svc := NewUserService(mockRepo, nil)

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Username: "taken",
		Password: "password123",
	})
	if !errors.Is(err, model.ErrUsernameExists) {
		t.Errorf("err = %v, want ErrUsernameExists", err)
	}
	if len(mockRepo.createCalls) != 0 {
		t.Error("Create should not be called when the username is taken")
	}
}

func TestUserService_Register_EmptyFields(t *testing.T) {
	svc := NewUserService(&mockUserRepository{}, nil)

	cases := []model.RegisterRequest{
		{Username: "", Password: "password123"},
		{Username: "someone", Password: ""},
		{Username: "   ", Password: "password123"},
	}
	for _, req := range cases {
		if _, err := svc.Register(context.Background(), &req); err == nil {
			t.Errorf("Register(%q, %q) should fail", req.Username, req.Password)
		}
	}
}

// =============================================================================
// LOGIN TESTS
// =============================================================================

func TestUserService_Login_Success(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	mockRepo := &mockUserRepository{
		getByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return &model.User{ID: 1, Username: username, PasswordHashed: string(hash)}, nil
		},
	}
	svc := NewUserService(mockRepo, nil)

	user, err := svc.Login(context.Background(), &model.LoginRequest{
		Username: "testuser",
		Password: "correct-password",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if user.ID != 1 {
		t.Errorf("user id = %d, want 1", user.ID)
	}
}

func TestUserService_Login_WrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	mockRepo := &mockUserRepository{
		getByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return &model.User{ID: 1, Username: username, PasswordHashed: string(hash)}, nil
		},
	}
	svc := NewUserService(mockRepo, nil)

	_, err := svc.Login(context.Background(), &model.LoginRequest{
		Username: "testuser",
		Password: "wrong-password",
	})
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestUserService_Login_UnknownUserDoesNotLeak(t *testing.T) {
	// An unknown username must produce the same error as a wrong password.
	svc := NewUserService(&mockUserRepository{}, nil)

	_, err := svc.Login(context.Background(), &model.LoginRequest{
		Username: "ghost",
		Password: "whatever",
	})
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

// =============================================================================
// BLOCK TESTS
// =============================================================================

func TestUserService_SetBlocked(t *testing.T) {
	mockRepo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.User, error) {
			return &model.User{ID: id, Username: "troll"}, nil
		},
	}
	svc := NewUserService(mockRepo, nil)

	if err := svc.SetBlocked(context.Background(), 5, true); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(mockRepo.setBlockedCalls) != 1 || mockRepo.setBlockedCalls[0] != 5 {
		t.Errorf("setBlockedCalls = %v, want [5]", mockRepo.setBlockedCalls)
	}
}

func TestUserService_SetBlocked_UnknownUser(t *testing.T) {
	svc := NewUserService(&mockUserRepository{}, nil)

	err := svc.SetBlocked(context.Background(), 404, true)
	if !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

// =============================================================================
// AVATAR UPLOAD TESTS
// =============================================================================

type memoryFile struct{ *bytes.Reader }

func (memoryFile) Close() error { return nil }

func pngUpload(t *testing.T) (multipart.File, *multipart.FileHeader) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	header := &multipart.FileHeader{
		Filename: "avatar.png",
		Size:     int64(buf.Len()),
		Header:   textproto.MIMEHeader{"Content-Type": []string{"image/png"}},
	}
	return memoryFile{bytes.NewReader(buf.Bytes())}, header
}

func TestUserService_UploadAvatar_StoresThroughUploadSurface(t *testing.T) {
	mockRepo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.User, error) {
			return &model.User{ID: id, Username: "ana"}, nil
		},
	}
	gw := &mockGateway{
		uploadFileFn: func(ctx context.Context, r io.Reader, folder, name, contentType string) (model.UploadResult, error) {
			key := folder + "/" + name
			return model.UploadResult{URL: "https://cdn.example/" + key + "?v=1", Key: key}, nil
		},
	}
	svc := NewUserService(mockRepo, gw)

	file, header := pngUpload(t)
	result, err := svc.UploadAvatar(context.Background(), 3, file, header)
	if err != nil {
		t.Fatalf("upload avatar: %v", err)
	}

	if len(gw.uploadKeys) != 1 || gw.uploadKeys[0] != "avatars/ana-avatar.jpg" {
		t.Errorf("upload keys = %v, want [avatars/ana-avatar.jpg]", gw.uploadKeys)
	}
	if len(mockRepo.avatarURLs) != 1 || mockRepo.avatarURLs[0] != result.URL {
		t.Errorf("recorded avatar URLs = %v, want the uploaded URL", mockRepo.avatarURLs)
	}
}

func TestUserService_UploadAvatar_SurfacesTimeout(t *testing.T) {
	mockRepo := &mockUserRepository{
		getByIDFn: func(ctx context.Context, id int64) (*model.User, error) {
			return &model.User{ID: id, Username: "ana"}, nil
		},
	}
	gw := &mockGateway{
		uploadFileFn: func(ctx context.Context, r io.Reader, folder, name, contentType string) (model.UploadResult, error) {
			return model.UploadResult{}, model.ErrUploadTimeout
		},
	}
	svc := NewUserService(mockRepo, gw)

	file, header := pngUpload(t)
	_, err := svc.UploadAvatar(context.Background(), 3, file, header)
	if !errors.Is(err, model.ErrUploadTimeout) {
		t.Fatalf("err = %v, want ErrUploadTimeout", err)
	}
	if len(mockRepo.avatarURLs) != 0 {
		t.Error("a failed upload must not record an avatar URL")
	}
}

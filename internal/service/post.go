package service

import (
	"context"
	"log"
	"strings"

	"newsdesk/internal/model"
	"newsdesk/internal/repository"
)

// PostService handles post CRUD outside the listing screens.
type PostService struct {
	postRepo repository.PostRepository
}

func NewPostService(postRepo repository.PostRepository) *PostService {
	return &PostService{postRepo: postRepo}
}

// Create adds a new draft post owned by the calling admin.
func (s *PostService) Create(ctx context.Context, userID int64, req model.CreatePostRequest) (*model.Post, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, model.ErrTitleRequired
	}
	if len(title) > model.MaxPostTitleLength {
		return nil, model.ErrTitleTooLong
	}

	post := &model.Post{
		UserID:   userID,
		Title:    title,
		Category: strings.TrimSpace(req.Category),
		Type:     strings.TrimSpace(req.Type),
		Status:   model.PostStatusDraft,
		Language: req.Language,
	}
	created, err := s.postRepo.Create(ctx, post)
	if err != nil {
		return nil, err
	}

	log.Printf("[PostService] User %d created post %d", userID, created.ID)
	return created, nil
}

// GetByID returns one post with its author joined.
func (s *PostService) GetByID(ctx context.Context, postID int64) (*model.Post, error) {
	return s.postRepo.GetByID(ctx, postID)
}

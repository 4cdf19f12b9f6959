package service

import (
	"bytes"
	"context"
	"log"
	"mime/multipart"
	"strings"

	"github.com/google/uuid"

	"newsdesk/internal/gateway"
	"newsdesk/internal/model"
	"newsdesk/internal/repository"
)

// SettingsService manages the singleton site configuration.
type SettingsService struct {
	repo  repository.SettingsRepository
	gw    gateway.Gateway
	media *MediaService
}

// NewSettingsService wires the settings repository, the gateway carrying the
// upload surface, and the optional media service used to clean up replaced
// logo objects.
func NewSettingsService(repo repository.SettingsRepository, gw gateway.Gateway, media *MediaService) *SettingsService {
	return &SettingsService{repo: repo, gw: gw, media: media}
}

// Get returns the current site settings.
func (s *SettingsService) Get(ctx context.Context) (*model.SiteSettings, error) {
	return s.repo.Get(ctx)
}

// Update applies the provided settings fields. The site title cannot be
// blanked out.
func (s *SettingsService) Update(ctx context.Context, req *model.UpdateSettingsRequest) (*model.SiteSettings, error) {
	if req.SiteTitle != nil && strings.TrimSpace(*req.SiteTitle) == "" {
		return nil, model.ErrSiteTitleRequired
	}

	settings, err := s.repo.Update(ctx, req)
	if err != nil {
		return nil, err
	}

	log.Printf("[SettingsService] Site settings updated")
	return settings, nil
}

// UploadLogo stores a new site logo and records its location. The store
// write goes through the gateway, which bounds it with the upload timeout.
// The previous logo object is removed best-effort once the new one is live.
func (s *SettingsService) UploadLogo(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*model.UploadResult, error) {
	current, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}

	data, contentType, err := readAndValidateImage(file, header, model.MaxUploadSizeBytes)
	if err != nil {
		return nil, err
	}

	name := "logo-" + uuid.NewString() + extForContentType(contentType)
	result, err := s.gw.UploadFile(ctx, bytes.NewReader(data), model.LogoFolder, name, contentType)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetLogo(ctx, result.URL, result.Key); err != nil {
		return nil, err
	}

	if current.LogoKey != nil && *current.LogoKey != result.Key && s.media != nil {
		if err := s.media.DeleteObject(ctx, *current.LogoKey); err != nil {
			log.Printf("[SettingsService] Failed to delete old logo %s: %v", *current.LogoKey, err)
		}
	}

	return &result, nil
}

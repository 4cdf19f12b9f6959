package model

import (
	"errors"
	"time"
)

// SiteSettings is the singleton site configuration row edited through
// the admin back-office.
type SiteSettings struct {
	ID              int64     `db:"id" json:"-"`
	SiteTitle       string    `db:"site_title" json:"site_title"`
	Tagline         *string   `db:"tagline" json:"tagline"`
	LogoURL         *string   `db:"logo_url" json:"logo_url"`
	LogoKey         *string   `db:"logo_key" json:"-"`
	Language        string    `db:"language" json:"language"`
	CommentsEnabled bool      `db:"comments_enabled" json:"comments_enabled"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// UpdateSettingsRequest carries the editable settings fields. Nil pointers
// leave the stored value untouched.
type UpdateSettingsRequest struct {
	SiteTitle       *string `json:"site_title,omitempty"`
	Tagline         *string `json:"tagline,omitempty"`
	Language        *string `json:"language,omitempty"`
	CommentsEnabled *bool   `json:"comments_enabled,omitempty"`
}

var (
	ErrSettingsNotFound   = errors.New("site settings not found")
	ErrSiteTitleRequired  = errors.New("site title is required")
	ErrCommentsDisabled   = errors.New("comments are disabled")
	ErrUnsupportedSetting = errors.New("unsupported setting")
)

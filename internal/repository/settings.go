package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"newsdesk/internal/model"
)

const settingsSelectColumns = `
	id, site_title, tagline, logo_url, logo_key, language, comments_enabled, updated_at`

type settingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// Get reads the singleton settings row.
func (r *settingsRepository) Get(ctx context.Context) (*model.SiteSettings, error) {
	var settings model.SiteSettings
	err := r.db.GetContext(ctx, &settings, `SELECT`+settingsSelectColumns+` FROM site_settings LIMIT 1`)
	if err == sql.ErrNoRows {
		return nil, model.ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &settings, nil
}

// Update applies the non-nil request fields and returns the updated row.
func (r *settingsRepository) Update(ctx context.Context, req *model.UpdateSettingsRequest) (*model.SiteSettings, error) {
	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	addSet := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if req.SiteTitle != nil {
		addSet("site_title", *req.SiteTitle)
	}
	if req.Tagline != nil {
		addSet("tagline", *req.Tagline)
	}
	if req.Language != nil {
		addSet("language", *req.Language)
	}
	if req.CommentsEnabled != nil {
		addSet("comments_enabled", *req.CommentsEnabled)
	}
	if len(sets) == 0 {
		return r.Get(ctx)
	}

	query := fmt.Sprintf(`
		UPDATE site_settings SET %s, updated_at = NOW()
		WHERE id = (SELECT id FROM site_settings LIMIT 1)
		RETURNING %s
	`, strings.Join(sets, ", "), settingsSelectColumns)

	var settings model.SiteSettings
	err := r.db.GetContext(ctx, &settings, query, args...)
	if err == sql.ErrNoRows {
		return nil, model.ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	return &settings, nil
}

// SetLogo stores the new site logo location.
func (r *settingsRepository) SetLogo(ctx context.Context, logoURL, logoKey string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE site_settings SET logo_url = $1, logo_key = $2, updated_at = NOW()
		WHERE id = (SELECT id FROM site_settings LIMIT 1)
	`, logoURL, logoKey)
	if err != nil {
		return fmt.Errorf("set logo: %w", err)
	}
	return nil
}

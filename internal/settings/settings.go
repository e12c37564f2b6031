package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SiteSettings is the single-row site configuration rendered on every public
// page.
type SiteSettings struct {
	SiteTitle    string            `json:"site_title"`
	AboutText    string            `json:"about_text"`
	ContactEmail string            `json:"contact_email"`
	SocialLinks  map[string]string `json:"social_links"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

type SettingsInput struct {
	SiteTitle    string            `json:"site_title"`
	AboutText    string            `json:"about_text"`
	ContactEmail string            `json:"contact_email"`
	SocialLinks  map[string]string `json:"social_links"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context) (SiteSettings, error) {
	var s SiteSettings
	var socialLinks []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT site_title, about_text, contact_email, social_links, updated_at
		FROM site_settings
		WHERE id = 1
	`).Scan(&s.SiteTitle, &s.AboutText, &s.ContactEmail, &socialLinks, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return SiteSettings{SocialLinks: map[string]string{}}, nil
		}
		return SiteSettings{}, fmt.Errorf("query site settings: %w", err)
	}

	s.SocialLinks = map[string]string{}
	if len(socialLinks) > 0 {
		if err := json.Unmarshal(socialLinks, &s.SocialLinks); err != nil {
			return SiteSettings{}, fmt.Errorf("decode social links: %w", err)
		}
	}

	return s, nil
}

func (r *Repository) Update(ctx context.Context, input SettingsInput) (SiteSettings, error) {
	if input.SocialLinks == nil {
		input.SocialLinks = map[string]string{}
	}
	socialLinks, err := json.Marshal(input.SocialLinks)
	if err != nil {
		return SiteSettings{}, fmt.Errorf("encode social links: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO site_settings (id, site_title, about_text, contact_email, social_links, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET
			site_title = EXCLUDED.site_title,
			about_text = EXCLUDED.about_text,
			contact_email = EXCLUDED.contact_email,
			social_links = EXCLUDED.social_links,
			updated_at = EXCLUDED.updated_at
	`, input.SiteTitle, input.AboutText, input.ContactEmail, socialLinks, now)
	if err != nil {
		return SiteSettings{}, fmt.Errorf("upsert site settings: %w", err)
	}

	return SiteSettings{
		SiteTitle:    input.SiteTitle,
		AboutText:    input.AboutText,
		ContactEmail: input.ContactEmail,
		SocialLinks:  input.SocialLinks,
		UpdatedAt:    now,
	}, nil
}

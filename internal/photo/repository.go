package photo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context, categoryID string) ([]Photo, error) {
	query := `
		SELECT id, title, description, category_id, image_url, featured, display_order, created_at, updated_at
		FROM photos
		ORDER BY display_order ASC, created_at DESC
	`
	args := []any{}
	if categoryID != "" {
		query = `
			SELECT id, title, description, category_id, image_url, featured, display_order, created_at, updated_at
			FROM photos
			WHERE category_id = $1
			ORDER BY display_order ASC, created_at DESC
		`
		args = append(args, categoryID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	photos := make([]Photo, 0)
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.CategoryID, &p.ImageURL, &p.Featured, &p.DisplayOrder, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}

	return photos, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Photo, error) {
	var p Photo
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, description, category_id, image_url, featured, display_order, created_at, updated_at
		FROM photos
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Title, &p.Description, &p.CategoryID, &p.ImageURL, &p.Featured, &p.DisplayOrder, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Photo{}, err
		}
		return Photo{}, fmt.Errorf("query photo: %w", err)
	}

	return p, nil
}

func (r *Repository) Create(ctx context.Context, input PhotoInput) (Photo, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Photo{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	p := Photo{
		ID:           id.String(),
		Title:        input.Title,
		Description:  input.Description,
		CategoryID:   input.CategoryID,
		ImageURL:     input.ImageURL,
		Featured:     input.Featured,
		DisplayOrder: input.DisplayOrder,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO photos (id, title, description, category_id, image_url, featured, display_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.Title, p.Description, p.CategoryID, p.ImageURL, p.Featured, p.DisplayOrder, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Photo{}, fmt.Errorf("insert photo: %w", err)
	}

	return p, nil
}

func (r *Repository) Update(ctx context.Context, id string, input PhotoInput) (Photo, error) {
	var p Photo
	p.UpdatedAt = time.Now().UTC()

	err := r.db.QueryRowContext(ctx, `
		UPDATE photos
		SET title = $2, description = $3, category_id = $4, image_url = $5, featured = $6, display_order = $7, updated_at = $8
		WHERE id = $1
		RETURNING id, title, description, category_id, image_url, featured, display_order, created_at, updated_at
	`, id, input.Title, input.Description, input.CategoryID, input.ImageURL, input.Featured, input.DisplayOrder, p.UpdatedAt).
		Scan(&p.ID, &p.Title, &p.Description, &p.CategoryID, &p.ImageURL, &p.Featured, &p.DisplayOrder, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Photo{}, err
		}
		return Photo{}, fmt.Errorf("update photo: %w", err)
	}

	return p, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

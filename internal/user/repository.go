package user

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AdminUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]AdminUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, role, created_at, updated_at
		FROM users
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]AdminUser, 0)
	for rows.Next() {
		var u AdminUser
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func (r *Repository) Create(ctx context.Context, input UserInput) (AdminUser, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return AdminUser{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return AdminUser{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := AdminUser{
		ID:        id.String(),
		Username:  input.Username,
		Role:      input.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Username, u.Role, string(hash), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return AdminUser{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

func (r *Repository) Update(ctx context.Context, id string, input UserInput) (AdminUser, error) {
	var u AdminUser
	u.UpdatedAt = time.Now().UTC()

	if input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return AdminUser{}, fmt.Errorf("hash password: %w", err)
		}
		err = r.db.QueryRowContext(ctx, `
			UPDATE users
			SET username = $2, role = $3, password_hash = $4, updated_at = $5
			WHERE id = $1
			RETURNING id, username, role, created_at, updated_at
		`, id, input.Username, input.Role, string(hash), u.UpdatedAt).
			Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			if err == sql.ErrNoRows {
				return AdminUser{}, err
			}
			return AdminUser{}, fmt.Errorf("update user: %w", err)
		}
		return u, nil
	}

	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET username = $2, role = $3, updated_at = $4
		WHERE id = $1
		RETURNING id, username, role, created_at, updated_at
	`, id, input.Username, input.Role, u.UpdatedAt).
		Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return AdminUser{}, err
		}
		return AdminUser{}, fmt.Errorf("update user: %w", err)
	}

	return u, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
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

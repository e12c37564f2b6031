package photo

import "time"

type Photo struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	CategoryID   *string   `json:"category_id,omitempty"`
	ImageURL     string    `json:"image_url"`
	Featured     bool      `json:"featured"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type PhotoInput struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	CategoryID   *string `json:"category_id"`
	ImageURL     string  `json:"image_url"`
	Featured     bool    `json:"featured"`
	DisplayOrder int     `json:"display_order"`
}

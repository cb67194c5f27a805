package models

import "time"

// Prize is what a winning card takes home for one tier.
type Prize struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageKey    *string   `json:"-"`
	ImageURL    *string   `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

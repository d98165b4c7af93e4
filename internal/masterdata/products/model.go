package products

import "time"

// Category groups traded commodities (grains, legumes, oilseeds).
type Category struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Product is a traded commodity. Weights are kilograms throughout.
type Product struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	Title         string    `json:"title"`
	CategoryID    *int64    `json:"category_id,omitempty"`
	CategoryTitle *string   `json:"category_title,omitempty"`
	Unit          string    `json:"unit"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

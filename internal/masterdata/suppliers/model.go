package suppliers

import "time"

// Supplier is a selling party on purchase proformas and warehouse receipts.
type Supplier struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	NationalID *string   `json:"national_id,omitempty"`
	Mobile     *string   `json:"mobile,omitempty"`
	Address    *string   `json:"address,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

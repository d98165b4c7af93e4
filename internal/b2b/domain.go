package b2b

import (
	"errors"
	"time"
)

// OfferStatus tracks the lifecycle of a B2B offer.
type OfferStatus string

const (
	OfferStatusOpen   OfferStatus = "open"
	OfferStatusClosed OfferStatus = "closed"
)

var (
	ErrNotFound     = errors.New("b2b offer not found")
	ErrOfferClosed  = errors.New("offer is closed")
	ErrOverAllocate = errors.New("distribution shares exceed offer weight")
	ErrInvalidShare = errors.New("share weight must be positive")
)

// Offer lists a cottage-backed lot for distribution across buyer companies.
type Offer struct {
	ID        int64       `json:"id"`
	ReceiptID int64       `json:"receipt_id"`
	ProductID int64       `json:"product_id"`
	Weight    float64     `json:"weight"`
	UnitPrice float64     `json:"unit_price"`
	Status    OfferStatus `json:"status"`
	Allocated float64     `json:"allocated"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Distribution allocates a weight share of an offer to one buyer company.
type Distribution struct {
	ID         int64     `json:"id"`
	OfferID    int64     `json:"offer_id"`
	CustomerID int64     `json:"customer_id"`
	Weight     float64   `json:"weight"`
	CreatedAt  time.Time `json:"created_at"`
}

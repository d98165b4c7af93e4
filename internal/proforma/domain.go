package proforma

import (
	"errors"
	"time"
)

// Kind separates supplier-facing purchase proformas from customer-facing
// sales proformas.
type Kind string

const (
	KindPurchase Kind = "purchase"
	KindSales    Kind = "sales"
)

var (
	ErrNotFound      = errors.New("proforma not found")
	ErrLineNotFound  = errors.New("proforma line not found")
	ErrInvalidWeight = errors.New("line weight must be positive")
	ErrInvalidAmount = errors.New("amount must not be negative")
)

// Proforma is an invoice-like document. Header totals are rollups of the live
// line set, rewritten inside every line write transaction.
type Proforma struct {
	ID          int64     `json:"id"`
	Kind        Kind      `json:"kind"`
	Serial      string    `json:"serial"`
	PartyID     int64     `json:"party_id"`
	Date        time.Time `json:"date"`
	TotalWeight float64   `json:"total_weight"`
	TotalAmount float64   `json:"total_amount"`
	Paid        float64   `json:"paid"`
	Balance     float64   `json:"balance"`
	Lines       []Line    `json:"lines,omitempty"`
	Payments    []Payment `json:"payments,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Line is one product position. Amount = weight × unit price, computed on
// write.
type Line struct {
	ID         int64   `json:"id"`
	ProformaID int64   `json:"proforma_id"`
	ProductID  int64   `json:"product_id"`
	Weight     float64 `json:"weight"`
	UnitPrice  float64 `json:"unit_price"`
	Amount     float64 `json:"amount"`
}

// Payment settles part of a proforma. Balance = total − Σ payments.
type Payment struct {
	ID         int64     `json:"id"`
	ProformaID int64     `json:"proforma_id"`
	Amount     float64   `json:"amount"`
	PaidAt     time.Time `json:"paid_at"`
	Note       string    `json:"note,omitempty"`
}

// ListFilter narrows proforma listings.
type ListFilter struct {
	Kind    Kind
	PartyID int64
	From    time.Time
	To      time.Time
	Limit   int
	Offset  int
}

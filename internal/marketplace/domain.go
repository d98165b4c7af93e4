package marketplace

import (
	"errors"
	"time"
)

// OfferType says how an offer is paid for.
type OfferType string

const (
	OfferTypeCash      OfferType = "cash"
	OfferTypeAgreement OfferType = "agreement"
)

// OfferStatus tracks a ProductOffer's lifecycle.
type OfferStatus string

const (
	OfferStatusDraft     OfferStatus = "draft"
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusActive    OfferStatus = "active"
	OfferStatusSold      OfferStatus = "sold"
	OfferStatusExpired   OfferStatus = "expired"
	OfferStatusCancelled OfferStatus = "cancelled"
)

// PurchaseType says how one buyer pays for their portion.
type PurchaseType string

const (
	PurchaseTypeCash      PurchaseType = "cash"
	PurchaseTypeAgreement PurchaseType = "agreement"
	PurchaseTypeMixed     PurchaseType = "mixed"
)

// AddressStatus tracks a delivery address through dispatch.
type AddressStatus string

const (
	AddressStatusPending         AddressStatus = "pending"
	AddressStatusSentToDelivery  AddressStatus = "sent_to_delivery"
	AddressStatusDeliveryCreated AddressStatus = "delivery_created"
	AddressStatusCompleted       AddressStatus = "completed"
)

var (
	ErrOfferNotFound    = errors.New("product offer not found")
	ErrSaleNotFound     = errors.New("marketplace sale not found")
	ErrPurchaseNotFound = errors.New("marketplace purchase not found")
	ErrAddressNotFound  = errors.New("delivery address not found")
	ErrOfferNotActive   = errors.New("offer is not active")
	ErrOfferLocked      = errors.New("offer is referenced by a sale and cannot be edited")
	ErrCottageMismatch  = errors.New("purchase cottage number does not match sale")
	ErrOversell         = errors.New("purchase weight exceeds remaining offer weight")
	ErrDuplicateNumber  = errors.New("purchase number already exists")
	ErrInvalidStatus    = errors.New("invalid status transition")
)

// ProductOffer is a cottage-backed lot listed for marketplace sale.
// TotalPrice is derived (weight × unit price) and rewritten on every save.
type ProductOffer struct {
	ID            int64       `json:"id"`
	OfferNumber   string      `json:"offer_number"`
	ReceiptID     int64       `json:"receipt_id"`
	CottageNumber string      `json:"cottage_number"`
	ProductID     int64       `json:"product_id"`
	ProductTitle  string      `json:"product_title"`
	Weight        float64     `json:"weight"`
	UnitPrice     float64     `json:"unit_price"`
	TotalPrice    float64     `json:"total_price"`
	Type          OfferType   `json:"type"`
	Status        OfferStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Sale is the live tracking record for one offer's buyer allocations. Offer
// fields are denormalized copies captured at creation. The four weight fields
// are pure functions of the live purchase set.
type Sale struct {
	ID                       int64     `json:"id"`
	OfferID                  int64     `json:"offer_id"`
	CottageNumber            string    `json:"cottage_number"`
	ProductTitle             string    `json:"product_title"`
	UnitPrice                float64   `json:"unit_price"`
	TotalOfferWeight         float64   `json:"total_offer_weight"`
	SoldBeforeTransport      float64   `json:"sold_before_transport"`
	RemainingBeforeTransport float64   `json:"remaining_before_transport"`
	SoldAfterTransport       float64   `json:"sold_after_transport"`
	RemainingAfterTransport  float64   `json:"remaining_after_transport"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// Installment is one agreement payment step on a purchase.
type Installment struct {
	Period string  `json:"period"`
	Amount float64 `json:"amount"`
}

// Purchase is one buyer's weight allocation against a sale.
type Purchase struct {
	ID             int64         `json:"id"`
	SaleID         int64         `json:"sale_id"`
	PurchaseNumber string        `json:"purchase_number"`
	CottageNumber  string        `json:"cottage_number"`
	Weight         float64       `json:"weight"`
	PaidAmount     float64       `json:"paid_amount"`
	UnitPrice      float64       `json:"unit_price"`
	BuyerName      string        `json:"buyer_name"`
	NationalID     string        `json:"national_id"`
	Mobile         string        `json:"mobile"`
	AccountNumber  string        `json:"account_number"`
	Address        string        `json:"address"`
	Type           PurchaseType  `json:"type"`
	PurchaseDate   time.Time     `json:"purchase_date"`
	Installments   []Installment `json:"installments,omitempty"`
	CustomerID     *int64        `json:"customer_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// PurchaseDetail is the 1:1 sidecar owning the delivery addresses.
type PurchaseDetail struct {
	ID                   int64  `json:"id"`
	PurchaseID           int64  `json:"purchase_id"`
	AgreementDescription string `json:"agreement_description,omitempty"`
}

// VehicleTypes is the multi-valued truck set. Zero or several may be true.
type VehicleTypes struct {
	Single  bool `json:"single"`
	Double  bool `json:"double"`
	Trailer bool `json:"trailer"`
}

// DeliveryAddress is one shipment destination for (a portion of) a purchase.
type DeliveryAddress struct {
	ID                  int64         `json:"id"`
	DetailID            int64         `json:"detail_id"`
	AssignmentNumber    string        `json:"assignment_number"`
	BuyerName           string        `json:"buyer_name"`
	BuyerNationalID     string        `json:"buyer_national_id"`
	RecipientName       string        `json:"recipient_name"`
	RecipientNationalID string        `json:"recipient_national_id"`
	RecipientMobile     string        `json:"recipient_mobile"`
	Address             string        `json:"address"`
	PostalCode          string        `json:"postal_code"`
	Vehicles            VehicleTypes  `json:"vehicles"`
	OrderWeight         float64       `json:"order_weight"`
	Status              AddressStatus `json:"status"`
	OrderNumber         string        `json:"order_number,omitempty"`
	Installments        []Installment `json:"installments,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
}

// SaleSummary is the cached weight snapshot served on hot read paths.
type SaleSummary struct {
	SaleID                   int64   `json:"sale_id"`
	CottageNumber            string  `json:"cottage_number"`
	ProductTitle             string  `json:"product_title"`
	TotalOfferWeight         float64 `json:"total_offer_weight"`
	SoldBeforeTransport      float64 `json:"sold_before_transport"`
	RemainingBeforeTransport float64 `json:"remaining_before_transport"`
	PurchaseCount            int     `json:"purchase_count"`
}

// validStatusTransitions mirrors the offer lifecycle. Terminal states have no
// exits.
var validStatusTransitions = map[OfferStatus][]OfferStatus{
	OfferStatusDraft:   {OfferStatusPending, OfferStatusCancelled},
	OfferStatusPending: {OfferStatusActive, OfferStatusCancelled},
	OfferStatusActive:  {OfferStatusSold, OfferStatusExpired, OfferStatusCancelled},
}

// CanTransition reports whether an offer may move from one status to another.
func CanTransition(from, to OfferStatus) bool {
	for _, next := range validStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// addressStatusTransitions covers the post-dispatch leg of an address's life.
// Dispatch itself moves pending addresses to delivery_created.
var addressStatusTransitions = map[AddressStatus][]AddressStatus{
	AddressStatusDeliveryCreated: {AddressStatusSentToDelivery},
	AddressStatusSentToDelivery:  {AddressStatusCompleted},
}

// CanTransitionAddress reports whether a delivery address may move from one
// status to another.
func CanTransitionAddress(from, to AddressStatus) bool {
	for _, next := range addressStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

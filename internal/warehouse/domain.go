package warehouse

import (
	"errors"
	"time"
)

// ReceiptType classifies how goods entered the warehouse.
type ReceiptType string

const (
	ReceiptTypeCottage  ReceiptType = "cottage"
	ReceiptTypeDomestic ReceiptType = "domestic"
	ReceiptTypeTransfer ReceiptType = "transfer"
)

var (
	ErrReceiptNotFound  = errors.New("warehouse receipt not found")
	ErrOrderNotFound    = errors.New("delivery order not found")
	ErrInvalidWeight    = errors.New("weight must be positive")
	ErrDuplicateReceipt = errors.New("receipt number already registered")
)

// Receipt records goods received into a warehouse. Cottage receipts carry the
// customs cottage number and back marketplace offers.
type Receipt struct {
	ID            int64       `json:"id"`
	Number        string      `json:"number"`
	Type          ReceiptType `json:"type"`
	CottageNumber *string     `json:"cottage_number,omitempty"`
	WarehouseID   int64       `json:"warehouse_id"`
	ProductID     int64       `json:"product_id"`
	SupplierID    *int64      `json:"supplier_id,omitempty"`
	InitialWeight float64     `json:"initial_weight"`
	ReceiptDate   time.Time   `json:"receipt_date"`
	CreatedAt     time.Time   `json:"created_at"`
}

// DeliveryOrder authorizes goods to leave a warehouse. Numbers are scoped per
// year-month: DO-YYMM-NNNN.
type DeliveryOrder struct {
	ID              int64                   `json:"id"`
	Number          string                  `json:"number"`
	WarehouseID     int64                   `json:"warehouse_id"`
	CustomerID      int64                   `json:"customer_id"`
	SalesProformaID *int64                  `json:"sales_proforma_id,omitempty"`
	IssueDate       time.Time               `json:"issue_date"`
	Lines           []DeliveryOrderLine     `json:"lines,omitempty"`
	Receivers       []DeliveryOrderReceiver `json:"receivers,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
}

// DeliveryOrderLine is one product/weight position on an order.
type DeliveryOrderLine struct {
	ID          int64   `json:"id"`
	OrderID     int64   `json:"order_id"`
	ProductID   int64   `json:"product_id"`
	Weight      float64 `json:"weight"`
	Destination string  `json:"destination,omitempty"`
}

// DeliveryOrderReceiver names who may pick up against an order.
type DeliveryOrderReceiver struct {
	ID         int64  `json:"id"`
	OrderID    int64  `json:"order_id"`
	Name       string `json:"name"`
	UniqueID   string `json:"unique_id"`
	Mobile     string `json:"mobile,omitempty"`
	Address    string `json:"address,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// ProductDelivery is an actual exit event against an order line.
type ProductDelivery struct {
	ID            int64     `json:"id"`
	OrderLineID   int64     `json:"order_line_id"`
	Weight        float64   `json:"weight"`
	VehicleNumber string    `json:"vehicle_number,omitempty"`
	DriverName    string    `json:"driver_name,omitempty"`
	DeliveredAt   time.Time `json:"delivered_at"`
}

// InventoryRow is the derived balance for one warehouse+product pair.
type InventoryRow struct {
	WarehouseID int64     `json:"warehouse_id"`
	ProductID   int64     `json:"product_id"`
	Received    float64   `json:"received"`
	Delivered   float64   `json:"delivered"`
	Balance     float64   `json:"balance"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ReceiptFilter narrows receipt listings.
type ReceiptFilter struct {
	WarehouseID int64
	ProductID   int64
	SupplierID  int64
	Type        ReceiptType
	Limit       int
	Offset      int
}

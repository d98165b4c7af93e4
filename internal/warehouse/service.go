package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghalla-erp/ghalla-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReceipt(ctx context.Context, id int64) (*Receipt, error)
	GetReceiptByCottage(ctx context.Context, cottageNumber string) (*Receipt, error)
	ListReceipts(ctx context.Context, filter ReceiptFilter) ([]Receipt, error)
	GetOrder(ctx context.Context, id int64) (*DeliveryOrder, error)
	ListOrders(ctx context.Context, warehouseID int64, limit, offset int) ([]DeliveryOrder, error)
	GetInventory(ctx context.Context, warehouseID int64) ([]InventoryRow, error)
	ListInventoryPairs(ctx context.Context) ([][2]int64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards replayed receipt submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates warehouse ledger operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	idem  IdempotencyPort
}

func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort) *Service {
	return &Service{repo: repo, audit: audit, idem: idem}
}

// ReceiptInput carries the fields to create a warehouse receipt.
type ReceiptInput struct {
	Number        string      `json:"number" validate:"required"`
	Type          ReceiptType `json:"type" validate:"required,oneof=cottage domestic transfer"`
	CottageNumber string      `json:"cottage_number"`
	WarehouseID   int64       `json:"warehouse_id" validate:"required"`
	ProductID     int64       `json:"product_id" validate:"required"`
	SupplierID    int64       `json:"supplier_id"`
	InitialWeight float64     `json:"initial_weight" validate:"required,gt=0"`
	ReceiptDate   time.Time   `json:"-"`
	ActorID       int64       `json:"-"`
}

// CreateReceipt inserts a receipt and recomputes the inventory balance in the
// same transaction.
func (s *Service) CreateReceipt(ctx context.Context, input ReceiptInput) (*Receipt, error) {
	if input.WarehouseID == 0 || input.ProductID == 0 {
		return nil, errors.New("warehouse: warehouse and product required")
	}
	if input.InitialWeight <= 0 {
		return nil, ErrInvalidWeight
	}
	switch input.Type {
	case ReceiptTypeCottage:
		if input.CottageNumber == "" {
			return nil, errors.New("warehouse: cottage receipts require a cottage number")
		}
	case ReceiptTypeDomestic, ReceiptTypeTransfer:
	default:
		return nil, fmt.Errorf("warehouse: unknown receipt type %q", input.Type)
	}

	rec := Receipt{
		Number:        input.Number,
		Type:          input.Type,
		WarehouseID:   input.WarehouseID,
		ProductID:     input.ProductID,
		InitialWeight: input.InitialWeight,
		ReceiptDate:   input.ReceiptDate,
	}
	if rec.ReceiptDate.IsZero() {
		rec.ReceiptDate = time.Now().UTC()
	}
	if input.CottageNumber != "" {
		rec.CottageNumber = &input.CottageNumber
	}
	if input.SupplierID != 0 {
		rec.SupplierID = &input.SupplierID
	}

	idemKey := "receipt:" + rec.Number
	if s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idemKey, "warehouse"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, ErrDuplicateReceipt
			}
			return nil, err
		}
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertReceipt(ctx, rec)
		if err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}
		rec.ID = id
		return tx.RecomputeInventory(ctx, rec.WarehouseID, rec.ProductID)
	})
	if err != nil {
		if s.idem != nil {
			_ = s.idem.Delete(ctx, idemKey)
		}
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "warehouse:receipt_created",
			Entity:   "warehouse_receipt",
			EntityID: rec.Number,
			Meta: map[string]any{
				"warehouse_id": rec.WarehouseID,
				"product_id":   rec.ProductID,
				"weight":       rec.InitialWeight,
			},
		})
	}
	return &rec, nil
}

// OrderInput carries the fields to create a delivery order with its lines and
// receivers in one transaction.
type OrderInput struct {
	WarehouseID     int64                   `json:"warehouse_id" validate:"required"`
	CustomerID      int64                   `json:"customer_id" validate:"required"`
	SalesProformaID int64                   `json:"sales_proforma_id"`
	IssueDate       time.Time               `json:"-"`
	Lines           []DeliveryOrderLine     `json:"lines" validate:"required,min=1"`
	Receivers       []DeliveryOrderReceiver `json:"receivers"`
	ActorID         int64                   `json:"-"`
}

// CreateOrder allocates the next month-scoped number and writes the order,
// its lines and its receivers atomically.
func (s *Service) CreateOrder(ctx context.Context, input OrderInput) (*DeliveryOrder, error) {
	if input.WarehouseID == 0 || input.CustomerID == 0 {
		return nil, errors.New("warehouse: warehouse and customer required")
	}
	if len(input.Lines) == 0 {
		return nil, errors.New("warehouse: order needs at least one line")
	}
	for _, line := range input.Lines {
		if line.Weight <= 0 {
			return nil, ErrInvalidWeight
		}
	}

	issueDate := input.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now().UTC()
	}
	order := DeliveryOrder{
		WarehouseID: input.WarehouseID,
		CustomerID:  input.CustomerID,
		IssueDate:   issueDate,
	}
	if input.SalesProformaID != 0 {
		order.SalesProformaID = &input.SalesProformaID
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextOrderNumber(ctx, issueDate.Format("0601"))
		if err != nil {
			return fmt.Errorf("allocate order number: %w", err)
		}
		order.Number = number

		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		order.ID = id

		for _, line := range input.Lines {
			line.OrderID = id
			lineID, err := tx.InsertOrderLine(ctx, line)
			if err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
			line.ID = lineID
			order.Lines = append(order.Lines, line)
		}
		for _, rcv := range input.Receivers {
			rcv.OrderID = id
			rcvID, err := tx.InsertOrderReceiver(ctx, rcv)
			if err != nil {
				return fmt.Errorf("insert order receiver: %w", err)
			}
			rcv.ID = rcvID
			order.Receivers = append(order.Receivers, rcv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "warehouse:order_created",
			Entity:   "delivery_order",
			EntityID: order.Number,
			Meta: map[string]any{
				"warehouse_id": order.WarehouseID,
				"customer_id":  order.CustomerID,
				"lines":        len(order.Lines),
			},
		})
	}
	return &order, nil
}

// DeliveryInput records an actual exit against an order line.
type DeliveryInput struct {
	OrderLineID   int64     `json:"order_line_id" validate:"required"`
	Weight        float64   `json:"weight" validate:"required,gt=0"`
	VehicleNumber string    `json:"vehicle_number"`
	DriverName    string    `json:"driver_name"`
	DeliveredAt   time.Time `json:"-"`
	ActorID       int64     `json:"-"`
}

// RecordDelivery inserts the exit event and recomputes inventory for the
// affected warehouse+product pair in the same transaction.
func (s *Service) RecordDelivery(ctx context.Context, input DeliveryInput) (*ProductDelivery, error) {
	if input.Weight <= 0 {
		return nil, ErrInvalidWeight
	}
	d := ProductDelivery{
		OrderLineID:   input.OrderLineID,
		Weight:        input.Weight,
		VehicleNumber: input.VehicleNumber,
		DriverName:    input.DriverName,
		DeliveredAt:   input.DeliveredAt,
	}
	if d.DeliveredAt.IsZero() {
		d.DeliveredAt = time.Now().UTC()
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.GetOrderLine(ctx, input.OrderLineID)
		if err != nil {
			return err
		}
		order, err := tx.GetOrder(ctx, line.OrderID)
		if err != nil {
			return err
		}
		id, err := tx.InsertDelivery(ctx, d)
		if err != nil {
			return fmt.Errorf("insert delivery: %w", err)
		}
		d.ID = id
		return tx.RecomputeInventory(ctx, order.WarehouseID, line.ProductID)
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "warehouse:delivery_recorded",
			Entity:   "product_delivery",
			EntityID: fmt.Sprintf("%d", d.ID),
			Meta:     map[string]any{"order_line_id": d.OrderLineID, "weight": d.Weight},
		})
	}
	return &d, nil
}

// GetReceipt loads a single receipt.
func (s *Service) GetReceipt(ctx context.Context, id int64) (*Receipt, error) {
	return s.repo.GetReceipt(ctx, id)
}

// ListReceipts lists receipts with filters.
func (s *Service) ListReceipts(ctx context.Context, filter ReceiptFilter) ([]Receipt, error) {
	return s.repo.ListReceipts(ctx, filter)
}

// GetOrder loads a delivery order with lines and receivers.
func (s *Service) GetOrder(ctx context.Context, id int64) (*DeliveryOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders lists delivery orders.
func (s *Service) ListOrders(ctx context.Context, warehouseID int64, limit, offset int) ([]DeliveryOrder, error) {
	return s.repo.ListOrders(ctx, warehouseID, limit, offset)
}

// GetInventory returns derived balances.
func (s *Service) GetInventory(ctx context.Context, warehouseID int64) ([]InventoryRow, error) {
	return s.repo.GetInventory(ctx, warehouseID)
}

// RecomputeAll re-derives every inventory pair. Used by the nightly sweep.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	pairs, err := s.repo.ListInventoryPairs(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, pair := range pairs {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			return tx.RecomputeInventory(ctx, pair[0], pair[1])
		})
		if err != nil {
			return count, fmt.Errorf("recompute %d/%d: %w", pair[0], pair[1], err)
		}
		count++
	}
	return count, nil
}

package warehouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ghalla-erp/ghalla-erp/internal/shared"
)

type memoryRepo struct {
	receipts   map[int64]Receipt
	orders     map[int64]DeliveryOrder
	lines      map[int64]DeliveryOrderLine
	receivers  map[int64]DeliveryOrderReceiver
	deliveries map[int64]ProductDelivery
	inventory  map[string]InventoryRow
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		receipts:   make(map[int64]Receipt),
		orders:     make(map[int64]DeliveryOrder),
		lines:      make(map[int64]DeliveryOrderLine),
		receivers:  make(map[int64]DeliveryOrderReceiver),
		deliveries: make(map[int64]ProductDelivery),
		inventory:  make(map[string]InventoryRow),
	}
}

func invKey(warehouseID, productID int64) string {
	return fmt.Sprintf("%d:%d", warehouseID, productID)
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetReceipt(ctx context.Context, id int64) (*Receipt, error) {
	rec, ok := r.receipts[id]
	if !ok {
		return nil, ErrReceiptNotFound
	}
	return &rec, nil
}

func (r *memoryRepo) GetReceiptByCottage(ctx context.Context, cottageNumber string) (*Receipt, error) {
	for _, rec := range r.receipts {
		if rec.Type == ReceiptTypeCottage && rec.CottageNumber != nil && *rec.CottageNumber == cottageNumber {
			return &rec, nil
		}
	}
	return nil, ErrReceiptNotFound
}

func (r *memoryRepo) ListReceipts(ctx context.Context, filter ReceiptFilter) ([]Receipt, error) {
	var out []Receipt
	for _, rec := range r.receipts {
		out = append(out, rec)
	}
	return out, nil
}

func (r *memoryRepo) GetOrder(ctx context.Context, id int64) (*DeliveryOrder, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	for _, line := range r.lines {
		if line.OrderID == id {
			order.Lines = append(order.Lines, line)
		}
	}
	for _, rcv := range r.receivers {
		if rcv.OrderID == id {
			order.Receivers = append(order.Receivers, rcv)
		}
	}
	return &order, nil
}

func (r *memoryRepo) ListOrders(ctx context.Context, warehouseID int64, limit, offset int) ([]DeliveryOrder, error) {
	var out []DeliveryOrder
	for _, order := range r.orders {
		if warehouseID == 0 || order.WarehouseID == warehouseID {
			out = append(out, order)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetInventory(ctx context.Context, warehouseID int64) ([]InventoryRow, error) {
	var out []InventoryRow
	for _, inv := range r.inventory {
		if warehouseID == 0 || inv.WarehouseID == warehouseID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListInventoryPairs(ctx context.Context) ([][2]int64, error) {
	seen := make(map[string][2]int64)
	for _, rec := range r.receipts {
		seen[invKey(rec.WarehouseID, rec.ProductID)] = [2]int64{rec.WarehouseID, rec.ProductID}
	}
	var pairs [][2]int64
	for _, pair := range seen {
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func (tx *memoryTx) InsertReceipt(ctx context.Context, rec Receipt) (int64, error) {
	tx.repo.nextID++
	rec.ID = tx.repo.nextID
	tx.repo.receipts[rec.ID] = rec
	return rec.ID, nil
}

func (tx *memoryTx) NextOrderNumber(ctx context.Context, yymm string) (string, error) {
	prefix := fmt.Sprintf("DO-%s-", yymm)
	count := 0
	for _, order := range tx.repo.orders {
		if len(order.Number) >= len(prefix) && order.Number[:len(prefix)] == prefix {
			count++
		}
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func (tx *memoryTx) InsertOrder(ctx context.Context, order DeliveryOrder) (int64, error) {
	tx.repo.nextID++
	order.ID = tx.repo.nextID
	order.Lines = nil
	order.Receivers = nil
	tx.repo.orders[order.ID] = order
	return order.ID, nil
}

func (tx *memoryTx) InsertOrderLine(ctx context.Context, line DeliveryOrderLine) (int64, error) {
	tx.repo.nextID++
	line.ID = tx.repo.nextID
	tx.repo.lines[line.ID] = line
	return line.ID, nil
}

func (tx *memoryTx) InsertOrderReceiver(ctx context.Context, rcv DeliveryOrderReceiver) (int64, error) {
	tx.repo.nextID++
	rcv.ID = tx.repo.nextID
	tx.repo.receivers[rcv.ID] = rcv
	return rcv.ID, nil
}

func (tx *memoryTx) InsertDelivery(ctx context.Context, d ProductDelivery) (int64, error) {
	tx.repo.nextID++
	d.ID = tx.repo.nextID
	tx.repo.deliveries[d.ID] = d
	return d.ID, nil
}

func (tx *memoryTx) GetOrderLine(ctx context.Context, id int64) (*DeliveryOrderLine, error) {
	line, ok := tx.repo.lines[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &line, nil
}

func (tx *memoryTx) GetOrder(ctx context.Context, id int64) (*DeliveryOrder, error) {
	order, ok := tx.repo.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &order, nil
}

func (tx *memoryTx) RecomputeInventory(ctx context.Context, warehouseID, productID int64) error {
	var received, delivered float64
	for _, rec := range tx.repo.receipts {
		if rec.WarehouseID == warehouseID && rec.ProductID == productID {
			received += rec.InitialWeight
		}
	}
	for _, d := range tx.repo.deliveries {
		line, ok := tx.repo.lines[d.OrderLineID]
		if !ok || line.ProductID != productID {
			continue
		}
		order, ok := tx.repo.orders[line.OrderID]
		if !ok || order.WarehouseID != warehouseID {
			continue
		}
		delivered += d.Weight
	}
	tx.repo.inventory[invKey(warehouseID, productID)] = InventoryRow{
		WarehouseID: warehouseID,
		ProductID:   productID,
		Received:    received,
		Delivered:   delivered,
		Balance:     received - delivered,
	}
	return nil
}

func TestReceiptUpdatesInventory(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateReceipt(ctx, ReceiptInput{
		Number: "WR-1", Type: ReceiptTypeCottage, CottageNumber: "900123",
		WarehouseID: 1, ProductID: 2, InitialWeight: 5000,
	})
	require.NoError(t, err)

	_, err = svc.CreateReceipt(ctx, ReceiptInput{
		Number: "WR-2", Type: ReceiptTypeDomestic,
		WarehouseID: 1, ProductID: 2, InitialWeight: 2500,
	})
	require.NoError(t, err)

	rows, err := svc.GetInventory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.InDelta(t, 7500, rows[0].Balance, 0.0001)
	require.InDelta(t, 7500, rows[0].Received, 0.0001)
	require.InDelta(t, 0, rows[0].Delivered, 0.0001)
}

type memoryIdem struct {
	keys map[string]string
}

func (m *memoryIdem) CheckAndInsert(ctx context.Context, key, module string) error {
	if m.keys == nil {
		m.keys = make(map[string]string)
	}
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = module
	return nil
}

func (m *memoryIdem) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func TestDuplicateReceiptNumberRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, &memoryIdem{})
	ctx := context.Background()

	input := ReceiptInput{
		Number: "WR-1", Type: ReceiptTypeDomestic,
		WarehouseID: 1, ProductID: 2, InitialWeight: 1000,
	}
	_, err := svc.CreateReceipt(ctx, input)
	require.NoError(t, err)

	_, err = svc.CreateReceipt(ctx, input)
	require.ErrorIs(t, err, ErrDuplicateReceipt)

	rows, err := svc.GetInventory(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 1000, rows[0].Balance, 0.0001)
}

func TestCottageReceiptRequiresNumber(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.CreateReceipt(context.Background(), ReceiptInput{
		Number: "WR-1", Type: ReceiptTypeCottage,
		WarehouseID: 1, ProductID: 1, InitialWeight: 100,
	})
	require.Error(t, err)
}

func TestDeliveryReducesBalance(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateReceipt(ctx, ReceiptInput{
		Number: "WR-1", Type: ReceiptTypeDomestic,
		WarehouseID: 3, ProductID: 9, InitialWeight: 1000,
	})
	require.NoError(t, err)

	order, err := svc.CreateOrder(ctx, OrderInput{
		WarehouseID: 3, CustomerID: 7,
		Lines: []DeliveryOrderLine{{ProductID: 9, Weight: 400, Destination: "Tehran"}},
		Receivers: []DeliveryOrderReceiver{
			{Name: "Receiver A", UniqueID: "0012345678"},
		},
	})
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	require.Len(t, order.Receivers, 1)

	_, err = svc.RecordDelivery(ctx, DeliveryInput{
		OrderLineID: order.Lines[0].ID, Weight: 400, VehicleNumber: "22A345",
	})
	require.NoError(t, err)

	rows, err := svc.GetInventory(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.InDelta(t, 600, rows[0].Balance, 0.0001)
	require.InDelta(t, 400, rows[0].Delivered, 0.0001)
}

func TestOrderNumberMonthScoped(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	issue := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	first, err := svc.CreateOrder(ctx, OrderInput{
		WarehouseID: 1, CustomerID: 1, IssueDate: issue,
		Lines: []DeliveryOrderLine{{ProductID: 1, Weight: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, "DO-2504-0001", first.Number)

	second, err := svc.CreateOrder(ctx, OrderInput{
		WarehouseID: 1, CustomerID: 1, IssueDate: issue,
		Lines: []DeliveryOrderLine{{ProductID: 1, Weight: 20}},
	})
	require.NoError(t, err)
	require.Equal(t, "DO-2504-0002", second.Number)

	nextMonth, err := svc.CreateOrder(ctx, OrderInput{
		WarehouseID: 1, CustomerID: 1, IssueDate: issue.AddDate(0, 1, 0),
		Lines: []DeliveryOrderLine{{ProductID: 1, Weight: 20}},
	})
	require.NoError(t, err)
	require.Equal(t, "DO-2505-0001", nextMonth.Number)
}

func TestZeroWeightRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateReceipt(ctx, ReceiptInput{
		Number: "WR-1", Type: ReceiptTypeDomestic, WarehouseID: 1, ProductID: 1,
	})
	require.ErrorIs(t, err, ErrInvalidWeight)

	_, err = svc.RecordDelivery(ctx, DeliveryInput{OrderLineID: 1, Weight: 0})
	require.ErrorIs(t, err, ErrInvalidWeight)
}

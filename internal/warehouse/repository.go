package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the warehouse ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the service composes.
type TxRepository interface {
	InsertReceipt(ctx context.Context, rec Receipt) (int64, error)
	NextOrderNumber(ctx context.Context, yymm string) (string, error)
	InsertOrder(ctx context.Context, order DeliveryOrder) (int64, error)
	InsertOrderLine(ctx context.Context, line DeliveryOrderLine) (int64, error)
	InsertOrderReceiver(ctx context.Context, rcv DeliveryOrderReceiver) (int64, error)
	InsertDelivery(ctx context.Context, d ProductDelivery) (int64, error)
	GetOrderLine(ctx context.Context, id int64) (*DeliveryOrderLine, error)
	GetOrder(ctx context.Context, id int64) (*DeliveryOrder, error)
	RecomputeInventory(ctx context.Context, warehouseID, productID int64) error
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txRepo{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txRepo struct {
	q pgx.Tx
}

func (r *txRepo) InsertReceipt(ctx context.Context, rec Receipt) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO warehouse_receipts
			(number, type, cottage_number, warehouse_id, product_id, supplier_id, initial_weight, receipt_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		rec.Number, rec.Type, rec.CottageNumber, rec.WarehouseID, rec.ProductID,
		rec.SupplierID, rec.InitialWeight, rec.ReceiptDate,
	).Scan(&id)
	return id, err
}

// NextOrderNumber allocates the next DO-YYMM-NNNN number within the month.
func (r *txRepo) NextOrderNumber(ctx context.Context, yymm string) (string, error) {
	prefix := fmt.Sprintf("DO-%s-", yymm)
	var count int
	err := r.q.QueryRow(ctx,
		"SELECT COUNT(*) FROM warehouse_delivery_orders WHERE number LIKE $1",
		prefix+"%",
	).Scan(&count)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func (r *txRepo) InsertOrder(ctx context.Context, order DeliveryOrder) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO warehouse_delivery_orders (number, warehouse_id, customer_id, sales_proforma_id, issue_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		order.Number, order.WarehouseID, order.CustomerID, order.SalesProformaID, order.IssueDate,
	).Scan(&id)
	return id, err
}

func (r *txRepo) InsertOrderLine(ctx context.Context, line DeliveryOrderLine) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO warehouse_delivery_order_lines (order_id, product_id, weight, destination)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		line.OrderID, line.ProductID, line.Weight, line.Destination,
	).Scan(&id)
	return id, err
}

func (r *txRepo) InsertOrderReceiver(ctx context.Context, rcv DeliveryOrderReceiver) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO warehouse_delivery_order_receivers (order_id, name, unique_id, mobile, address, postal_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		rcv.OrderID, rcv.Name, rcv.UniqueID, rcv.Mobile, rcv.Address, rcv.PostalCode,
	).Scan(&id)
	return id, err
}

func (r *txRepo) InsertDelivery(ctx context.Context, d ProductDelivery) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO product_deliveries (order_line_id, weight, vehicle_number, driver_name, delivered_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		d.OrderLineID, d.Weight, d.VehicleNumber, d.DriverName, d.DeliveredAt,
	).Scan(&id)
	return id, err
}

func (r *txRepo) GetOrderLine(ctx context.Context, id int64) (*DeliveryOrderLine, error) {
	var line DeliveryOrderLine
	var destination pgtype.Text
	err := r.q.QueryRow(ctx,
		"SELECT id, order_id, product_id, weight, destination FROM warehouse_delivery_order_lines WHERE id = $1",
		id,
	).Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Weight, &destination)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	line.Destination = destination.String
	return &line, nil
}

func (r *txRepo) GetOrder(ctx context.Context, id int64) (*DeliveryOrder, error) {
	return scanOrder(r.q.QueryRow(ctx, orderSelect+" WHERE id = $1", id))
}

// RecomputeInventory rewrites the derived balance row from the live receipt
// and delivery sets. Runs inside the caller's transaction.
func (r *txRepo) RecomputeInventory(ctx context.Context, warehouseID, productID int64) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO warehouse_inventory (warehouse_id, product_id, received, delivered, balance, updated_at)
		SELECT $1, $2, agg.received, agg.delivered, agg.received - agg.delivered, NOW()
		FROM (
			SELECT
				COALESCE((SELECT SUM(initial_weight) FROM warehouse_receipts
					WHERE warehouse_id = $1 AND product_id = $2), 0) AS received,
				COALESCE((SELECT SUM(pd.weight)
					FROM product_deliveries pd
					JOIN warehouse_delivery_order_lines l ON pd.order_line_id = l.id
					JOIN warehouse_delivery_orders o ON l.order_id = o.id
					WHERE o.warehouse_id = $1 AND l.product_id = $2), 0) AS delivered
		) agg
		ON CONFLICT (warehouse_id, product_id) DO UPDATE SET
			received = EXCLUDED.received,
			delivered = EXCLUDED.delivered,
			balance = EXCLUDED.balance,
			updated_at = NOW()`,
		warehouseID, productID,
	)
	return err
}

const orderSelect = `
	SELECT id, number, warehouse_id, customer_id, sales_proforma_id, issue_date, created_at
	FROM warehouse_delivery_orders`

func scanOrder(row pgx.Row) (*DeliveryOrder, error) {
	var order DeliveryOrder
	var proformaID pgtype.Int8
	var issueDate pgtype.Date
	var createdAt pgtype.Timestamptz
	err := row.Scan(&order.ID, &order.Number, &order.WarehouseID, &order.CustomerID,
		&proformaID, &issueDate, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if proformaID.Valid {
		order.SalesProformaID = &proformaID.Int64
	}
	if issueDate.Valid {
		order.IssueDate = issueDate.Time
	}
	if createdAt.Valid {
		order.CreatedAt = createdAt.Time
	}
	return &order, nil
}

const receiptSelect = `
	SELECT id, number, type, cottage_number, warehouse_id, product_id, supplier_id, initial_weight, receipt_date, created_at
	FROM warehouse_receipts`

func scanReceipt(row pgx.Row) (*Receipt, error) {
	var rec Receipt
	var cottage pgtype.Text
	var supplierID pgtype.Int8
	var receiptDate pgtype.Date
	var createdAt pgtype.Timestamptz
	err := row.Scan(&rec.ID, &rec.Number, &rec.Type, &cottage, &rec.WarehouseID,
		&rec.ProductID, &supplierID, &rec.InitialWeight, &receiptDate, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReceiptNotFound
		}
		return nil, err
	}
	if cottage.Valid {
		rec.CottageNumber = &cottage.String
	}
	if supplierID.Valid {
		rec.SupplierID = &supplierID.Int64
	}
	if receiptDate.Valid {
		rec.ReceiptDate = receiptDate.Time
	}
	if createdAt.Valid {
		rec.CreatedAt = createdAt.Time
	}
	return &rec, nil
}

// GetReceipt loads one receipt outside any transaction.
func (r *Repository) GetReceipt(ctx context.Context, id int64) (*Receipt, error) {
	return scanReceipt(r.pool.QueryRow(ctx, receiptSelect+" WHERE id = $1", id))
}

// GetReceiptByCottage resolves a cottage receipt by its customs number.
func (r *Repository) GetReceiptByCottage(ctx context.Context, cottageNumber string) (*Receipt, error) {
	row := r.pool.QueryRow(ctx, receiptSelect+" WHERE type = 'cottage' AND cottage_number = $1", cottageNumber)
	return scanReceipt(row)
}

// ListReceipts lists receipts with optional filters, newest first.
func (r *Repository) ListReceipts(ctx context.Context, filter ReceiptFilter) ([]Receipt, error) {
	where := "WHERE TRUE"
	var args []interface{}
	argPos := 1
	if filter.WarehouseID != 0 {
		where += fmt.Sprintf(" AND warehouse_id = $%d", argPos)
		args = append(args, filter.WarehouseID)
		argPos++
	}
	if filter.ProductID != 0 {
		where += fmt.Sprintf(" AND product_id = $%d", argPos)
		args = append(args, filter.ProductID)
		argPos++
	}
	if filter.SupplierID != 0 {
		where += fmt.Sprintf(" AND supplier_id = $%d", argPos)
		args = append(args, filter.SupplierID)
		argPos++
	}
	if filter.Type != "" {
		where += fmt.Sprintf(" AND type = $%d", argPos)
		args = append(args, filter.Type)
		argPos++
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf("%s %s ORDER BY receipt_date DESC, id DESC LIMIT $%d OFFSET $%d",
		receiptSelect, where, argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GetOrder loads a delivery order with its lines and receivers.
func (r *Repository) GetOrder(ctx context.Context, id int64) (*DeliveryOrder, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, orderSelect+" WHERE id = $1", id))
	if err != nil {
		return nil, err
	}

	lineRows, err := r.pool.Query(ctx,
		"SELECT id, order_id, product_id, weight, destination FROM warehouse_delivery_order_lines WHERE order_id = $1 ORDER BY id",
		id,
	)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var line DeliveryOrderLine
		var destination pgtype.Text
		if err := lineRows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Weight, &destination); err != nil {
			return nil, err
		}
		line.Destination = destination.String
		order.Lines = append(order.Lines, line)
	}
	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	rcvRows, err := r.pool.Query(ctx,
		"SELECT id, order_id, name, unique_id, mobile, address, postal_code FROM warehouse_delivery_order_receivers WHERE order_id = $1 ORDER BY id",
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rcvRows.Close()
	for rcvRows.Next() {
		var rcv DeliveryOrderReceiver
		var mobile, address, postal pgtype.Text
		if err := rcvRows.Scan(&rcv.ID, &rcv.OrderID, &rcv.Name, &rcv.UniqueID, &mobile, &address, &postal); err != nil {
			return nil, err
		}
		rcv.Mobile = mobile.String
		rcv.Address = address.String
		rcv.PostalCode = postal.String
		order.Receivers = append(order.Receivers, rcv)
	}
	if err := rcvRows.Err(); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders lists delivery orders, newest first.
func (r *Repository) ListOrders(ctx context.Context, warehouseID int64, limit, offset int) ([]DeliveryOrder, error) {
	where := "WHERE TRUE"
	var args []interface{}
	argPos := 1
	if warehouseID != 0 {
		where += fmt.Sprintf(" AND warehouse_id = $%d", argPos)
		args = append(args, warehouseID)
		argPos++
	}
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf("%s %s ORDER BY issue_date DESC, id DESC LIMIT $%d OFFSET $%d",
		orderSelect, where, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliveryOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *order)
	}
	return out, rows.Err()
}

// GetInventory returns the derived balance rows for a warehouse, or all
// warehouses when warehouseID is zero.
func (r *Repository) GetInventory(ctx context.Context, warehouseID int64) ([]InventoryRow, error) {
	query := "SELECT warehouse_id, product_id, received, delivered, balance, updated_at FROM warehouse_inventory"
	var args []interface{}
	if warehouseID != 0 {
		query += " WHERE warehouse_id = $1"
		args = append(args, warehouseID)
	}
	query += " ORDER BY warehouse_id, product_id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InventoryRow
	for rows.Next() {
		var inv InventoryRow
		var updatedAt pgtype.Timestamptz
		if err := rows.Scan(&inv.WarehouseID, &inv.ProductID, &inv.Received, &inv.Delivered, &inv.Balance, &updatedAt); err != nil {
			return nil, err
		}
		if updatedAt.Valid {
			inv.UpdatedAt = updatedAt.Time
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ListInventoryPairs returns every warehouse+product pair that has ledger
// activity. Used by the nightly recompute sweep.
func (r *Repository) ListInventoryPairs(ctx context.Context) ([][2]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT warehouse_id, product_id FROM warehouse_receipts
		UNION
		SELECT DISTINCT o.warehouse_id, l.product_id
		FROM warehouse_delivery_order_lines l
		JOIN warehouse_delivery_orders o ON l.order_id = o.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs [][2]int64
	for rows.Next() {
		var wh, prod int64
		if err := rows.Scan(&wh, &prod); err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]int64{wh, prod})
	}
	return pairs, rows.Err()
}

package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the marketplace engine in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the service composes.
// Dispatch writes cross into the warehouse and proforma tables so the whole
// batch commits or rolls back as one unit.
type TxRepository interface {
	InsertOffer(ctx context.Context, offer ProductOffer) (int64, error)
	UpdateOffer(ctx context.Context, id int64, updates map[string]interface{}) error
	SetOfferStatus(ctx context.Context, id int64, status OfferStatus) error

	InsertSale(ctx context.Context, sale Sale) (int64, error)
	GetSaleForUpdate(ctx context.Context, id int64) (*Sale, error)
	RecomputeSaleWeights(ctx context.Context, saleID int64) error

	PurchaseNumberExists(ctx context.Context, number string) (bool, error)
	InsertPurchase(ctx context.Context, p Purchase) (int64, error)
	DeletePurchase(ctx context.Context, id int64) (int64, error)
	InsertDetail(ctx context.Context, detail PurchaseDetail) (int64, error)

	InsertAddress(ctx context.Context, addr DeliveryAddress) (int64, error)
	DeleteAddressesByDetail(ctx context.Context, detailID int64) (int, error)

	GetOrCreateDispatchCustomer(ctx context.Context, nationalID, name string) (int64, error)
	InsertProformaStub(ctx context.Context, serial string, customerID int64) (int64, error)
	NextOrderNumber(ctx context.Context, yymm string) (string, error)
	InsertOrder(ctx context.Context, number string, warehouseID, customerID, proformaID int64, issueDate time.Time) (int64, error)
	InsertOrderLine(ctx context.Context, orderID, productID int64, weight float64, destination string) (int64, error)
	InsertOrderReceiver(ctx context.Context, orderID int64, name, uniqueID, mobile, address, postalCode string) error
	MarkAddressDispatched(ctx context.Context, addressID int64, orderNumber string) error
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

const offerColumns = `id, offer_number, receipt_id, cottage_number, product_id, product_title,
	weight, unit_price, total_price, type, status, created_at, updated_at`

func scanOffer(row pgx.Row) (*ProductOffer, error) {
	var o ProductOffer
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&o.ID, &o.OfferNumber, &o.ReceiptID, &o.CottageNumber, &o.ProductID,
		&o.ProductTitle, &o.Weight, &o.UnitPrice, &o.TotalPrice, &o.Type, &o.Status,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	if createdAt.Valid {
		o.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		o.UpdatedAt = updatedAt.Time
	}
	return &o, nil
}

func (r *txRepo) InsertOffer(ctx context.Context, offer ProductOffer) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO product_offers
			(offer_number, receipt_id, cottage_number, product_id, product_title,
			 weight, unit_price, total_price, type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $6 * $7, $8, $9)
		RETURNING id`,
		offer.OfferNumber, offer.ReceiptID, offer.CottageNumber, offer.ProductID,
		offer.ProductTitle, offer.Weight, offer.UnitPrice, offer.Type, offer.Status,
	).Scan(&id)
	return id, err
}

// UpdateOffer applies the given columns and rewrites the derived total.
func (r *txRepo) UpdateOffer(ctx context.Context, id int64, updates map[string]interface{}) error {
	query := "UPDATE product_offers SET updated_at = NOW()"
	var args []interface{}
	argPos := 1
	for _, col := range []string{"weight", "unit_price", "type"} {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}
	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOfferNotFound
	}
	// SET expressions see the pre-update row, so the derived total is
	// rewritten in a second statement.
	_, err = r.q.Exec(ctx, "UPDATE product_offers SET total_price = weight * unit_price WHERE id = $1", id)
	return err
}

func (r *txRepo) SetOfferStatus(ctx context.Context, id int64, status OfferStatus) error {
	tag, err := r.q.Exec(ctx,
		"UPDATE product_offers SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOfferNotFound
	}
	return nil
}

const saleColumns = `id, offer_id, cottage_number, product_title, unit_price, total_offer_weight,
	sold_before_transport, remaining_before_transport, sold_after_transport,
	remaining_after_transport, created_at, updated_at`

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&s.ID, &s.OfferID, &s.CottageNumber, &s.ProductTitle, &s.UnitPrice,
		&s.TotalOfferWeight, &s.SoldBeforeTransport, &s.RemainingBeforeTransport,
		&s.SoldAfterTransport, &s.RemainingAfterTransport, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	if createdAt.Valid {
		s.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		s.UpdatedAt = updatedAt.Time
	}
	return &s, nil
}

func (r *txRepo) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO marketplace_sales
			(offer_id, cottage_number, product_title, unit_price, total_offer_weight,
			 sold_before_transport, remaining_before_transport,
			 sold_after_transport, remaining_after_transport)
		VALUES ($1, $2, $3, $4, $5, 0, $5, 0, $5)
		RETURNING id`,
		sale.OfferID, sale.CottageNumber, sale.ProductTitle, sale.UnitPrice, sale.TotalOfferWeight,
	).Scan(&id)
	return id, err
}

func (r *txRepo) GetSaleForUpdate(ctx context.Context, id int64) (*Sale, error) {
	return scanSale(r.q.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM marketplace_sales WHERE id = $1 FOR UPDATE", saleColumns), id))
}

// RecomputeSaleWeights rewrites the derived weight fields from the live
// purchase set in one UPDATE. Idempotent; n=0 purchases yields sold=0.
func (r *txRepo) RecomputeSaleWeights(ctx context.Context, saleID int64) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE marketplace_sales s SET
			sold_before_transport = agg.sold,
			remaining_before_transport = s.total_offer_weight - agg.sold,
			sold_after_transport = 0,
			remaining_after_transport = s.total_offer_weight,
			updated_at = NOW()
		FROM (
			SELECT COALESCE(SUM(weight), 0) AS sold
			FROM marketplace_purchases WHERE sale_id = $1
		) agg
		WHERE s.id = $1`,
		saleID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}

func (r *txRepo) PurchaseNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM marketplace_purchases WHERE purchase_number = $1)", number,
	).Scan(&exists)
	return exists, err
}

func installmentArgs(installments []Installment) []interface{} {
	args := make([]interface{}, 6)
	for i := 0; i < 3; i++ {
		if i < len(installments) {
			args[i*2] = installments[i].Period
			args[i*2+1] = installments[i].Amount
		}
	}
	return args
}

func (r *txRepo) InsertPurchase(ctx context.Context, p Purchase) (int64, error) {
	args := []interface{}{
		p.SaleID, p.PurchaseNumber, p.CottageNumber, p.Weight, p.PaidAmount, p.UnitPrice,
		p.BuyerName, p.NationalID, p.Mobile, p.AccountNumber, p.Address, p.Type,
		p.PurchaseDate, p.CustomerID,
	}
	args = append(args, installmentArgs(p.Installments)...)
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO marketplace_purchases
			(sale_id, purchase_number, cottage_number, weight, paid_amount, unit_price,
			 buyer_name, national_id, mobile, account_number, address, type,
			 purchase_date, customer_id,
			 installment1_period, installment1_amount,
			 installment2_period, installment2_amount,
			 installment3_period, installment3_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20)
		RETURNING id`,
		args...,
	).Scan(&id)
	return id, err
}

// DeletePurchase removes a purchase and returns its owning sale id.
func (r *txRepo) DeletePurchase(ctx context.Context, id int64) (int64, error) {
	var saleID int64
	err := r.q.QueryRow(ctx,
		"DELETE FROM marketplace_purchases WHERE id = $1 RETURNING sale_id", id,
	).Scan(&saleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrPurchaseNotFound
	}
	return saleID, err
}

func (r *txRepo) InsertDetail(ctx context.Context, detail PurchaseDetail) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO marketplace_purchase_details (purchase_id, agreement_description)
		VALUES ($1, $2)
		RETURNING id`,
		detail.PurchaseID, detail.AgreementDescription,
	).Scan(&id)
	return id, err
}

func (r *txRepo) InsertAddress(ctx context.Context, addr DeliveryAddress) (int64, error) {
	args := []interface{}{
		addr.DetailID, addr.AssignmentNumber, addr.BuyerName, addr.BuyerNationalID,
		addr.RecipientName, addr.RecipientNationalID, addr.RecipientMobile,
		addr.Address, addr.PostalCode,
		addr.Vehicles.Single, addr.Vehicles.Double, addr.Vehicles.Trailer,
		addr.OrderWeight, addr.Status,
	}
	args = append(args, installmentArgs(addr.Installments)...)
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO delivery_addresses
			(detail_id, assignment_number, buyer_name, buyer_national_id,
			 recipient_name, recipient_national_id, recipient_mobile,
			 address, postal_code, vehicle_single, vehicle_double, vehicle_trailer,
			 order_weight, status,
			 installment1_period, installment1_amount,
			 installment2_period, installment2_amount,
			 installment3_period, installment3_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20)
		RETURNING id`,
		args...,
	).Scan(&id)
	return id, err
}

func (r *txRepo) DeleteAddressesByDetail(ctx context.Context, detailID int64) (int, error) {
	tag, err := r.q.Exec(ctx, "DELETE FROM delivery_addresses WHERE detail_id = $1", detailID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// GetOrCreateDispatchCustomer resolves the synthetic marketplace customer by
// its fixed placeholder national id, creating it on first use.
func (r *txRepo) GetOrCreateDispatchCustomer(ctx context.Context, nationalID, name string) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, "SELECT id FROM customers WHERE national_id = $1", nationalID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	err = r.q.QueryRow(ctx, `
		INSERT INTO customers (name, national_id, tags, is_active)
		VALUES ($1, $2, ARRAY['marketplace'], TRUE)
		RETURNING id`,
		name, nationalID,
	).Scan(&id)
	return id, err
}

func (r *txRepo) InsertProformaStub(ctx context.Context, serial string, customerID int64) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO proformas (kind, serial, party_id, date)
		VALUES ('sales', $1, $2, NOW())
		RETURNING id`,
		serial, customerID,
	).Scan(&id)
	return id, err
}

func (r *txRepo) NextOrderNumber(ctx context.Context, yymm string) (string, error) {
	prefix := fmt.Sprintf("DO-%s-", yymm)
	var count int
	err := r.q.QueryRow(ctx,
		"SELECT COUNT(*) FROM warehouse_delivery_orders WHERE number LIKE $1", prefix+"%",
	).Scan(&count)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func (r *txRepo) InsertOrder(ctx context.Context, number string, warehouseID, customerID, proformaID int64, issueDate time.Time) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO warehouse_delivery_orders (number, warehouse_id, customer_id, sales_proforma_id, issue_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		number, warehouseID, customerID, proformaID, issueDate,
	).Scan(&id)
	return id, err
}

func (r *txRepo) InsertOrderLine(ctx context.Context, orderID, productID int64, weight float64, destination string) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO warehouse_delivery_order_lines (order_id, product_id, weight, destination)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		orderID, productID, weight, destination,
	).Scan(&id)
	return id, err
}

func (r *txRepo) InsertOrderReceiver(ctx context.Context, orderID int64, name, uniqueID, mobile, address, postalCode string) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO warehouse_delivery_order_receivers (order_id, name, unique_id, mobile, address, postal_code)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		orderID, name, uniqueID, mobile, address, postalCode,
	)
	return err
}

func (r *txRepo) MarkAddressDispatched(ctx context.Context, addressID int64, orderNumber string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE delivery_addresses SET status = 'delivery_created', order_number = $2
		WHERE id = $1`,
		addressID, orderNumber,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAddressNotFound
	}
	return nil
}

// ---- pool reads ----

func (r *Repository) GetOffer(ctx context.Context, id int64) (*ProductOffer, error) {
	return scanOffer(r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM product_offers WHERE id = $1", offerColumns), id))
}

func (r *Repository) GetOfferByNumber(ctx context.Context, number string) (*ProductOffer, error) {
	return scanOffer(r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM product_offers WHERE offer_number = $1", offerColumns), number))
}

func (r *Repository) ListOffers(ctx context.Context, status OfferStatus, limit, offset int) ([]ProductOffer, error) {
	where := "WHERE TRUE"
	var args []interface{}
	argPos := 1
	if status != "" {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, status)
		argPos++
	}
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf("SELECT %s FROM product_offers %s ORDER BY id DESC LIMIT $%d OFFSET $%d",
		offerColumns, where, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// OfferHasSale reports whether a sale already references the offer.
func (r *Repository) OfferHasSale(ctx context.Context, offerID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM marketplace_sales WHERE offer_id = $1)", offerID,
	).Scan(&exists)
	return exists, err
}

func (r *Repository) GetSale(ctx context.Context, id int64) (*Sale, error) {
	return scanSale(r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM marketplace_sales WHERE id = $1", saleColumns), id))
}

func (r *Repository) ListSales(ctx context.Context, limit, offset int) ([]Sale, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM marketplace_sales ORDER BY id DESC LIMIT $1 OFFSET $2", saleColumns),
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

const purchaseColumns = `id, sale_id, purchase_number, cottage_number, weight, paid_amount, unit_price,
	buyer_name, national_id, mobile, account_number, address, type, purchase_date, customer_id,
	installment1_period, installment1_amount, installment2_period, installment2_amount,
	installment3_period, installment3_amount, created_at`

func scanPurchase(row pgx.Row) (*Purchase, error) {
	var p Purchase
	var mobile, account, address pgtype.Text
	var purchaseDate pgtype.Date
	var customerID pgtype.Int8
	var createdAt pgtype.Timestamptz
	var periods [3]pgtype.Text
	var amounts [3]pgtype.Float8
	err := row.Scan(&p.ID, &p.SaleID, &p.PurchaseNumber, &p.CottageNumber, &p.Weight,
		&p.PaidAmount, &p.UnitPrice, &p.BuyerName, &p.NationalID, &mobile, &account,
		&address, &p.Type, &purchaseDate, &customerID,
		&periods[0], &amounts[0], &periods[1], &amounts[1], &periods[2], &amounts[2],
		&createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	p.Mobile = mobile.String
	p.AccountNumber = account.String
	p.Address = address.String
	if purchaseDate.Valid {
		p.PurchaseDate = purchaseDate.Time
	}
	if customerID.Valid {
		p.CustomerID = &customerID.Int64
	}
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	for i := 0; i < 3; i++ {
		if periods[i].Valid && periods[i].String != "" {
			p.Installments = append(p.Installments, Installment{
				Period: periods[i].String,
				Amount: amounts[i].Float64,
			})
		}
	}
	return &p, nil
}

func (r *Repository) GetPurchase(ctx context.Context, id int64) (*Purchase, error) {
	return scanPurchase(r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM marketplace_purchases WHERE id = $1", purchaseColumns), id))
}

func (r *Repository) ListPurchases(ctx context.Context, saleID int64) ([]Purchase, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM marketplace_purchases WHERE sale_id = $1 ORDER BY id", purchaseColumns),
		saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetDetailByPurchase loads the 1:1 sidecar of a purchase.
func (r *Repository) GetDetailByPurchase(ctx context.Context, purchaseID int64) (*PurchaseDetail, error) {
	var d PurchaseDetail
	var desc pgtype.Text
	err := r.pool.QueryRow(ctx,
		"SELECT id, purchase_id, agreement_description FROM marketplace_purchase_details WHERE purchase_id = $1",
		purchaseID,
	).Scan(&d.ID, &d.PurchaseID, &desc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	d.AgreementDescription = desc.String
	return &d, nil
}

const addressColumns = `id, detail_id, assignment_number, buyer_name, buyer_national_id,
	recipient_name, recipient_national_id, recipient_mobile, address, postal_code,
	vehicle_single, vehicle_double, vehicle_trailer, order_weight, status, order_number,
	installment1_period, installment1_amount, installment2_period, installment2_amount,
	installment3_period, installment3_amount, created_at`

func scanAddress(row pgx.Row) (*DeliveryAddress, error) {
	var a DeliveryAddress
	var recipientMobile, addr, postal, orderNumber pgtype.Text
	var createdAt pgtype.Timestamptz
	var periods [3]pgtype.Text
	var amounts [3]pgtype.Float8
	err := row.Scan(&a.ID, &a.DetailID, &a.AssignmentNumber, &a.BuyerName, &a.BuyerNationalID,
		&a.RecipientName, &a.RecipientNationalID, &recipientMobile, &addr, &postal,
		&a.Vehicles.Single, &a.Vehicles.Double, &a.Vehicles.Trailer,
		&a.OrderWeight, &a.Status, &orderNumber,
		&periods[0], &amounts[0], &periods[1], &amounts[1], &periods[2], &amounts[2],
		&createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, err
	}
	a.RecipientMobile = recipientMobile.String
	a.Address = addr.String
	a.PostalCode = postal.String
	a.OrderNumber = orderNumber.String
	if createdAt.Valid {
		a.CreatedAt = createdAt.Time
	}
	for i := 0; i < 3; i++ {
		if periods[i].Valid && periods[i].String != "" {
			a.Installments = append(a.Installments, Installment{
				Period: periods[i].String,
				Amount: amounts[i].Float64,
			})
		}
	}
	return &a, nil
}

func (r *Repository) ListAddressesByDetail(ctx context.Context, detailID int64) ([]DeliveryAddress, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM delivery_addresses WHERE detail_id = $1 ORDER BY id", addressColumns),
		detailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliveryAddress
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *Repository) GetAddress(ctx context.Context, id int64) (*DeliveryAddress, error) {
	return scanAddress(r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM delivery_addresses WHERE id = $1", addressColumns), id))
}

func (r *Repository) UpdateAddressStatus(ctx context.Context, id int64, status AddressStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE delivery_addresses SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAddressNotFound
	}
	return nil
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

// DispatchRow joins a pending address with the warehouse and product of its
// originating offer's receipt.
type DispatchRow struct {
	Address     DeliveryAddress
	WarehouseID int64
	ProductID   int64
	OfferNumber string
}

// ListDispatchRows loads the selected pending addresses with their offer
// grouping keys.
func (r *Repository) ListDispatchRows(ctx context.Context, addressIDs []int64) ([]DispatchRow, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s, wr.warehouse_id, wr.product_id, po.offer_number
		FROM delivery_addresses a
		JOIN marketplace_purchase_details d ON a.detail_id = d.id
		JOIN marketplace_purchases p ON d.purchase_id = p.id
		JOIN marketplace_sales s ON p.sale_id = s.id
		JOIN product_offers po ON s.offer_id = po.id
		JOIN warehouse_receipts wr ON po.receipt_id = wr.id
		WHERE a.id = ANY($1) AND a.status = 'pending'
		ORDER BY a.id`,
		prefixColumns("a", addressColumns)), addressIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DispatchRow
	for rows.Next() {
		var a DeliveryAddress
		var recipientMobile, addr, postal, orderNumber pgtype.Text
		var createdAt pgtype.Timestamptz
		var periods [3]pgtype.Text
		var amounts [3]pgtype.Float8
		var row DispatchRow
		err := rows.Scan(&a.ID, &a.DetailID, &a.AssignmentNumber, &a.BuyerName, &a.BuyerNationalID,
			&a.RecipientName, &a.RecipientNationalID, &recipientMobile, &addr, &postal,
			&a.Vehicles.Single, &a.Vehicles.Double, &a.Vehicles.Trailer,
			&a.OrderWeight, &a.Status, &orderNumber,
			&periods[0], &amounts[0], &periods[1], &amounts[1], &periods[2], &amounts[2],
			&createdAt,
			&row.WarehouseID, &row.ProductID, &row.OfferNumber)
		if err != nil {
			return nil, err
		}
		a.RecipientMobile = recipientMobile.String
		a.Address = addr.String
		a.PostalCode = postal.String
		a.OrderNumber = orderNumber.String
		if createdAt.Valid {
			a.CreatedAt = createdAt.Time
		}
		row.Address = a
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetSaleSummary builds the cached weight snapshot straight from storage.
func (r *Repository) GetSaleSummary(ctx context.Context, saleID int64) (*SaleSummary, error) {
	var s SaleSummary
	err := r.pool.QueryRow(ctx, `
		SELECT s.id, s.cottage_number, s.product_title, s.total_offer_weight,
			s.sold_before_transport, s.remaining_before_transport,
			(SELECT COUNT(*) FROM marketplace_purchases WHERE sale_id = s.id)
		FROM marketplace_sales s WHERE s.id = $1`,
		saleID,
	).Scan(&s.SaleID, &s.CottageNumber, &s.ProductTitle, &s.TotalOfferWeight,
		&s.SoldBeforeTransport, &s.RemainingBeforeTransport, &s.PurchaseCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListSaleIDs returns every sale id. Used by the reconciliation sweep.
func (r *Repository) ListSaleIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, "SELECT id FROM marketplace_sales ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

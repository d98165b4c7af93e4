package proforma

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists proformas in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the service composes.
type TxRepository interface {
	InsertProforma(ctx context.Context, p Proforma) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	DeleteLine(ctx context.Context, proformaID, lineID int64) error
	InsertPayment(ctx context.Context, payment Payment) (int64, error)
	RecomputeTotals(ctx context.Context, proformaID int64) error
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

func (r *txRepo) InsertProforma(ctx context.Context, p Proforma) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO proformas (kind, serial, party_id, date)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		p.Kind, p.Serial, p.PartyID, p.Date,
	).Scan(&id)
	return id, err
}

func (r *txRepo) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO proforma_lines (proforma_id, product_id, weight, unit_price, amount)
		VALUES ($1, $2, $3, $4, $3 * $4)
		RETURNING id`,
		line.ProformaID, line.ProductID, line.Weight, line.UnitPrice,
	).Scan(&id)
	return id, err
}

func (r *txRepo) DeleteLine(ctx context.Context, proformaID, lineID int64) error {
	tag, err := r.q.Exec(ctx,
		"DELETE FROM proforma_lines WHERE id = $1 AND proforma_id = $2", lineID, proformaID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *txRepo) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO proforma_payments (proforma_id, amount, paid_at, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		payment.ProformaID, payment.Amount, payment.PaidAt, payment.Note,
	).Scan(&id)
	return id, err
}

// RecomputeTotals rewrites the header rollups from the live line set.
func (r *txRepo) RecomputeTotals(ctx context.Context, proformaID int64) error {
	_, err := r.q.Exec(ctx, `
		UPDATE proformas SET
			total_weight = COALESCE((SELECT SUM(weight) FROM proforma_lines WHERE proforma_id = $1), 0),
			total_amount = COALESCE((SELECT SUM(amount) FROM proforma_lines WHERE proforma_id = $1), 0),
			updated_at = NOW()
		WHERE id = $1`,
		proformaID,
	)
	return err
}

const proformaSelect = `
	SELECT p.id, p.kind, p.serial, p.party_id, p.date, p.total_weight, p.total_amount,
		COALESCE((SELECT SUM(amount) FROM proforma_payments WHERE proforma_id = p.id), 0) AS paid,
		p.created_at, p.updated_at
	FROM proformas p`

func scanProforma(row pgx.Row) (*Proforma, error) {
	var p Proforma
	var date pgtype.Date
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&p.ID, &p.Kind, &p.Serial, &p.PartyID, &date,
		&p.TotalWeight, &p.TotalAmount, &p.Paid, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if date.Valid {
		p.Date = date.Time
	}
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}
	p.Balance = p.TotalAmount - p.Paid
	return &p, nil
}

// Get loads a proforma with lines, payments and derived balance.
func (r *Repository) Get(ctx context.Context, id int64) (*Proforma, error) {
	p, err := scanProforma(r.pool.QueryRow(ctx, proformaSelect+" WHERE p.id = $1", id))
	if err != nil {
		return nil, err
	}

	lineRows, err := r.pool.Query(ctx,
		"SELECT id, proforma_id, product_id, weight, unit_price, amount FROM proforma_lines WHERE proforma_id = $1 ORDER BY id",
		id,
	)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var line Line
		if err := lineRows.Scan(&line.ID, &line.ProformaID, &line.ProductID, &line.Weight, &line.UnitPrice, &line.Amount); err != nil {
			return nil, err
		}
		p.Lines = append(p.Lines, line)
	}
	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	payRows, err := r.pool.Query(ctx,
		"SELECT id, proforma_id, amount, paid_at, COALESCE(note, '') FROM proforma_payments WHERE proforma_id = $1 ORDER BY id",
		id,
	)
	if err != nil {
		return nil, err
	}
	defer payRows.Close()
	for payRows.Next() {
		var payment Payment
		var paidAt pgtype.Timestamptz
		if err := payRows.Scan(&payment.ID, &payment.ProformaID, &payment.Amount, &paidAt, &payment.Note); err != nil {
			return nil, err
		}
		if paidAt.Valid {
			payment.PaidAt = paidAt.Time
		}
		p.Payments = append(p.Payments, payment)
	}
	if err := payRows.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// List lists proformas by kind, party and date range, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Proforma, error) {
	where := "WHERE TRUE"
	var args []interface{}
	argPos := 1
	if filter.Kind != "" {
		where += fmt.Sprintf(" AND p.kind = $%d", argPos)
		args = append(args, filter.Kind)
		argPos++
	}
	if filter.PartyID != 0 {
		where += fmt.Sprintf(" AND p.party_id = $%d", argPos)
		args = append(args, filter.PartyID)
		argPos++
	}
	if !filter.From.IsZero() {
		where += fmt.Sprintf(" AND p.date >= $%d", argPos)
		args = append(args, filter.From)
		argPos++
	}
	if !filter.To.IsZero() {
		where += fmt.Sprintf(" AND p.date <= $%d", argPos)
		args = append(args, filter.To)
		argPos++
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf("%s %s ORDER BY p.date DESC, p.id DESC LIMIT $%d OFFSET $%d",
		proformaSelect, where, argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Proforma
	for rows.Next() {
		p, err := scanProforma(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// TotalSales sums sales proforma amounts within the date range.
func (r *Repository) TotalSales(ctx context.Context, filter ListFilter) (float64, error) {
	where := "WHERE kind = 'sales'"
	var args []interface{}
	argPos := 1
	if !filter.From.IsZero() {
		where += fmt.Sprintf(" AND date >= $%d", argPos)
		args = append(args, filter.From)
		argPos++
	}
	if !filter.To.IsZero() {
		where += fmt.Sprintf(" AND date <= $%d", argPos)
		args = append(args, filter.To)
		argPos++
	}
	var total float64
	err := r.pool.QueryRow(ctx, "SELECT COALESCE(SUM(total_amount), 0) FROM proformas "+where, args...).Scan(&total)
	return total, err
}

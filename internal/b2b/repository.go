package b2b

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists B2B offers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the service composes.
type TxRepository interface {
	GetOfferForUpdate(ctx context.Context, id int64) (*Offer, error)
	InsertDistribution(ctx context.Context, d Distribution) (int64, error)
	SumShares(ctx context.Context, offerID int64) (float64, error)
	SetStatus(ctx context.Context, offerID int64, status OfferStatus) error
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

const offerSelect = `
	SELECT o.id, o.receipt_id, o.product_id, o.weight, o.unit_price, o.status,
		COALESCE((SELECT SUM(weight) FROM b2b_distributions WHERE offer_id = o.id), 0) AS allocated,
		o.created_at, o.updated_at
	FROM b2b_offers o`

func scanOffer(row pgx.Row) (*Offer, error) {
	var o Offer
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&o.ID, &o.ReceiptID, &o.ProductID, &o.Weight, &o.UnitPrice,
		&o.Status, &o.Allocated, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
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

func (r *txRepo) GetOfferForUpdate(ctx context.Context, id int64) (*Offer, error) {
	return scanOffer(r.q.QueryRow(ctx, offerSelect+" WHERE o.id = $1 FOR UPDATE OF o", id))
}

func (r *txRepo) InsertDistribution(ctx context.Context, d Distribution) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO b2b_distributions (offer_id, customer_id, weight)
		VALUES ($1, $2, $3)
		RETURNING id`,
		d.OfferID, d.CustomerID, d.Weight,
	).Scan(&id)
	return id, err
}

func (r *txRepo) SumShares(ctx context.Context, offerID int64) (float64, error) {
	var total float64
	err := r.q.QueryRow(ctx,
		"SELECT COALESCE(SUM(weight), 0) FROM b2b_distributions WHERE offer_id = $1", offerID,
	).Scan(&total)
	return total, err
}

func (r *txRepo) SetStatus(ctx context.Context, offerID int64, status OfferStatus) error {
	tag, err := r.q.Exec(ctx,
		"UPDATE b2b_offers SET status = $2, updated_at = NOW() WHERE id = $1", offerID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateOffer inserts a new open offer.
func (r *Repository) CreateOffer(ctx context.Context, o Offer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO b2b_offers (receipt_id, product_id, weight, unit_price, status)
		VALUES ($1, $2, $3, $4, 'open')
		RETURNING id`,
		o.ReceiptID, o.ProductID, o.Weight, o.UnitPrice,
	).Scan(&id)
	return id, err
}

// GetOffer loads one offer with its allocated total.
func (r *Repository) GetOffer(ctx context.Context, id int64) (*Offer, error) {
	return scanOffer(r.pool.QueryRow(ctx, offerSelect+" WHERE o.id = $1", id))
}

// ListOffers lists offers, optionally by status, newest first.
func (r *Repository) ListOffers(ctx context.Context, status OfferStatus, limit, offset int) ([]Offer, error) {
	where := "WHERE TRUE"
	var args []interface{}
	argPos := 1
	if status != "" {
		where += fmt.Sprintf(" AND o.status = $%d", argPos)
		args = append(args, status)
		argPos++
	}
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf("%s %s ORDER BY o.id DESC LIMIT $%d OFFSET $%d", offerSelect, where, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// ListDistributions lists the shares of one offer.
func (r *Repository) ListDistributions(ctx context.Context, offerID int64) ([]Distribution, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, offer_id, customer_id, weight, created_at FROM b2b_distributions WHERE offer_id = $1 ORDER BY id",
		offerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Distribution
	for rows.Next() {
		var d Distribution
		var createdAt pgtype.Timestamptz
		if err := rows.Scan(&d.ID, &d.OfferID, &d.CustomerID, &d.Weight, &createdAt); err != nil {
			return nil, err
		}
		if createdAt.Valid {
			d.CreatedAt = createdAt.Time
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

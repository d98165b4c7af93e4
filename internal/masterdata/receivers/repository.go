package receivers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/shared"
)

var ErrNotFound = errors.New("receiver not found")

type Repository interface {
	Get(ctx context.Context, id int64) (*Receiver, error)
	GetByUniqueID(ctx context.Context, uniqueID string) (*Receiver, error)
	List(ctx context.Context, filters shared.ListFilters) ([]Receiver, int, error)
	Create(ctx context.Context, rec Receiver) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const receiverColumns = "id, name, unique_id, mobile, address, postal_code, created_at, updated_at"

func (r *repository) Get(ctx context.Context, id int64) (*Receiver, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM receivers WHERE id = $1", receiverColumns), id)
	return scanReceiver(row)
}

func (r *repository) GetByUniqueID(ctx context.Context, uniqueID string) (*Receiver, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM receivers WHERE unique_id = $1", receiverColumns), uniqueID)
	return scanReceiver(row)
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Receiver, int, error) {
	where := "WHERE TRUE"
	var args []interface{}
	argPos := 1
	if filters.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR unique_id = $%d)", argPos, argPos+1)
		args = append(args, "%"+filters.Search+"%", filters.Search)
		argPos += 2
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM receivers "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM receivers %s ORDER BY name LIMIT $%d OFFSET $%d",
		receiverColumns, where, argPos, argPos+1)
	args = append(args, filters.PerPage(), filters.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Receiver
	for rows.Next() {
		rec, err := scanReceiver(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *rec)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, rec Receiver) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO receivers (name, unique_id, mobile, address, postal_code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		rec.Name, rec.UniqueID, rec.Mobile, rec.Address, rec.PostalCode,
	).Scan(&id)
	return id, err
}

func scanReceiver(row pgx.Row) (*Receiver, error) {
	var rec Receiver
	var mobile, address, postalCode pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&rec.ID, &rec.Name, &rec.UniqueID, &mobile, &address, &postalCode, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if mobile.Valid {
		rec.Mobile = &mobile.String
	}
	if address.Valid {
		rec.Address = &address.String
	}
	if postalCode.Valid {
		rec.PostalCode = &postalCode.String
	}
	if createdAt.Valid {
		rec.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		rec.UpdatedAt = updatedAt.Time
	}
	return &rec, nil
}

package suppliers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/shared"
)

var ErrNotFound = errors.New("supplier not found")

type Repository interface {
	Get(ctx context.Context, id int64) (*Supplier, error)
	List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error)
	Create(ctx context.Context, s Supplier) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const supplierColumns = "id, name, national_id, mobile, address, is_active, created_at, updated_at"

func (r *repository) Get(ctx context.Context, id int64) (*Supplier, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM suppliers WHERE id = $1", supplierColumns), id)
	return scanSupplier(row)
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	where := "WHERE TRUE"
	var args []interface{}
	argPos := 1
	if filters.Search != "" {
		where += fmt.Sprintf(" AND name ILIKE $%d", argPos)
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}
	if filters.IsActive != nil {
		where += fmt.Sprintf(" AND is_active = $%d", argPos)
		args = append(args, *filters.IsActive)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM suppliers "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM suppliers %s ORDER BY name LIMIT $%d OFFSET $%d",
		supplierColumns, where, argPos, argPos+1)
	args = append(args, filters.PerPage(), filters.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, s Supplier) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO suppliers (name, national_id, mobile, address, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id`,
		s.Name, s.NationalID, s.Mobile, s.Address,
	).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	query := "UPDATE suppliers SET updated_at = NOW()"
	var args []interface{}
	argPos := 1
	for _, col := range []string{"name", "national_id", "mobile", "address", "is_active"} {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}
	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)
	_, err := r.pool.Exec(ctx, query, args...)
	return err
}

func scanSupplier(row pgx.Row) (*Supplier, error) {
	var s Supplier
	var nationalID, mobile, address pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&s.ID, &s.Name, &nationalID, &mobile, &address, &s.IsActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if nationalID.Valid {
		s.NationalID = &nationalID.String
	}
	if mobile.Valid {
		s.Mobile = &mobile.String
	}
	if address.Valid {
		s.Address = &address.String
	}
	if createdAt.Valid {
		s.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		s.UpdatedAt = updatedAt.Time
	}
	return &s, nil
}

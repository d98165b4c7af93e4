package warehouses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/shared"
)

var ErrNotFound = errors.New("warehouse not found")

type Repository interface {
	Get(ctx context.Context, id int64) (*Warehouse, error)
	GetByName(ctx context.Context, name string) (*Warehouse, error)
	List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error)
	Create(ctx context.Context, wh Warehouse) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const warehouseColumns = "id, code, name, city, address, is_active, created_at, updated_at"

func (r *repository) Get(ctx context.Context, id int64) (*Warehouse, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM warehouses WHERE id = $1", warehouseColumns), id)
	return scanWarehouse(row)
}

func (r *repository) GetByName(ctx context.Context, name string) (*Warehouse, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM warehouses WHERE name = $1", warehouseColumns), name)
	return scanWarehouse(row)
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error) {
	where := "WHERE TRUE"
	var args []interface{}
	argPos := 1
	if filters.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR code ILIKE $%d)", argPos, argPos)
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}
	if filters.IsActive != nil {
		where += fmt.Sprintf(" AND is_active = $%d", argPos)
		args = append(args, *filters.IsActive)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM warehouses "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM warehouses %s ORDER BY code LIMIT $%d OFFSET $%d",
		warehouseColumns, where, argPos, argPos+1)
	args = append(args, filters.PerPage(), filters.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Warehouse
	for rows.Next() {
		wh, err := scanWarehouse(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *wh)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, wh Warehouse) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO warehouses (code, name, city, address, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id`,
		wh.Code, wh.Name, wh.City, wh.Address,
	).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	query := "UPDATE warehouses SET updated_at = NOW()"
	var args []interface{}
	argPos := 1
	for _, col := range []string{"code", "name", "city", "address", "is_active"} {
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

func scanWarehouse(row pgx.Row) (*Warehouse, error) {
	var wh Warehouse
	var city, address pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&wh.ID, &wh.Code, &wh.Name, &city, &address, &wh.IsActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if city.Valid {
		wh.City = &city.String
	}
	if address.Valid {
		wh.Address = &address.String
	}
	if createdAt.Valid {
		wh.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		wh.UpdatedAt = updatedAt.Time
	}
	return &wh, nil
}

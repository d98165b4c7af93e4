package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/shared"
)

var ErrNotFound = errors.New("product not found")

type Repository interface {
	Get(ctx context.Context, id int64) (*Product, error)
	GetByCode(ctx context.Context, code string) (*Product, error)
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Create(ctx context.Context, p Product) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, title string) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const productSelect = `
	SELECT p.id, p.code, p.title, p.category_id, c.title, p.unit, p.is_active, p.created_at, p.updated_at
	FROM products p
	LEFT JOIN product_categories c ON p.category_id = c.id`

func (r *repository) Get(ctx context.Context, id int64) (*Product, error) {
	row := r.pool.QueryRow(ctx, productSelect+" WHERE p.id = $1", id)
	return scanProduct(row)
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Product, error) {
	row := r.pool.QueryRow(ctx, productSelect+" WHERE p.code = $1", code)
	return scanProduct(row)
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	where := "WHERE TRUE"
	var args []interface{}
	argPos := 1
	if filters.Search != "" {
		where += fmt.Sprintf(" AND (p.title ILIKE $%d OR p.code ILIKE $%d)", argPos, argPos)
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}
	if filters.IsActive != nil {
		where += fmt.Sprintf(" AND p.is_active = $%d", argPos)
		args = append(args, *filters.IsActive)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products p "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("%s %s ORDER BY p.code LIMIT $%d OFFSET $%d", productSelect, where, argPos, argPos+1)
	args = append(args, filters.PerPage(), filters.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, p Product) (int64, error) {
	unit := p.Unit
	if unit == "" {
		unit = "kg"
	}
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (code, title, category_id, unit, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id`,
		p.Code, p.Title, p.CategoryID, unit,
	).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	query := "UPDATE products SET updated_at = NOW()"
	var args []interface{}
	argPos := 1
	for _, col := range []string{"title", "category_id", "unit", "is_active"} {
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

func (r *repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, title FROM product_categories ORDER BY title")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Title); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) CreateCategory(ctx context.Context, title string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, "INSERT INTO product_categories (title) VALUES ($1) RETURNING id", title).Scan(&id)
	return id, err
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var categoryID pgtype.Int8
	var categoryTitle pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&p.ID, &p.Code, &p.Title, &categoryID, &categoryTitle, &p.Unit, &p.IsActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if categoryID.Valid {
		p.CategoryID = &categoryID.Int64
	}
	if categoryTitle.Valid {
		p.CategoryTitle = &categoryTitle.String
	}
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}
	return &p, nil
}

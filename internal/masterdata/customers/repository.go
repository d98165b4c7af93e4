package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/shared"
)

var ErrNotFound = errors.New("customer not found")

type Repository interface {
	Get(ctx context.Context, id int64) (*Customer, error)
	GetByPersonalCode(ctx context.Context, code string) (*Customer, error)
	GetByNationalID(ctx context.Context, nationalID string) (*Customer, error)
	List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error)
	Create(ctx context.Context, c Customer) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	AppendTag(ctx context.Context, id int64, tag string) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const customerColumns = `id, name, personal_code, national_id, economic_code, mobile, phone,
       address, postal_code, account_number, tags, is_active, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Customer, error) {
	return r.getWhere(ctx, "id = $1", id)
}

func (r *repository) GetByPersonalCode(ctx context.Context, code string) (*Customer, error) {
	return r.getWhere(ctx, "personal_code = $1", code)
}

func (r *repository) GetByNationalID(ctx context.Context, nationalID string) (*Customer, error) {
	return r.getWhere(ctx, "national_id = $1", nationalID)
}

func (r *repository) getWhere(ctx context.Context, cond string, arg any) (*Customer, error) {
	query := fmt.Sprintf("SELECT %s FROM customers WHERE %s", customerColumns, cond)
	row := r.pool.QueryRow(ctx, query, arg)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR personal_code = $%d OR national_id = $%d OR mobile ILIKE $%d)", argPos, argPos+1, argPos+1, argPos))
		args = append(args, "%"+filters.Search+"%", filters.Search)
		argPos += 2
	}
	if filters.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *filters.IsActive)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM customers %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM customers %s ORDER BY name LIMIT $%d OFFSET $%d",
		customerColumns, whereClause, argPos, argPos+1)
	args = append(args, filters.PerPage(), filters.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, c Customer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO customers (name, personal_code, national_id, economic_code, mobile, phone,
		                       address, postal_code, account_number, tags, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		c.Name, textOrNil(c.PersonalCode), textOrNil(c.NationalID), textOrNil(c.EconomicCode),
		textOrNil(c.Mobile), textOrNil(c.Phone), textOrNil(c.Address), textOrNil(c.PostalCode),
		textOrNil(c.AccountNumber), c.Tags, c.IsActive,
	).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	query := "UPDATE customers SET updated_at = NOW()"
	var args []interface{}
	argPos := 1
	for _, col := range []string{"name", "economic_code", "mobile", "phone", "address", "postal_code", "account_number", "is_active"} {
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

func (r *repository) AppendTag(ctx context.Context, id int64, tag string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE customers SET tags = array_append(tags, $2), updated_at = NOW()
		 WHERE id = $1 AND NOT ($2 = ANY(tags))`, id, tag)
	return err
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	var personalCode, nationalID, economicCode, mobile, phone, address, postalCode, accountNumber pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz

	err := row.Scan(
		&c.ID, &c.Name, &personalCode, &nationalID, &economicCode, &mobile, &phone,
		&address, &postalCode, &accountNumber, &c.Tags, &c.IsActive, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.PersonalCode = textPtr(personalCode)
	c.NationalID = textPtr(nationalID)
	c.EconomicCode = textPtr(economicCode)
	c.Mobile = textPtr(mobile)
	c.Phone = textPtr(phone)
	c.Address = textPtr(address)
	c.PostalCode = textPtr(postalCode)
	c.AccountNumber = textPtr(accountNumber)
	if createdAt.Valid {
		c.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		c.UpdatedAt = updatedAt.Time
	}
	return &c, nil
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	val := t.String
	return &val
}

func textOrNil(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

package customers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/shared"
)

type memoryCustomers struct {
	byID   map[int64]Customer
	nextID int64
}

func newMemoryCustomers() *memoryCustomers {
	return &memoryCustomers{byID: make(map[int64]Customer)}
}

func (m *memoryCustomers) Get(ctx context.Context, id int64) (*Customer, error) {
	if c, ok := m.byID[id]; ok {
		return &c, nil
	}
	return nil, ErrNotFound
}

func (m *memoryCustomers) GetByPersonalCode(ctx context.Context, code string) (*Customer, error) {
	for _, c := range m.byID {
		if c.PersonalCode != nil && *c.PersonalCode == code {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryCustomers) GetByNationalID(ctx context.Context, nationalID string) (*Customer, error) {
	for _, c := range m.byID {
		if c.NationalID != nil && *c.NationalID == nationalID {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryCustomers) List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error) {
	var out []Customer
	for _, c := range m.byID {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *memoryCustomers) Create(ctx context.Context, c Customer) (int64, error) {
	m.nextID++
	c.ID = m.nextID
	m.byID[c.ID] = c
	return c.ID, nil
}

func (m *memoryCustomers) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	c, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := updates["name"]; ok {
		c.Name = v.(string)
	}
	if v, ok := updates["is_active"]; ok {
		c.IsActive = v.(bool)
	}
	m.byID[id] = c
	return nil
}

func (m *memoryCustomers) AppendTag(ctx context.Context, id int64, tag string) error {
	c, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if !c.HasTag(tag) {
		c.Tags = append(c.Tags, tag)
		m.byID[id] = c
	}
	return nil
}

func strPtr(s string) *string { return &s }

func TestCreateNormalizesIdentifiers(t *testing.T) {
	svc := NewService(newMemoryCustomers())
	ctx := context.Background()

	c, err := svc.Create(ctx, Customer{
		Name:         "Golbarg Trading",
		PersonalCode: strPtr("۰۰۱۲۳۴۵۶۷۸"),
		Mobile:       strPtr("0912-345-6789"),
	})
	require.NoError(t, err)
	require.NotNil(t, c.PersonalCode)
	require.Equal(t, "0012345678", *c.PersonalCode)
	require.Equal(t, "09123456789", *c.Mobile)
	require.True(t, c.IsActive)
	require.NotNil(t, c.Tags)
}

func TestCreateRejectsBadIdentifiers(t *testing.T) {
	svc := NewService(newMemoryCustomers())
	ctx := context.Background()

	_, err := svc.Create(ctx, Customer{PersonalCode: strPtr("0012345678")})
	require.Error(t, err)

	_, err = svc.Create(ctx, Customer{Name: "Short Code", PersonalCode: strPtr("12345")})
	require.ErrorContains(t, err, "personal code")

	_, err = svc.Create(ctx, Customer{Name: "Short NID", NationalID: strPtr("123456")})
	require.ErrorContains(t, err, "national id")
}

func TestLookupByIdentifier(t *testing.T) {
	repo := newMemoryCustomers()
	svc := NewService(repo)
	ctx := context.Background()

	person, err := svc.Create(ctx, Customer{Name: "Person", PersonalCode: strPtr("0012345678")})
	require.NoError(t, err)
	entity, err := svc.Create(ctx, Customer{Name: "Entity", NationalID: strPtr("10123456789")})
	require.NoError(t, err)

	got, err := repo.GetByPersonalCode(ctx, "0012345678")
	require.NoError(t, err)
	require.Equal(t, person.ID, got.ID)

	got, err = repo.GetByNationalID(ctx, "10123456789")
	require.NoError(t, err)
	require.Equal(t, entity.ID, got.ID)

	_, err = repo.GetByPersonalCode(ctx, "9999999999")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByNationalID(ctx, "99999999999")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAppendTagIsIdempotent(t *testing.T) {
	repo := newMemoryCustomers()
	svc := NewService(repo)
	ctx := context.Background()

	c, err := svc.Create(ctx, Customer{Name: "Buyer"})
	require.NoError(t, err)

	require.NoError(t, repo.AppendTag(ctx, c.ID, TagMarketplace))
	require.NoError(t, repo.AppendTag(ctx, c.ID, TagMarketplace))

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, []string{TagMarketplace}, got.Tags)
	require.True(t, got.HasTag(TagMarketplace))
}

func TestUpdateChecksExistence(t *testing.T) {
	repo := newMemoryCustomers()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Update(ctx, 42, map[string]interface{}{"name": "Nobody"})
	require.ErrorIs(t, err, ErrNotFound)

	c, err := svc.Create(ctx, Customer{Name: "Before"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, c.ID, map[string]interface{}{"name": "After", "is_active": false})
	require.NoError(t, err)
	require.Equal(t, "After", updated.Name)
	require.False(t, updated.IsActive)
}

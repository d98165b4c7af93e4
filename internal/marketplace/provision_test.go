package marketplace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/customers"
)

func TestProvisioningCreatesPersonByPersonalCode(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	input := purchaseInput(sale.ID, "B-1", 100)
	input.NationalID = "0012345678"
	input.Mobile = "09121234567"
	p, err := f.svc.CreatePurchase(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, p.CustomerID)

	created, err := f.customers.GetByPersonalCode(ctx, "0012345678")
	require.NoError(t, err)
	require.Equal(t, *p.CustomerID, created.ID)
	require.Equal(t, input.BuyerName, created.Name)
	require.True(t, created.HasTag(customers.TagMarketplace))
}

func TestProvisioningCreatesCompanyByNationalID(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	input := purchaseInput(sale.ID, "B-1", 100)
	input.NationalID = "10861234567"
	p, err := f.svc.CreatePurchase(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, p.CustomerID)

	created, err := f.customers.GetByNationalID(ctx, "10861234567")
	require.NoError(t, err)
	require.Equal(t, *p.CustomerID, created.ID)
}

func TestProvisioningSkipsOtherLengths(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	for i, id := range []string{"", "123", "123456789012"} {
		input := purchaseInput(sale.ID, string(rune('A'+i)), 10)
		input.NationalID = id
		p, err := f.svc.CreatePurchase(ctx, input)
		require.NoError(t, err)
		require.Nil(t, p.CustomerID)
	}
	require.Empty(t, f.customers.byPersonalCode)
	require.Empty(t, f.customers.byNationalID)
}

func TestProvisioningTagsExistingCustomer(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	code := "0012345678"
	existingID, err := f.customers.Create(ctx, customers.Customer{
		Name: "Existing Buyer", PersonalCode: &code, IsActive: true,
	})
	require.NoError(t, err)

	input := purchaseInput(sale.ID, "B-1", 100)
	input.NationalID = code
	p, err := f.svc.CreatePurchase(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, p.CustomerID)
	require.Equal(t, existingID, *p.CustomerID)

	existing, err := f.customers.GetByPersonalCode(ctx, code)
	require.NoError(t, err)
	require.True(t, existing.HasTag(customers.TagMarketplace))
}

func TestProvisioningNormalizesPersianDigits(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	input := purchaseInput(sale.ID, "B-1", 100)
	input.NationalID = "۰۰۱۲۳۴۵۶۷۸"
	p, err := f.svc.CreatePurchase(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, p.CustomerID)
	require.Equal(t, "0012345678", p.NationalID)

	_, err = f.customers.GetByPersonalCode(ctx, "0012345678")
	require.NoError(t, err)
}

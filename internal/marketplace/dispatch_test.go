package marketplace

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ghalla-erp/ghalla-erp/internal/warehouse"
)

// seedDispatchAddress builds the full chain behind one pending address:
// receipt, offer, sale, purchase, detail, address.
func seedDispatchAddress(t *testing.T, f *fixture, cottage string, warehouseID int64, weight float64) int64 {
	return seedDispatchAddressProduct(t, f, cottage, warehouseID, 42, weight)
}

func seedDispatchAddressProduct(t *testing.T, f *fixture, cottage string, warehouseID, productID int64, weight float64) int64 {
	t.Helper()
	ctx := context.Background()

	f.repo.nextID++
	receiptID := f.repo.nextID
	f.repo.receipts[receiptID] = warehouse.Receipt{
		ID: receiptID, Type: warehouse.ReceiptTypeCottage, CottageNumber: &cottage,
		WarehouseID: warehouseID, ProductID: productID, InitialWeight: 10000,
	}
	offer, err := f.svc.CreateOffer(ctx, OfferInput{
		OfferNumber: fmt.Sprintf("OF-%d", receiptID), ReceiptID: receiptID,
		Weight: 10000, UnitPrice: 20000, Type: OfferTypeCash,
	})
	require.NoError(t, err)
	for _, status := range []OfferStatus{OfferStatusPending, OfferStatusActive} {
		offer, err = f.svc.TransitionOffer(ctx, offer.ID, status, 0)
		require.NoError(t, err)
	}
	sale, err := f.svc.CreateSale(ctx, offer.ID, 0)
	require.NoError(t, err)

	input := purchaseInput(sale.ID, fmt.Sprintf("B-%d", receiptID), weight)
	input.CottageNumber = cottage
	p, err := f.svc.CreatePurchase(ctx, input)
	require.NoError(t, err)
	detail, err := f.repo.GetDetailByPurchase(ctx, p.ID)
	require.NoError(t, err)

	var addressID int64
	err = f.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertAddress(ctx, DeliveryAddress{
			DetailID:         detail.ID,
			AssignmentNumber: fmt.Sprintf("HV-%d", receiptID),
			RecipientName:    "Recipient",
			RecipientMobile:  "09120000000",
			Address:          "Tehran",
			OrderWeight:      weight,
			Status:           AddressStatusPending,
		})
		addressID = id
		return err
	})
	require.NoError(t, err)
	return addressID
}

// seedSiblingAddress adds another pending address to the detail behind an
// already seeded address, so both belong to the same offer.
func seedSiblingAddress(t *testing.T, f *fixture, addressID int64, assignment string, weight float64) int64 {
	t.Helper()
	detailID := f.repo.addresses[addressID].DetailID

	var siblingID int64
	err := f.repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertAddress(ctx, DeliveryAddress{
			DetailID:         detailID,
			AssignmentNumber: assignment,
			RecipientName:    "Recipient",
			RecipientMobile:  "09120000000",
			Address:          "Tehran",
			OrderWeight:      weight,
			Status:           AddressStatusPending,
		})
		siblingID = id
		return err
	})
	require.NoError(t, err)
	return siblingID
}

func TestDispatchGroupsByOffer(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()

	a1 := seedDispatchAddress(t, f, "900123", 1, 100)
	a2 := seedSiblingAddress(t, f, a1, "HV-SIB", 150)
	a3 := seedDispatchAddress(t, f, "900125", 2, 200)

	orders, err := f.svc.Dispatch(ctx, []int64{a1, a2, a3}, 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	byWarehouse := make(map[int64]DispatchedOrder)
	for _, o := range orders {
		byWarehouse[o.WarehouseID] = o
	}
	require.InDelta(t, 250, byWarehouse[1].TotalWeight, 0.0001)
	require.Equal(t, 2, byWarehouse[1].Addresses)
	require.InDelta(t, 200, byWarehouse[2].TotalWeight, 0.0001)
	require.Equal(t, 1, byWarehouse[2].Addresses)

	require.Len(t, f.repo.orders, 2)
	require.Len(t, f.repo.orderLines, 2)
	require.Len(t, f.repo.orderReceivers, 3)
}

func TestDispatchSplitsOffersInOneWarehouse(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()

	a1 := seedDispatchAddressProduct(t, f, "900123", 1, 42, 100)
	a2 := seedSiblingAddress(t, f, a1, "HV-SIB", 150)
	a3 := seedDispatchAddressProduct(t, f, "900125", 1, 43, 200)

	orders, err := f.svc.Dispatch(ctx, []int64{a1, a2, a3}, 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, o := range orders {
		require.Equal(t, int64(1), o.WarehouseID)
	}

	weightByProduct := make(map[int64]float64)
	for _, line := range f.repo.orderLines {
		weightByProduct[line.ProductID] += line.Weight
	}
	require.InDelta(t, 250, weightByProduct[42], 0.0001)
	require.InDelta(t, 200, weightByProduct[43], 0.0001)
	require.Len(t, f.repo.orderLines, 2)
	require.Len(t, f.repo.orderReceivers, 3)
}

func TestDispatchMarksAddresses(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()

	a1 := seedDispatchAddress(t, f, "900123", 1, 100)

	orders, err := f.svc.Dispatch(ctx, []int64{a1}, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	addr := f.repo.addresses[a1]
	require.Equal(t, AddressStatusDeliveryCreated, addr.Status)
	require.Equal(t, orders[0].OrderNumber, addr.OrderNumber)
}

func TestDispatchSkipsNonPending(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()

	a1 := seedDispatchAddress(t, f, "900123", 1, 100)
	a2 := seedDispatchAddress(t, f, "900124", 1, 150)

	addr := f.repo.addresses[a2]
	addr.Status = AddressStatusDeliveryCreated
	f.repo.addresses[a2] = addr

	orders, err := f.svc.Dispatch(ctx, []int64{a1, a2}, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, 1, orders[0].Addresses)
	require.InDelta(t, 100, orders[0].TotalWeight, 0.0001)
}

func TestDispatchRejectsEmptySelection(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()

	_, err := f.svc.Dispatch(ctx, nil, 0)
	require.Error(t, err)

	a1 := seedDispatchAddress(t, f, "900123", 1, 100)
	_, err = f.svc.Dispatch(ctx, []int64{a1}, 0)
	require.NoError(t, err)

	_, err = f.svc.Dispatch(ctx, []int64{a1}, 0)
	require.Error(t, err)
}

func TestAddressLifecycleAfterDispatch(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()

	a1 := seedDispatchAddress(t, f, "900123", 1, 100)

	_, err := f.svc.UpdateAddressStatus(ctx, a1, AddressStatusCompleted, 0)
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.Dispatch(ctx, []int64{a1}, 0)
	require.NoError(t, err)

	addr, err := f.svc.UpdateAddressStatus(ctx, a1, AddressStatusSentToDelivery, 0)
	require.NoError(t, err)
	require.Equal(t, AddressStatusSentToDelivery, addr.Status)

	addr, err = f.svc.UpdateAddressStatus(ctx, a1, AddressStatusCompleted, 0)
	require.NoError(t, err)
	require.Equal(t, AddressStatusCompleted, addr.Status)

	_, err = f.svc.UpdateAddressStatus(ctx, a1, AddressStatusPending, 0)
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.UpdateAddressStatus(ctx, 99999, AddressStatusCompleted, 0)
	require.ErrorIs(t, err, ErrAddressNotFound)
}

func TestDispatchReusesSyntheticCustomer(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()

	a1 := seedDispatchAddress(t, f, "900123", 1, 100)
	a2 := seedDispatchAddress(t, f, "900124", 2, 150)

	_, err := f.svc.Dispatch(ctx, []int64{a1}, 0)
	require.NoError(t, err)
	_, err = f.svc.Dispatch(ctx, []int64{a2}, 0)
	require.NoError(t, err)

	require.Len(t, f.repo.dispatchCustomers, 1)
	_, ok := f.repo.dispatchCustomers[DispatchCustomerNationalID]
	require.True(t, ok)
}

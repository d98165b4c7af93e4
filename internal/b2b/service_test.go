package b2b

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ghalla-erp/ghalla-erp/internal/warehouse"
)

type memoryRepo struct {
	offers        map[int64]Offer
	distributions map[int64]Distribution
	nextID        int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{offers: make(map[int64]Offer), distributions: make(map[int64]Distribution)}
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) CreateOffer(ctx context.Context, o Offer) (int64, error) {
	r.nextID++
	o.ID = r.nextID
	o.Status = OfferStatusOpen
	r.offers[o.ID] = o
	return o.ID, nil
}

func (r *memoryRepo) GetOffer(ctx context.Context, id int64) (*Offer, error) {
	o, ok := r.offers[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, d := range r.distributions {
		if d.OfferID == id {
			o.Allocated += d.Weight
		}
	}
	return &o, nil
}

func (r *memoryRepo) ListOffers(ctx context.Context, status OfferStatus, limit, offset int) ([]Offer, error) {
	var out []Offer
	for _, o := range r.offers {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListDistributions(ctx context.Context, offerID int64) ([]Distribution, error) {
	var out []Distribution
	for _, d := range r.distributions {
		if d.OfferID == offerID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetOfferForUpdate(ctx context.Context, id int64) (*Offer, error) {
	o, ok := tx.repo.offers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (tx *memoryTx) InsertDistribution(ctx context.Context, d Distribution) (int64, error) {
	tx.repo.nextID++
	d.ID = tx.repo.nextID
	tx.repo.distributions[d.ID] = d
	return d.ID, nil
}

func (tx *memoryTx) SumShares(ctx context.Context, offerID int64) (float64, error) {
	var total float64
	for _, d := range tx.repo.distributions {
		if d.OfferID == offerID {
			total += d.Weight
		}
	}
	return total, nil
}

func (tx *memoryTx) SetStatus(ctx context.Context, offerID int64, status OfferStatus) error {
	o, ok := tx.repo.offers[offerID]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	tx.repo.offers[offerID] = o
	return nil
}

type memoryReceipts struct {
	receipts map[int64]warehouse.Receipt
}

func (r *memoryReceipts) GetReceipt(ctx context.Context, id int64) (*warehouse.Receipt, error) {
	rec, ok := r.receipts[id]
	if !ok {
		return nil, warehouse.ErrReceiptNotFound
	}
	return &rec, nil
}

func cottageReceipts() *memoryReceipts {
	cottage := "900123"
	return &memoryReceipts{receipts: map[int64]warehouse.Receipt{
		1: {ID: 1, Type: warehouse.ReceiptTypeCottage, CottageNumber: &cottage, ProductID: 5, InitialWeight: 1000},
		2: {ID: 2, Type: warehouse.ReceiptTypeDomestic, ProductID: 5, InitialWeight: 1000},
	}}
}

func TestDistributionGuard(t *testing.T) {
	svc := NewService(newMemoryRepo(), cottageReceipts(), nil)
	ctx := context.Background()

	offer, err := svc.CreateOffer(ctx, OfferInput{ReceiptID: 1, Weight: 600, UnitPrice: 20000})
	require.NoError(t, err)

	_, err = svc.Distribute(ctx, offer.ID, 10, 400)
	require.NoError(t, err)
	_, err = svc.Distribute(ctx, offer.ID, 11, 200)
	require.NoError(t, err)

	_, err = svc.Distribute(ctx, offer.ID, 12, 1)
	require.ErrorIs(t, err, ErrOverAllocate)

	got, err := svc.GetOffer(ctx, offer.ID)
	require.NoError(t, err)
	require.InDelta(t, 600, got.Allocated, 0.0001)
}

func TestOfferRequiresCottageReceipt(t *testing.T) {
	svc := NewService(newMemoryRepo(), cottageReceipts(), nil)

	_, err := svc.CreateOffer(context.Background(), OfferInput{ReceiptID: 2, Weight: 100, UnitPrice: 1000})
	require.Error(t, err)
}

func TestClosedOfferRejectsShares(t *testing.T) {
	svc := NewService(newMemoryRepo(), cottageReceipts(), nil)
	ctx := context.Background()

	offer, err := svc.CreateOffer(ctx, OfferInput{ReceiptID: 1, Weight: 500, UnitPrice: 20000})
	require.NoError(t, err)

	closed, err := svc.Close(ctx, offer.ID, 0)
	require.NoError(t, err)
	require.Equal(t, OfferStatusClosed, closed.Status)

	_, err = svc.Distribute(ctx, offer.ID, 10, 100)
	require.ErrorIs(t, err, ErrOfferClosed)
}

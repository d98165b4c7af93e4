package marketplace

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/customers"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/products"
	"github.com/ghalla-erp/ghalla-erp/internal/warehouse"
)

type memoryRepo struct {
	offers    map[int64]ProductOffer
	sales     map[int64]Sale
	purchases map[int64]Purchase
	details   map[int64]PurchaseDetail
	addresses map[int64]DeliveryAddress

	dispatchCustomers map[string]int64
	proformas         map[int64]string
	orders            map[int64]dispatchOrder
	orderLines        []dispatchLine
	orderReceivers    []dispatchReceiver

	receipts map[int64]warehouse.Receipt

	nextID int64

	failRecompute bool
}

type dispatchOrder struct {
	Number      string
	WarehouseID int64
	CustomerID  int64
	ProformaID  int64
}

type dispatchLine struct {
	OrderID   int64
	ProductID int64
	Weight    float64
}

type dispatchReceiver struct {
	OrderID  int64
	Name     string
	UniqueID string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		offers:            make(map[int64]ProductOffer),
		sales:             make(map[int64]Sale),
		purchases:         make(map[int64]Purchase),
		details:           make(map[int64]PurchaseDetail),
		addresses:         make(map[int64]DeliveryAddress),
		dispatchCustomers: make(map[string]int64),
		proformas:         make(map[int64]string),
		orders:            make(map[int64]dispatchOrder),
		receipts:          make(map[int64]warehouse.Receipt),
	}
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetOffer(ctx context.Context, id int64) (*ProductOffer, error) {
	o, ok := r.offers[id]
	if !ok {
		return nil, ErrOfferNotFound
	}
	return &o, nil
}

func (r *memoryRepo) GetOfferByNumber(ctx context.Context, number string) (*ProductOffer, error) {
	for _, o := range r.offers {
		if o.OfferNumber == number {
			return &o, nil
		}
	}
	return nil, ErrOfferNotFound
}

func (r *memoryRepo) ListOffers(ctx context.Context, status OfferStatus, limit, offset int) ([]ProductOffer, error) {
	var out []ProductOffer
	for _, o := range r.offers {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memoryRepo) OfferHasSale(ctx context.Context, offerID int64) (bool, error) {
	for _, s := range r.sales {
		if s.OfferID == offerID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) GetSale(ctx context.Context, id int64) (*Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return nil, ErrSaleNotFound
	}
	return &s, nil
}

func (r *memoryRepo) ListSales(ctx context.Context, limit, offset int) ([]Sale, error) {
	var out []Sale
	for _, s := range r.sales {
		out = append(out, s)
	}
	return out, nil
}

func (r *memoryRepo) GetPurchase(ctx context.Context, id int64) (*Purchase, error) {
	p, ok := r.purchases[id]
	if !ok {
		return nil, ErrPurchaseNotFound
	}
	return &p, nil
}

func (r *memoryRepo) ListPurchases(ctx context.Context, saleID int64) ([]Purchase, error) {
	var out []Purchase
	for _, p := range r.purchases {
		if p.SaleID == saleID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetDetailByPurchase(ctx context.Context, purchaseID int64) (*PurchaseDetail, error) {
	for _, d := range r.details {
		if d.PurchaseID == purchaseID {
			return &d, nil
		}
	}
	return nil, ErrPurchaseNotFound
}

func (r *memoryRepo) ListAddressesByDetail(ctx context.Context, detailID int64) ([]DeliveryAddress, error) {
	var out []DeliveryAddress
	for _, a := range r.addresses {
		if a.DetailID == detailID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetAddress(ctx context.Context, id int64) (*DeliveryAddress, error) {
	a, ok := r.addresses[id]
	if !ok {
		return nil, ErrAddressNotFound
	}
	return &a, nil
}

func (r *memoryRepo) UpdateAddressStatus(ctx context.Context, id int64, status AddressStatus) error {
	a, ok := r.addresses[id]
	if !ok {
		return ErrAddressNotFound
	}
	a.Status = status
	r.addresses[id] = a
	return nil
}

func (r *memoryRepo) ListDispatchRows(ctx context.Context, addressIDs []int64) ([]DispatchRow, error) {
	var out []DispatchRow
	for _, id := range addressIDs {
		a, ok := r.addresses[id]
		if !ok || a.Status != AddressStatusPending {
			continue
		}
		detail := r.details[a.DetailID]
		purchase := r.purchases[detail.PurchaseID]
		sale := r.sales[purchase.SaleID]
		offer := r.offers[sale.OfferID]
		receipt := r.receipts[offer.ReceiptID]
		out = append(out, DispatchRow{
			Address:     a,
			WarehouseID: receipt.WarehouseID,
			ProductID:   receipt.ProductID,
			OfferNumber: offer.OfferNumber,
		})
	}
	return out, nil
}

func (r *memoryRepo) GetSaleSummary(ctx context.Context, saleID int64) (*SaleSummary, error) {
	s, ok := r.sales[saleID]
	if !ok {
		return nil, ErrSaleNotFound
	}
	count := 0
	for _, p := range r.purchases {
		if p.SaleID == saleID {
			count++
		}
	}
	return &SaleSummary{
		SaleID:                   s.ID,
		CottageNumber:            s.CottageNumber,
		ProductTitle:             s.ProductTitle,
		TotalOfferWeight:         s.TotalOfferWeight,
		SoldBeforeTransport:      s.SoldBeforeTransport,
		RemainingBeforeTransport: s.RemainingBeforeTransport,
		PurchaseCount:            count,
	}, nil
}

func (r *memoryRepo) ListSaleIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for id := range r.sales {
		ids = append(ids, id)
	}
	return ids, nil
}

func (tx *memoryTx) InsertOffer(ctx context.Context, offer ProductOffer) (int64, error) {
	tx.repo.nextID++
	offer.ID = tx.repo.nextID
	offer.TotalPrice = offer.Weight * offer.UnitPrice
	tx.repo.offers[offer.ID] = offer
	return offer.ID, nil
}

func (tx *memoryTx) UpdateOffer(ctx context.Context, id int64, updates map[string]interface{}) error {
	o, ok := tx.repo.offers[id]
	if !ok {
		return ErrOfferNotFound
	}
	if v, ok := updates["weight"]; ok {
		o.Weight = v.(float64)
	}
	if v, ok := updates["unit_price"]; ok {
		o.UnitPrice = v.(float64)
	}
	o.TotalPrice = o.Weight * o.UnitPrice
	tx.repo.offers[id] = o
	return nil
}

func (tx *memoryTx) SetOfferStatus(ctx context.Context, id int64, status OfferStatus) error {
	o, ok := tx.repo.offers[id]
	if !ok {
		return ErrOfferNotFound
	}
	o.Status = status
	tx.repo.offers[id] = o
	return nil
}

func (tx *memoryTx) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	tx.repo.nextID++
	sale.ID = tx.repo.nextID
	sale.SoldBeforeTransport = 0
	sale.RemainingBeforeTransport = sale.TotalOfferWeight
	sale.RemainingAfterTransport = sale.TotalOfferWeight
	tx.repo.sales[sale.ID] = sale
	return sale.ID, nil
}

func (tx *memoryTx) GetSaleForUpdate(ctx context.Context, id int64) (*Sale, error) {
	s, ok := tx.repo.sales[id]
	if !ok {
		return nil, ErrSaleNotFound
	}
	return &s, nil
}

func (tx *memoryTx) RecomputeSaleWeights(ctx context.Context, saleID int64) error {
	if tx.repo.failRecompute {
		return fmt.Errorf("simulated recompute failure")
	}
	s, ok := tx.repo.sales[saleID]
	if !ok {
		return ErrSaleNotFound
	}
	var sold float64
	for _, p := range tx.repo.purchases {
		if p.SaleID == saleID {
			sold += p.Weight
		}
	}
	s.SoldBeforeTransport = sold
	s.RemainingBeforeTransport = s.TotalOfferWeight - sold
	s.SoldAfterTransport = 0
	s.RemainingAfterTransport = s.TotalOfferWeight
	tx.repo.sales[saleID] = s
	return nil
}

func (tx *memoryTx) PurchaseNumberExists(ctx context.Context, number string) (bool, error) {
	for _, p := range tx.repo.purchases {
		if p.PurchaseNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) InsertPurchase(ctx context.Context, p Purchase) (int64, error) {
	tx.repo.nextID++
	p.ID = tx.repo.nextID
	tx.repo.purchases[p.ID] = p
	return p.ID, nil
}

func (tx *memoryTx) DeletePurchase(ctx context.Context, id int64) (int64, error) {
	p, ok := tx.repo.purchases[id]
	if !ok {
		return 0, ErrPurchaseNotFound
	}
	delete(tx.repo.purchases, id)
	return p.SaleID, nil
}

func (tx *memoryTx) InsertDetail(ctx context.Context, detail PurchaseDetail) (int64, error) {
	tx.repo.nextID++
	detail.ID = tx.repo.nextID
	tx.repo.details[detail.ID] = detail
	return detail.ID, nil
}

func (tx *memoryTx) InsertAddress(ctx context.Context, addr DeliveryAddress) (int64, error) {
	tx.repo.nextID++
	addr.ID = tx.repo.nextID
	tx.repo.addresses[addr.ID] = addr
	return addr.ID, nil
}

func (tx *memoryTx) DeleteAddressesByDetail(ctx context.Context, detailID int64) (int, error) {
	count := 0
	for id, a := range tx.repo.addresses {
		if a.DetailID == detailID {
			delete(tx.repo.addresses, id)
			count++
		}
	}
	return count, nil
}

func (tx *memoryTx) GetOrCreateDispatchCustomer(ctx context.Context, nationalID, name string) (int64, error) {
	if id, ok := tx.repo.dispatchCustomers[nationalID]; ok {
		return id, nil
	}
	tx.repo.nextID++
	tx.repo.dispatchCustomers[nationalID] = tx.repo.nextID
	return tx.repo.nextID, nil
}

func (tx *memoryTx) InsertProformaStub(ctx context.Context, serial string, customerID int64) (int64, error) {
	tx.repo.nextID++
	tx.repo.proformas[tx.repo.nextID] = serial
	return tx.repo.nextID, nil
}

func (tx *memoryTx) NextOrderNumber(ctx context.Context, yymm string) (string, error) {
	prefix := fmt.Sprintf("DO-%s-", yymm)
	count := 0
	for _, o := range tx.repo.orders {
		if len(o.Number) >= len(prefix) && o.Number[:len(prefix)] == prefix {
			count++
		}
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func (tx *memoryTx) InsertOrder(ctx context.Context, number string, warehouseID, customerID, proformaID int64, issueDate time.Time) (int64, error) {
	tx.repo.nextID++
	tx.repo.orders[tx.repo.nextID] = dispatchOrder{
		Number: number, WarehouseID: warehouseID, CustomerID: customerID, ProformaID: proformaID,
	}
	return tx.repo.nextID, nil
}

func (tx *memoryTx) InsertOrderLine(ctx context.Context, orderID, productID int64, weight float64, destination string) (int64, error) {
	tx.repo.nextID++
	tx.repo.orderLines = append(tx.repo.orderLines, dispatchLine{OrderID: orderID, ProductID: productID, Weight: weight})
	return tx.repo.nextID, nil
}

func (tx *memoryTx) InsertOrderReceiver(ctx context.Context, orderID int64, name, uniqueID, mobile, address, postalCode string) error {
	tx.repo.orderReceivers = append(tx.repo.orderReceivers, dispatchReceiver{OrderID: orderID, Name: name, UniqueID: uniqueID})
	return nil
}

func (tx *memoryTx) MarkAddressDispatched(ctx context.Context, addressID int64, orderNumber string) error {
	a, ok := tx.repo.addresses[addressID]
	if !ok {
		return ErrAddressNotFound
	}
	a.Status = AddressStatusDeliveryCreated
	a.OrderNumber = orderNumber
	tx.repo.addresses[addressID] = a
	return nil
}

type memoryCustomers struct {
	byPersonalCode map[string]*customers.Customer
	byNationalID   map[string]*customers.Customer
	nextID         int64
}

func newMemoryCustomers() *memoryCustomers {
	return &memoryCustomers{
		byPersonalCode: make(map[string]*customers.Customer),
		byNationalID:   make(map[string]*customers.Customer),
	}
}

func (m *memoryCustomers) GetByPersonalCode(ctx context.Context, code string) (*customers.Customer, error) {
	if c, ok := m.byPersonalCode[code]; ok {
		return c, nil
	}
	return nil, customers.ErrNotFound
}

func (m *memoryCustomers) GetByNationalID(ctx context.Context, nationalID string) (*customers.Customer, error) {
	if c, ok := m.byNationalID[nationalID]; ok {
		return c, nil
	}
	return nil, customers.ErrNotFound
}

func (m *memoryCustomers) Create(ctx context.Context, c customers.Customer) (int64, error) {
	m.nextID++
	c.ID = m.nextID
	if c.PersonalCode != nil {
		m.byPersonalCode[*c.PersonalCode] = &c
	}
	if c.NationalID != nil {
		m.byNationalID[*c.NationalID] = &c
	}
	return c.ID, nil
}

func (m *memoryCustomers) AppendTag(ctx context.Context, id int64, tag string) error {
	for _, c := range m.byPersonalCode {
		if c.ID == id {
			c.Tags = append(c.Tags, tag)
			return nil
		}
	}
	for _, c := range m.byNationalID {
		if c.ID == id {
			c.Tags = append(c.Tags, tag)
			return nil
		}
	}
	return customers.ErrNotFound
}

type memoryReceipts struct {
	repo *memoryRepo
}

func (m *memoryReceipts) GetReceipt(ctx context.Context, id int64) (*warehouse.Receipt, error) {
	rec, ok := m.repo.receipts[id]
	if !ok {
		return nil, warehouse.ErrReceiptNotFound
	}
	return &rec, nil
}

type memoryProducts struct{}

func (memoryProducts) Get(ctx context.Context, id int64) (*products.Product, error) {
	return &products.Product{ID: id, Code: fmt.Sprintf("P%d", id), Title: "Yellow Corn"}, nil
}

type fixture struct {
	repo      *memoryRepo
	customers *memoryCustomers
	svc       *Service
}

func newFixture(t *testing.T, cfg ServiceConfig) *fixture {
	t.Helper()
	repo := newMemoryRepo()
	custs := newMemoryCustomers()
	svc := NewService(slog.Default(), repo, custs, &memoryReceipts{repo: repo}, memoryProducts{}, nil, nil, nil, cfg)
	return &fixture{repo: repo, customers: custs, svc: svc}
}

// seedSale creates a cottage receipt, an active offer and its sale.
func (f *fixture) seedSale(t *testing.T, weight, unitPrice float64) *Sale {
	t.Helper()
	ctx := context.Background()

	cottage := "900123"
	f.repo.nextID++
	receiptID := f.repo.nextID
	f.repo.receipts[receiptID] = warehouse.Receipt{
		ID: receiptID, Type: warehouse.ReceiptTypeCottage, CottageNumber: &cottage,
		WarehouseID: 1, ProductID: 42, InitialWeight: weight,
	}

	offer, err := f.svc.CreateOffer(ctx, OfferInput{
		OfferNumber: fmt.Sprintf("OF-%d", receiptID), ReceiptID: receiptID,
		Weight: weight, UnitPrice: unitPrice, Type: OfferTypeCash,
	})
	require.NoError(t, err)

	for _, status := range []OfferStatus{OfferStatusPending, OfferStatusActive} {
		offer, err = f.svc.TransitionOffer(ctx, offer.ID, status, 0)
		require.NoError(t, err)
	}

	sale, err := f.svc.CreateSale(ctx, offer.ID, 0)
	require.NoError(t, err)
	return sale
}

func purchaseInput(saleID int64, number string, weight float64) PurchaseInput {
	return PurchaseInput{
		SaleID:         saleID,
		PurchaseNumber: number,
		CottageNumber:  "900123",
		Weight:         weight,
		UnitPrice:      20000,
		BuyerName:      "Buyer " + number,
		Type:           PurchaseTypeCash,
	}
}

func TestOfferDerivedTotal(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	sale := f.seedSale(t, 1000, 20000)

	offer, err := f.svc.GetOffer(context.Background(), sale.OfferID)
	require.NoError(t, err)
	require.InDelta(t, 20_000_000, offer.TotalPrice, 0.0001)
	require.Equal(t, "900123", offer.CottageNumber)
	require.Equal(t, "Yellow Corn", offer.ProductTitle)
}

func TestWeightReconciliationEndToEnd(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	require.InDelta(t, 0, sale.SoldBeforeTransport, 0.0001)
	require.InDelta(t, 1000, sale.RemainingBeforeTransport, 0.0001)

	_, err := f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-1", 300))
	require.NoError(t, err)
	p2, err := f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-2", 200))
	require.NoError(t, err)

	got, err := f.svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.InDelta(t, 500, got.SoldBeforeTransport, 0.0001)
	require.InDelta(t, 500, got.RemainingBeforeTransport, 0.0001)
	require.InDelta(t, 0, got.SoldAfterTransport, 0.0001)

	require.NoError(t, f.svc.DeletePurchase(ctx, p2.ID, 0))

	got, err = f.svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.InDelta(t, 300, got.SoldBeforeTransport, 0.0001)
	require.InDelta(t, 700, got.RemainingBeforeTransport, 0.0001)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	_, err := f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-1", 250))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.RecomputeSaleWeights(ctx, sale.ID))
	}
	got, err := f.svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.InDelta(t, 250, got.SoldBeforeTransport, 0.0001)
	require.InDelta(t, 750, got.RemainingBeforeTransport, 0.0001)
}

func TestOversellRejectedByDefault(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	_, err := f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-1", 900))
	require.NoError(t, err)

	_, err = f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-2", 200))
	require.ErrorIs(t, err, ErrOversell)

	got, err := f.svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.InDelta(t, 900, got.SoldBeforeTransport, 0.0001)
}

func TestOversellAllowedByPolicy(t *testing.T) {
	f := newFixture(t, ServiceConfig{AllowOversell: true})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	_, err := f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-1", 900))
	require.NoError(t, err)
	_, err = f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-2", 200))
	require.NoError(t, err)

	got, err := f.svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.InDelta(t, 1100, got.SoldBeforeTransport, 0.0001)
	require.InDelta(t, -100, got.RemainingBeforeTransport, 0.0001)
}

func TestCottageMismatchRejected(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	sale := f.seedSale(t, 1000, 20000)

	input := purchaseInput(sale.ID, "B-1", 100)
	input.CottageNumber = "999999"
	_, err := f.svc.CreatePurchase(context.Background(), input)
	require.ErrorIs(t, err, ErrCottageMismatch)
}

func TestDuplicatePurchaseNumberRejected(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	_, err := f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-1", 100))
	require.NoError(t, err)
	_, err = f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-1", 100))
	require.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestPurchaseDetailSidecarCreated(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	input := purchaseInput(sale.ID, "B-1", 100)
	input.AgreementNote = "two installments agreed"
	p, err := f.svc.CreatePurchase(ctx, input)
	require.NoError(t, err)

	detail, err := f.repo.GetDetailByPurchase(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "two installments agreed", detail.AgreementDescription)
}

func TestRecomputeFailureDoesNotBlockWrite(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	f.repo.failRecompute = true
	p, err := f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-1", 100))
	require.NoError(t, err)
	require.NotZero(t, p.ID)
}

func TestOfferStatusTransitions(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()

	cottage := "900123"
	f.repo.nextID++
	receiptID := f.repo.nextID
	f.repo.receipts[receiptID] = warehouse.Receipt{
		ID: receiptID, Type: warehouse.ReceiptTypeCottage, CottageNumber: &cottage,
		WarehouseID: 1, ProductID: 1, InitialWeight: 100,
	}
	offer, err := f.svc.CreateOffer(ctx, OfferInput{
		OfferNumber: "OF-X", ReceiptID: receiptID, Weight: 100, UnitPrice: 1000, Type: OfferTypeCash,
	})
	require.NoError(t, err)

	_, err = f.svc.TransitionOffer(ctx, offer.ID, OfferStatusSold, 0)
	require.ErrorIs(t, err, ErrInvalidStatus)

	offer, err = f.svc.TransitionOffer(ctx, offer.ID, OfferStatusCancelled, 0)
	require.NoError(t, err)
	require.Equal(t, OfferStatusCancelled, offer.Status)

	_, err = f.svc.TransitionOffer(ctx, offer.ID, OfferStatusActive, 0)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestLockedOfferRejectsEdits(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	sale := f.seedSale(t, 1000, 20000)

	_, err := f.svc.UpdateOffer(context.Background(), sale.OfferID, map[string]interface{}{"weight": 500.0})
	require.ErrorIs(t, err, ErrOfferLocked)
}

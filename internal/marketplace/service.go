package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ghalla-erp/ghalla-erp/internal/excelx"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/customers"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/products"
	"github.com/ghalla-erp/ghalla-erp/internal/shared"
	"github.com/ghalla-erp/ghalla-erp/internal/warehouse"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOffer(ctx context.Context, id int64) (*ProductOffer, error)
	GetOfferByNumber(ctx context.Context, number string) (*ProductOffer, error)
	ListOffers(ctx context.Context, status OfferStatus, limit, offset int) ([]ProductOffer, error)
	OfferHasSale(ctx context.Context, offerID int64) (bool, error)
	GetSale(ctx context.Context, id int64) (*Sale, error)
	ListSales(ctx context.Context, limit, offset int) ([]Sale, error)
	GetPurchase(ctx context.Context, id int64) (*Purchase, error)
	ListPurchases(ctx context.Context, saleID int64) ([]Purchase, error)
	GetDetailByPurchase(ctx context.Context, purchaseID int64) (*PurchaseDetail, error)
	ListAddressesByDetail(ctx context.Context, detailID int64) ([]DeliveryAddress, error)
	GetAddress(ctx context.Context, id int64) (*DeliveryAddress, error)
	UpdateAddressStatus(ctx context.Context, id int64, status AddressStatus) error
	ListDispatchRows(ctx context.Context, addressIDs []int64) ([]DispatchRow, error)
	GetSaleSummary(ctx context.Context, saleID int64) (*SaleSummary, error)
	ListSaleIDs(ctx context.Context) ([]int64, error)
}

// CustomerPort is the slice of the customer registry used for buyer
// provisioning.
type CustomerPort interface {
	GetByPersonalCode(ctx context.Context, code string) (*customers.Customer, error)
	GetByNationalID(ctx context.Context, nationalID string) (*customers.Customer, error)
	Create(ctx context.Context, c customers.Customer) (int64, error)
	AppendTag(ctx context.Context, id int64, tag string) error
}

// ReceiptPort resolves warehouse receipts backing offers.
type ReceiptPort interface {
	GetReceipt(ctx context.Context, id int64) (*warehouse.Receipt, error)
}

// ProductPort resolves product titles for offer denormalization.
type ProductPort interface {
	Get(ctx context.Context, id int64) (*products.Product, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SummaryInvalidator drops cached sale summaries after weight changes.
type SummaryInvalidator interface {
	Invalidate(ctx context.Context, saleID int64)
}

// MetricsPort records import row and recompute counters.
type MetricsPort interface {
	ObserveImport(kind, outcome string, n int)
	ObserveRecompute()
}

// ServiceConfig groups policy settings.
type ServiceConfig struct {
	// AllowOversell permits purchase inserts that push sold weight past the
	// offer total. Off by default: remaining weight can never go negative.
	AllowOversell bool
}

// Service coordinates the marketplace reconciliation engine.
type Service struct {
	logger        *slog.Logger
	repo          RepositoryPort
	customers     CustomerPort
	receipts      ReceiptPort
	products      ProductPort
	audit         AuditPort
	summaries     SummaryInvalidator
	metrics       MetricsPort
	allowOversell bool
}

func NewService(
	logger *slog.Logger,
	repo RepositoryPort,
	customerRepo CustomerPort,
	receipts ReceiptPort,
	productRepo ProductPort,
	audit AuditPort,
	summaries SummaryInvalidator,
	metrics MetricsPort,
	cfg ServiceConfig,
) *Service {
	return &Service{
		logger:        logger,
		repo:          repo,
		customers:     customerRepo,
		receipts:      receipts,
		products:      productRepo,
		audit:         audit,
		summaries:     summaries,
		metrics:       metrics,
		allowOversell: cfg.AllowOversell,
	}
}

func (s *Service) observeRecompute() {
	if s.metrics != nil {
		s.metrics.ObserveRecompute()
	}
}

func (s *Service) observeImport(kind string, result *ImportResult) {
	if s.metrics != nil {
		s.metrics.ObserveImport(kind, "ok", result.Created)
		s.metrics.ObserveImport(kind, "error", len(result.Errors))
	}
}

// OfferInput carries the fields for a new product offer.
type OfferInput struct {
	OfferNumber string    `json:"offer_number" validate:"required"`
	ReceiptID   int64     `json:"receipt_id" validate:"required"`
	Weight      float64   `json:"weight" validate:"required,gt=0"`
	UnitPrice   float64   `json:"unit_price" validate:"required,gt=0"`
	Type        OfferType `json:"type" validate:"required,oneof=cash agreement"`
	ActorID     int64     `json:"-"`
}

// CreateOffer lists a lot. The backing receipt must be a cottage receipt; the
// cottage number and product title are denormalized onto the offer.
func (s *Service) CreateOffer(ctx context.Context, input OfferInput) (*ProductOffer, error) {
	rec, err := s.receipts.GetReceipt(ctx, input.ReceiptID)
	if err != nil {
		return nil, fmt.Errorf("resolve receipt: %w", err)
	}
	if rec.Type != warehouse.ReceiptTypeCottage || rec.CottageNumber == nil {
		return nil, errors.New("marketplace: offer must reference a cottage receipt")
	}
	product, err := s.products.Get(ctx, rec.ProductID)
	if err != nil {
		return nil, fmt.Errorf("resolve product: %w", err)
	}

	offer := ProductOffer{
		OfferNumber:   input.OfferNumber,
		ReceiptID:     rec.ID,
		CottageNumber: *rec.CottageNumber,
		ProductID:     rec.ProductID,
		ProductTitle:  product.Title,
		Weight:        input.Weight,
		UnitPrice:     input.UnitPrice,
		Type:          input.Type,
		Status:        OfferStatusDraft,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertOffer(ctx, offer)
		if err != nil {
			return err
		}
		offer.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "marketplace:offer_created",
			Entity:   "product_offer",
			EntityID: offer.OfferNumber,
			Meta:     map[string]any{"weight": offer.Weight, "unit_price": offer.UnitPrice},
		})
	}
	return s.repo.GetOffer(ctx, offer.ID)
}

// UpdateOffer edits weight/price/type. Offers referenced by a sale are
// immutable except for status transitions.
func (s *Service) UpdateOffer(ctx context.Context, id int64, updates map[string]interface{}) (*ProductOffer, error) {
	locked, err := s.repo.OfferHasSale(ctx, id)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, ErrOfferLocked
	}
	if w, ok := updates["weight"]; ok {
		if weight, ok := w.(float64); !ok || weight <= 0 {
			return nil, errors.New("marketplace: weight must be positive")
		}
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateOffer(ctx, id, updates)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetOffer(ctx, id)
}

// TransitionOffer moves the offer through its lifecycle.
func (s *Service) TransitionOffer(ctx context.Context, id int64, to OfferStatus, actorID int64) (*ProductOffer, error) {
	offer, err := s.repo.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(offer.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, offer.Status, to)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetOfferStatus(ctx, id, to)
	})
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "marketplace:offer_status",
			Entity:   "product_offer",
			EntityID: offer.OfferNumber,
			Meta:     map[string]any{"from": offer.Status, "to": to},
		})
	}
	return s.repo.GetOffer(ctx, id)
}

// CreateSale opens the tracking record for an active offer, capturing the
// denormalized offer snapshot.
func (s *Service) CreateSale(ctx context.Context, offerID, actorID int64) (*Sale, error) {
	offer, err := s.repo.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != OfferStatusActive {
		return nil, ErrOfferNotActive
	}

	sale := Sale{
		OfferID:          offer.ID,
		CottageNumber:    offer.CottageNumber,
		ProductTitle:     offer.ProductTitle,
		UnitPrice:        offer.UnitPrice,
		TotalOfferWeight: offer.Weight,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = id
		return tx.RecomputeSaleWeights(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "marketplace:sale_created",
			Entity:   "marketplace_sale",
			EntityID: offer.OfferNumber,
			Meta:     map[string]any{"total_weight": sale.TotalOfferWeight},
		})
	}
	return s.repo.GetSale(ctx, sale.ID)
}

// PurchaseInput carries the fields for one buyer allocation.
type PurchaseInput struct {
	SaleID         int64         `json:"sale_id" validate:"required"`
	PurchaseNumber string        `json:"purchase_number" validate:"required"`
	CottageNumber  string        `json:"cottage_number" validate:"required"`
	Weight         float64       `json:"weight"`
	PaidAmount     float64       `json:"paid_amount"`
	UnitPrice      float64       `json:"unit_price"`
	BuyerName      string        `json:"buyer_name" validate:"required"`
	NationalID     string        `json:"national_id"`
	Mobile         string        `json:"mobile"`
	AccountNumber  string        `json:"account_number"`
	Address        string        `json:"address"`
	Type           PurchaseType  `json:"type" validate:"required,oneof=cash agreement mixed"`
	PurchaseDate   time.Time     `json:"-"`
	Installments   []Installment `json:"installments"`
	AgreementNote  string        `json:"agreement_note"`
	ActorID        int64         `json:"-"`
}

// CreatePurchase validates, provisions the buyer's customer record, and
// writes the purchase, its detail sidecar and the recomputed sale weights in
// one transaction.
func (s *Service) CreatePurchase(ctx context.Context, input PurchaseInput) (*Purchase, error) {
	if input.Weight <= 0 {
		return nil, errors.New("marketplace: purchase weight must be positive")
	}
	if input.PaidAmount < 0 {
		return nil, errors.New("marketplace: paid amount must not be negative")
	}
	if len(input.Installments) > 3 {
		return nil, errors.New("marketplace: at most 3 installments")
	}

	input.NationalID = excelx.DigitsOnly(input.NationalID)
	input.Mobile = excelx.DigitsOnly(input.Mobile)

	customerID, err := s.provisionCustomer(ctx, input)
	if err != nil {
		// Provisioning is a linkage heuristic; its failure never blocks the
		// purchase write.
		s.logger.Warn("customer provisioning failed",
			slog.String("purchase_number", input.PurchaseNumber), slog.Any("error", err))
		customerID = nil
	}

	p := Purchase{
		SaleID:         input.SaleID,
		PurchaseNumber: input.PurchaseNumber,
		CottageNumber:  input.CottageNumber,
		Weight:         input.Weight,
		PaidAmount:     input.PaidAmount,
		UnitPrice:      input.UnitPrice,
		BuyerName:      input.BuyerName,
		NationalID:     input.NationalID,
		Mobile:         input.Mobile,
		AccountNumber:  input.AccountNumber,
		Address:        input.Address,
		Type:           input.Type,
		PurchaseDate:   input.PurchaseDate,
		Installments:   input.Installments,
		CustomerID:     customerID,
	}
	if p.PurchaseDate.IsZero() {
		p.PurchaseDate = time.Now().UTC()
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, input.SaleID)
		if err != nil {
			return err
		}
		if sale.CottageNumber != input.CottageNumber {
			return ErrCottageMismatch
		}
		exists, err := tx.PurchaseNumberExists(ctx, input.PurchaseNumber)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateNumber
		}
		if !s.allowOversell && sale.SoldBeforeTransport+input.Weight > sale.TotalOfferWeight+1e-9 {
			return ErrOversell
		}

		id, err := tx.InsertPurchase(ctx, p)
		if err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}
		p.ID = id
		if _, err := tx.InsertDetail(ctx, PurchaseDetail{
			PurchaseID:           id,
			AgreementDescription: input.AgreementNote,
		}); err != nil {
			return fmt.Errorf("insert purchase detail: %w", err)
		}
		// Best effort: a recompute failure is logged, not propagated, so the
		// purchase itself still commits.
		if err := tx.RecomputeSaleWeights(ctx, input.SaleID); err != nil {
			s.logger.Error("sale weight recompute failed",
				slog.Int64("sale_id", input.SaleID), slog.Any("error", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.observeRecompute()
	if s.summaries != nil {
		s.summaries.Invalidate(ctx, input.SaleID)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "marketplace:purchase_created",
			Entity:   "marketplace_purchase",
			EntityID: p.PurchaseNumber,
			Meta:     map[string]any{"sale_id": p.SaleID, "weight": p.Weight},
		})
	}
	return s.repo.GetPurchase(ctx, p.ID)
}

// DeletePurchase removes a purchase and recomputes the sale weights in the
// same transaction.
func (s *Service) DeletePurchase(ctx context.Context, id, actorID int64) error {
	var saleID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		deletedSaleID, err := tx.DeletePurchase(ctx, id)
		if err != nil {
			return err
		}
		saleID = deletedSaleID
		if err := tx.RecomputeSaleWeights(ctx, saleID); err != nil {
			s.logger.Error("sale weight recompute failed",
				slog.Int64("sale_id", saleID), slog.Any("error", err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.observeRecompute()
	if s.summaries != nil {
		s.summaries.Invalidate(ctx, saleID)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "marketplace:purchase_deleted",
			Entity:   "marketplace_purchase",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"sale_id": saleID},
		})
	}
	return nil
}

// RecomputeSaleWeights re-derives the stored weight fields from the live
// purchase set. Safe to call at any time; used by the worker sweep.
func (s *Service) RecomputeSaleWeights(ctx context.Context, saleID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.RecomputeSaleWeights(ctx, saleID)
	})
	if err != nil {
		return err
	}
	s.observeRecompute()
	if s.summaries != nil {
		s.summaries.Invalidate(ctx, saleID)
	}
	return nil
}

// RecomputeAllSales sweeps every sale. Returns the number processed.
func (s *Service) RecomputeAllSales(ctx context.Context) (int, error) {
	ids, err := s.repo.ListSaleIDs(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if err := s.RecomputeSaleWeights(ctx, id); err != nil {
			return i, fmt.Errorf("recompute sale %d: %w", id, err)
		}
	}
	return len(ids), nil
}

func (s *Service) GetOffer(ctx context.Context, id int64) (*ProductOffer, error) {
	return s.repo.GetOffer(ctx, id)
}

func (s *Service) ListOffers(ctx context.Context, status OfferStatus, limit, offset int) ([]ProductOffer, error) {
	return s.repo.ListOffers(ctx, status, limit, offset)
}

func (s *Service) GetSale(ctx context.Context, id int64) (*Sale, error) {
	return s.repo.GetSale(ctx, id)
}

func (s *Service) ListSales(ctx context.Context, limit, offset int) ([]Sale, error) {
	return s.repo.ListSales(ctx, limit, offset)
}

func (s *Service) GetPurchase(ctx context.Context, id int64) (*Purchase, error) {
	return s.repo.GetPurchase(ctx, id)
}

func (s *Service) ListPurchases(ctx context.Context, saleID int64) ([]Purchase, error) {
	return s.repo.ListPurchases(ctx, saleID)
}

// ListAddresses lists the delivery addresses of one purchase.
func (s *Service) ListAddresses(ctx context.Context, purchaseID int64) ([]DeliveryAddress, error) {
	detail, err := s.repo.GetDetailByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAddressesByDetail(ctx, detail.ID)
}

// UpdateAddressStatus walks an address through the post-dispatch lifecycle
// (delivery_created -> sent_to_delivery -> completed).
func (s *Service) UpdateAddressStatus(ctx context.Context, addressID int64, to AddressStatus, actorID int64) (*DeliveryAddress, error) {
	addr, err := s.repo.GetAddress(ctx, addressID)
	if err != nil {
		return nil, err
	}
	if !CanTransitionAddress(addr.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, addr.Status, to)
	}
	if err := s.repo.UpdateAddressStatus(ctx, addressID, to); err != nil {
		return nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "marketplace:address_status",
			Entity:   "delivery_address",
			EntityID: addr.AssignmentNumber,
			Meta:     map[string]any{"from": addr.Status, "to": to},
		})
	}
	addr.Status = to
	return addr, nil
}

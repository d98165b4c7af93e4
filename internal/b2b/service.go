package b2b

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghalla-erp/ghalla-erp/internal/shared"
	"github.com/ghalla-erp/ghalla-erp/internal/warehouse"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateOffer(ctx context.Context, o Offer) (int64, error)
	GetOffer(ctx context.Context, id int64) (*Offer, error)
	ListOffers(ctx context.Context, status OfferStatus, limit, offset int) ([]Offer, error)
	ListDistributions(ctx context.Context, offerID int64) ([]Distribution, error)
}

// ReceiptPort resolves the backing warehouse receipt.
type ReceiptPort interface {
	GetReceipt(ctx context.Context, id int64) (*warehouse.Receipt, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates B2B offer operations.
type Service struct {
	repo     RepositoryPort
	receipts ReceiptPort
	audit    AuditPort
}

func NewService(repo RepositoryPort, receipts ReceiptPort, audit AuditPort) *Service {
	return &Service{repo: repo, receipts: receipts, audit: audit}
}

// OfferInput carries the fields for a new offer.
type OfferInput struct {
	ReceiptID int64   `json:"receipt_id" validate:"required"`
	Weight    float64 `json:"weight" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"required,gt=0"`
	ActorID   int64   `json:"-"`
}

// CreateOffer lists a lot backed by a cottage receipt. The offered weight may
// not exceed the receipt's initial weight.
func (s *Service) CreateOffer(ctx context.Context, input OfferInput) (*Offer, error) {
	if input.Weight <= 0 {
		return nil, ErrInvalidShare
	}
	rec, err := s.receipts.GetReceipt(ctx, input.ReceiptID)
	if err != nil {
		return nil, fmt.Errorf("resolve receipt: %w", err)
	}
	if rec.Type != warehouse.ReceiptTypeCottage {
		return nil, errors.New("b2b: offer must reference a cottage receipt")
	}
	if input.Weight > rec.InitialWeight {
		return nil, errors.New("b2b: offered weight exceeds receipt weight")
	}

	offer := Offer{
		ReceiptID: input.ReceiptID,
		ProductID: rec.ProductID,
		Weight:    input.Weight,
		UnitPrice: input.UnitPrice,
		Status:    OfferStatusOpen,
	}
	id, err := s.repo.CreateOffer(ctx, offer)
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "b2b:offer_created",
			Entity:   "b2b_offer",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"receipt_id": offer.ReceiptID, "weight": offer.Weight},
		})
	}
	return s.repo.GetOffer(ctx, id)
}

// Distribute allocates a share to one buyer. The live share sum may never
// exceed the offer weight; the check runs under row lock.
func (s *Service) Distribute(ctx context.Context, offerID, customerID int64, weight float64) (*Distribution, error) {
	if weight <= 0 {
		return nil, ErrInvalidShare
	}
	d := Distribution{OfferID: offerID, CustomerID: customerID, Weight: weight}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		offer, err := tx.GetOfferForUpdate(ctx, offerID)
		if err != nil {
			return err
		}
		if offer.Status != OfferStatusOpen {
			return ErrOfferClosed
		}
		allocated, err := tx.SumShares(ctx, offerID)
		if err != nil {
			return err
		}
		if allocated+weight > offer.Weight+1e-9 {
			return ErrOverAllocate
		}
		id, err := tx.InsertDistribution(ctx, d)
		if err != nil {
			return err
		}
		d.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Close marks the offer closed; no further distribution is possible.
func (s *Service) Close(ctx context.Context, offerID, actorID int64) (*Offer, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetOfferForUpdate(ctx, offerID); err != nil {
			return err
		}
		return tx.SetStatus(ctx, offerID, OfferStatusClosed)
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "b2b:offer_closed",
			Entity:   "b2b_offer",
			EntityID: fmt.Sprintf("%d", offerID),
		})
	}
	return s.repo.GetOffer(ctx, offerID)
}

// GetOffer loads one offer.
func (s *Service) GetOffer(ctx context.Context, id int64) (*Offer, error) {
	return s.repo.GetOffer(ctx, id)
}

// ListOffers lists offers by status.
func (s *Service) ListOffers(ctx context.Context, status OfferStatus, limit, offset int) ([]Offer, error) {
	return s.repo.ListOffers(ctx, status, limit, offset)
}

// ListDistributions lists the shares of one offer.
func (s *Service) ListDistributions(ctx context.Context, offerID int64) ([]Distribution, error) {
	return s.repo.ListDistributions(ctx, offerID)
}

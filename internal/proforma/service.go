package proforma

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghalla-erp/ghalla-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Proforma, error)
	List(ctx context.Context, filter ListFilter) ([]Proforma, error)
	TotalSales(ctx context.Context, filter ListFilter) (float64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates proforma operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput carries header and initial lines for a new proforma.
type CreateInput struct {
	Kind    Kind      `json:"kind" validate:"required,oneof=purchase sales"`
	Serial  string    `json:"serial" validate:"required"`
	PartyID int64     `json:"party_id" validate:"required"`
	Date    time.Time `json:"-"`
	Lines   []Line    `json:"lines"`
	ActorID int64     `json:"-"`
}

// Create writes the header, its lines and the rollup totals atomically.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Proforma, error) {
	if input.Kind != KindPurchase && input.Kind != KindSales {
		return nil, fmt.Errorf("proforma: unknown kind %q", input.Kind)
	}
	if input.PartyID == 0 {
		return nil, errors.New("proforma: party required")
	}
	for _, line := range input.Lines {
		if line.Weight <= 0 {
			return nil, ErrInvalidWeight
		}
		if line.UnitPrice < 0 {
			return nil, ErrInvalidAmount
		}
	}

	p := Proforma{Kind: input.Kind, Serial: input.Serial, PartyID: input.PartyID, Date: input.Date}
	if p.Date.IsZero() {
		p.Date = time.Now().UTC()
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertProforma(ctx, p)
		if err != nil {
			return fmt.Errorf("insert proforma: %w", err)
		}
		p.ID = id
		for _, line := range input.Lines {
			line.ProformaID = id
			if _, err := tx.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert line: %w", err)
			}
		}
		return tx.RecomputeTotals(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("proforma:%s_created", input.Kind),
			Entity:   "proforma",
			EntityID: p.Serial,
			Meta:     map[string]any{"party_id": p.PartyID, "lines": len(input.Lines)},
		})
	}
	return s.repo.Get(ctx, p.ID)
}

// AddLine appends a line and rewrites the rollups in the same transaction.
func (s *Service) AddLine(ctx context.Context, proformaID int64, line Line) (*Proforma, error) {
	if line.Weight <= 0 {
		return nil, ErrInvalidWeight
	}
	if line.UnitPrice < 0 {
		return nil, ErrInvalidAmount
	}
	line.ProformaID = proformaID

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.InsertLine(ctx, line); err != nil {
			return fmt.Errorf("insert line: %w", err)
		}
		return tx.RecomputeTotals(ctx, proformaID)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, proformaID)
}

// RemoveLine deletes a line and rewrites the rollups in the same transaction.
func (s *Service) RemoveLine(ctx context.Context, proformaID, lineID int64) (*Proforma, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteLine(ctx, proformaID, lineID); err != nil {
			return err
		}
		return tx.RecomputeTotals(ctx, proformaID)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, proformaID)
}

// RecordPayment settles part of the proforma balance.
func (s *Service) RecordPayment(ctx context.Context, proformaID int64, amount float64, note string) (*Proforma, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	payment := Payment{ProformaID: proformaID, Amount: amount, PaidAt: time.Now().UTC(), Note: note}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := tx.InsertPayment(ctx, payment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, proformaID)
}

// Get loads one proforma with lines, payments and balance.
func (s *Service) Get(ctx context.Context, id int64) (*Proforma, error) {
	return s.repo.Get(ctx, id)
}

// List lists proformas by kind, party and date range.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Proforma, error) {
	return s.repo.List(ctx, filter)
}

// TotalSales sums sales proforma amounts within the date range.
func (s *Service) TotalSales(ctx context.Context, from, to time.Time) (float64, error) {
	return s.repo.TotalSales(ctx, ListFilter{From: from, To: to})
}

package receivers

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghalla-erp/ghalla-erp/internal/excelx"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*Receiver, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByUniqueID(ctx context.Context, uniqueID string) (*Receiver, error) {
	return s.repo.GetByUniqueID(ctx, excelx.DigitsOnly(uniqueID))
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Receiver, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Create(ctx context.Context, rec Receiver) (*Receiver, error) {
	if rec.Name == "" {
		return nil, errors.New("receivers: name required")
	}
	rec.UniqueID = excelx.DigitsOnly(rec.UniqueID)
	if l := len(rec.UniqueID); l != 10 && l != 11 {
		return nil, fmt.Errorf("receivers: unique id must be 10 or 11 digits, got %d", l)
	}
	id, err := s.repo.Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("create receiver: %w", err)
	}
	return s.repo.Get(ctx, id)
}

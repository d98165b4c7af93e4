package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghalla-erp/ghalla-erp/internal/excelx"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/shared"
)

// Service coordinates customer master data operations.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error) {
	return s.repo.List(ctx, filters)
}

// Create validates identifier shapes before persisting. Identifier fields are
// digit-stripped so cosmetic formatting never produces duplicate parties.
func (s *Service) Create(ctx context.Context, c Customer) (*Customer, error) {
	if c.Name == "" {
		return nil, errors.New("customers: name required")
	}
	if c.PersonalCode != nil {
		code := excelx.DigitsOnly(*c.PersonalCode)
		if len(code) != 10 {
			return nil, fmt.Errorf("customers: personal code must be 10 digits, got %d", len(code))
		}
		c.PersonalCode = &code
	}
	if c.NationalID != nil {
		nid := excelx.DigitsOnly(*c.NationalID)
		if len(nid) != 11 {
			return nil, fmt.Errorf("customers: national id must be 11 digits, got %d", len(nid))
		}
		c.NationalID = &nid
	}
	if c.Mobile != nil {
		m := excelx.DigitsOnly(*c.Mobile)
		c.Mobile = &m
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	c.IsActive = true

	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, updates map[string]interface{}) (*Customer, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, fmt.Errorf("update customer: %w", err)
		}
	}
	return s.repo.Get(ctx, id)
}

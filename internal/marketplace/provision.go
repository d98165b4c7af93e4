package marketplace

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/customers"
)

// provisionCustomer resolves the buyer to a customer record using the
// identifier-length heuristic: 10 digits is a natural person's personal code,
// 11 digits a legal entity's national ID, anything else links nothing.
// Existing records missing the marketplace tag get it appended; new records
// are created from the purchase row.
func (s *Service) provisionCustomer(ctx context.Context, input PurchaseInput) (*int64, error) {
	identifier := input.NationalID

	var existing *customers.Customer
	var err error
	newCustomer := customers.Customer{
		Name:     input.BuyerName,
		Tags:     []string{customers.TagMarketplace},
		IsActive: true,
	}
	if input.Mobile != "" {
		newCustomer.Mobile = &input.Mobile
	}
	if input.Address != "" {
		newCustomer.Address = &input.Address
	}
	if input.AccountNumber != "" {
		newCustomer.AccountNumber = &input.AccountNumber
	}

	switch len(identifier) {
	case 10:
		existing, err = s.customers.GetByPersonalCode(ctx, identifier)
		newCustomer.PersonalCode = &identifier
	case 11:
		existing, err = s.customers.GetByNationalID(ctx, identifier)
		newCustomer.NationalID = &identifier
	default:
		return nil, nil
	}

	if err != nil {
		if !errors.Is(err, customers.ErrNotFound) {
			return nil, fmt.Errorf("lookup customer: %w", err)
		}
		id, err := s.customers.Create(ctx, newCustomer)
		if err != nil {
			return nil, fmt.Errorf("create customer: %w", err)
		}
		return &id, nil
	}

	if !existing.HasTag(customers.TagMarketplace) {
		if err := s.customers.AppendTag(ctx, existing.ID, customers.TagMarketplace); err != nil {
			return nil, fmt.Errorf("tag customer: %w", err)
		}
	}
	return &existing.ID, nil
}

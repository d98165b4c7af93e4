package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghalla-erp/ghalla-erp/internal/shared"
)

// DispatchCustomerNationalID is the fixed placeholder identity of the
// synthetic customer that marketplace delivery orders are issued to.
const DispatchCustomerNationalID = "11111111111"

const dispatchCustomerName = "Marketplace"

// DispatchedOrder summarizes one generated delivery order.
type DispatchedOrder struct {
	OrderNumber string  `json:"order_number"`
	WarehouseID int64   `json:"warehouse_id"`
	TotalWeight float64 `json:"total_weight"`
	Addresses   int     `json:"addresses"`
}

// Dispatch converts the selected pending delivery addresses into warehouse
// delivery orders: one order per offer, one aggregate line per order carrying
// that offer's product, one receiver record per address. Grouping by offer
// keeps the weight booked against the right product when one warehouse holds
// several offers. The whole batch runs in a single transaction; any failure
// rolls back every group.
func (s *Service) Dispatch(ctx context.Context, addressIDs []int64, actorID int64) ([]DispatchedOrder, error) {
	if len(addressIDs) == 0 {
		return nil, errors.New("marketplace: no addresses selected")
	}
	rows, err := s.repo.ListDispatchRows(ctx, addressIDs)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("marketplace: no pending addresses among selection")
	}

	groups := make(map[string][]DispatchRow)
	var order []string
	for _, row := range rows {
		if _, seen := groups[row.OfferNumber]; !seen {
			order = append(order, row.OfferNumber)
		}
		groups[row.OfferNumber] = append(groups[row.OfferNumber], row)
	}

	now := time.Now().UTC()
	var results []DispatchedOrder

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		customerID, err := tx.GetOrCreateDispatchCustomer(ctx, DispatchCustomerNationalID, dispatchCustomerName)
		if err != nil {
			return fmt.Errorf("dispatch customer: %w", err)
		}

		for _, offerNumber := range order {
			group := groups[offerNumber]
			warehouseID := group[0].WarehouseID
			serial := fmt.Sprintf("MP-%s-%d", offerNumber, now.Unix())
			proformaID, err := tx.InsertProformaStub(ctx, serial, customerID)
			if err != nil {
				return fmt.Errorf("proforma stub %s: %w", serial, err)
			}

			number, err := tx.NextOrderNumber(ctx, now.Format("0601"))
			if err != nil {
				return fmt.Errorf("allocate order number: %w", err)
			}
			orderID, err := tx.InsertOrder(ctx, number, warehouseID, customerID, proformaID, now)
			if err != nil {
				return fmt.Errorf("insert order %s: %w", number, err)
			}

			var totalWeight float64
			for _, row := range group {
				totalWeight += row.Address.OrderWeight
			}
			if _, err := tx.InsertOrderLine(ctx, orderID, group[0].ProductID, totalWeight, ""); err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}

			for _, row := range group {
				addr := row.Address
				if err := tx.InsertOrderReceiver(ctx, orderID,
					addr.RecipientName, addr.RecipientNationalID, addr.RecipientMobile,
					addr.Address, addr.PostalCode); err != nil {
					return fmt.Errorf("insert receiver: %w", err)
				}
				if err := tx.MarkAddressDispatched(ctx, addr.ID, number); err != nil {
					return fmt.Errorf("mark address %d: %w", addr.ID, err)
				}
			}

			results = append(results, DispatchedOrder{
				OrderNumber: number,
				WarehouseID: warehouseID,
				TotalWeight: totalWeight,
				Addresses:   len(group),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "marketplace:dispatch",
			Entity:   "delivery_order",
			EntityID: fmt.Sprintf("%d addresses", len(rows)),
			Meta:     map[string]any{"orders": len(results)},
		})
	}
	return results, nil
}

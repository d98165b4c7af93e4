package marketplace

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/ghalla-erp/ghalla-erp/internal/excelx"
)

// purchaseHeaders maps logical purchase fields to accepted header variants.
// Variants are tried in order; the first match wins.
var purchaseHeaders = excelx.HeaderMap{
	{Name: "purchase_number", Variants: []string{"شناسه خرید", "شماره خرید", "purchase id", "purchase number"}, Required: true},
	{Name: "cottage_number", Variants: []string{"کوتاژ", "شماره کوتاژ", "cottage", "cottage number"}, Required: true},
	{Name: "buyer_name", Variants: []string{"نام خریدار", "خریدار", "buyer", "buyer name"}, Required: true},
	{Name: "weight", Variants: []string{"وزن خرید", "وزن", "weight"}, Required: true},
	{Name: "purchase_date", Variants: []string{"تاریخ خرید", "تاریخ", "date", "purchase date"}, Required: true},
	{Name: "national_id", Variants: []string{"کد ملی", "شناسه ملی", "national id"}},
	{Name: "mobile", Variants: []string{"موبایل", "شماره همراه", "تلفن همراه", "mobile"}},
	{Name: "account_number", Variants: []string{"شماره حساب", "account number"}},
	{Name: "paid_amount", Variants: []string{"مبلغ پرداختی", "مبلغ واریزی", "paid amount"}},
	{Name: "unit_price", Variants: []string{"فی", "قیمت واحد", "unit price"}},
	{Name: "type", Variants: []string{"نوع خرید", "purchase type", "type"}},
	{Name: "address", Variants: []string{"آدرس", "نشانی", "address"}},
}

// addressHeaders maps logical delivery-address fields to header variants.
var addressHeaders = excelx.HeaderMap{
	{Name: "assignment_number", Variants: []string{"شناسه حواله", "شماره حواله", "assignment id", "assignment number"}, Required: true},
	{Name: "recipient_name", Variants: []string{"نام گیرنده", "گیرنده", "recipient", "recipient name"}, Required: true},
	{Name: "weight", Variants: []string{"وزن سفارش", "وزن", "weight", "order weight"}, Required: true},
	{Name: "buyer_name", Variants: []string{"نام خریدار", "خریدار", "buyer name"}},
	{Name: "buyer_national_id", Variants: []string{"کد ملی خریدار", "buyer national id"}},
	{Name: "recipient_national_id", Variants: []string{"کد ملی گیرنده", "recipient national id"}},
	{Name: "recipient_mobile", Variants: []string{"موبایل گیرنده", "شماره گیرنده", "recipient mobile"}},
	{Name: "address", Variants: []string{"آدرس", "نشانی", "address"}},
	{Name: "postal_code", Variants: []string{"کد پستی", "postal code"}},
	{Name: "single", Variants: []string{"تک", "single"}},
	{Name: "double", Variants: []string{"جفت", "double"}},
	{Name: "trailer", Variants: []string{"تریلی", "تریلر", "trailer"}},
}

// ImportResult reports a bulk upload outcome. BatchID correlates the response
// with audit entries and log lines; Replaced is only set for the address path,
// where existing rows are removed before re-import.
type ImportResult struct {
	BatchID  string   `json:"batch_id"`
	Created  int      `json:"created"`
	Replaced int      `json:"replaced,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// ImportPurchases loads buyer allocations from a spreadsheet against one
// sale. Rows are processed independently: each valid row commits on its own
// and failures are collected per row, so earlier successes survive later
// failures. Missing required headers abort before any row is touched.
func (s *Service) ImportPurchases(ctx context.Context, saleID int64, f *excelize.File, actorID int64) (*ImportResult, error) {
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}
	cols, err := purchaseHeaders.Resolve(rows[0])
	if err != nil {
		return nil, err
	}

	result := &ImportResult{BatchID: uuid.NewString()}
	for i, row := range rows[1:] {
		rowNum := i + 2
		input, err := s.purchaseRowInput(saleID, cols, row)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		input.ActorID = actorID
		if _, err := s.CreatePurchase(ctx, input); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		result.Created++
	}
	s.observeImport("purchases", result)
	return result, nil
}

func (s *Service) purchaseRowInput(saleID int64, cols excelx.Columns, row []string) (PurchaseInput, error) {
	input := PurchaseInput{
		SaleID:         saleID,
		PurchaseNumber: excelx.NormalizeDigits(cols.Cell(row, "purchase_number")),
		CottageNumber:  excelx.NormalizeDigits(cols.Cell(row, "cottage_number")),
		BuyerName:      excelx.NormalizeText(cols.Cell(row, "buyer_name")),
		NationalID:     cols.Cell(row, "national_id"),
		Mobile:         cols.Cell(row, "mobile"),
		AccountNumber:  excelx.NormalizeDigits(cols.Cell(row, "account_number")),
		Address:        excelx.NormalizeText(cols.Cell(row, "address")),
		Type:           parsePurchaseType(cols.Cell(row, "type")),
	}
	if input.PurchaseNumber == "" {
		return input, fmt.Errorf("purchase number missing")
	}
	if input.CottageNumber == "" {
		return input, fmt.Errorf("cottage number missing")
	}
	if input.BuyerName == "" {
		return input, fmt.Errorf("buyer name missing")
	}

	weight, err := parseWeight(cols.Cell(row, "weight"))
	if err != nil {
		return input, err
	}
	input.Weight = weight

	if cell := cols.Cell(row, "paid_amount"); cell != "" {
		paid, err := parseAmount(cell)
		if err != nil {
			return input, fmt.Errorf("paid amount: %w", err)
		}
		if paid < 0 {
			return input, fmt.Errorf("paid amount must not be negative")
		}
		input.PaidAmount = paid
	}
	if cell := cols.Cell(row, "unit_price"); cell != "" {
		price, err := parseAmount(cell)
		if err != nil {
			return input, fmt.Errorf("unit price: %w", err)
		}
		input.UnitPrice = price
	}

	date, err := excelx.ParseJalali(cols.Cell(row, "purchase_date"))
	if err != nil {
		return input, fmt.Errorf("purchase date: %w", err)
	}
	input.PurchaseDate = date
	return input, nil
}

// ImportAddresses replaces the delivery addresses of one purchase with the
// spreadsheet contents. The bulk delete and the re-import run in one
// transaction, so readers never observe the half-replaced state; row failures
// are tolerated and reported, and the replaced count tells operators how many
// prior rows were removed.
func (s *Service) ImportAddresses(ctx context.Context, purchaseID int64, f *excelize.File, actorID int64) (*ImportResult, error) {
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}
	cols, err := addressHeaders.Resolve(rows[0])
	if err != nil {
		return nil, err
	}

	detail, err := s.repo.GetDetailByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	purchase, err := s.repo.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{BatchID: uuid.NewString()}
	seen := make(map[string]bool)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		replaced, err := tx.DeleteAddressesByDetail(ctx, detail.ID)
		if err != nil {
			return fmt.Errorf("delete existing addresses: %w", err)
		}
		result.Replaced = replaced

		var total float64
		for i, row := range rows[1:] {
			rowNum := i + 2
			addr, err := addressRow(detail.ID, cols, row)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
				continue
			}
			if seen[addr.AssignmentNumber] {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: duplicate assignment number %s", rowNum, addr.AssignmentNumber))
				continue
			}
			if !s.allowOversell && total+addr.OrderWeight > purchase.Weight+1e-9 {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: order weight exceeds purchase weight", rowNum))
				continue
			}
			seen[addr.AssignmentNumber] = true
			total += addr.OrderWeight
			if _, err := tx.InsertAddress(ctx, addr); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
				continue
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.observeImport("addresses", result)
	return result, nil
}

func addressRow(detailID int64, cols excelx.Columns, row []string) (DeliveryAddress, error) {
	addr := DeliveryAddress{
		DetailID:            detailID,
		AssignmentNumber:    excelx.NormalizeDigits(cols.Cell(row, "assignment_number")),
		BuyerName:           excelx.NormalizeText(cols.Cell(row, "buyer_name")),
		BuyerNationalID:     excelx.DigitsOnly(cols.Cell(row, "buyer_national_id")),
		RecipientName:       excelx.NormalizeText(cols.Cell(row, "recipient_name")),
		RecipientNationalID: excelx.DigitsOnly(cols.Cell(row, "recipient_national_id")),
		RecipientMobile:     excelx.DigitsOnly(cols.Cell(row, "recipient_mobile")),
		Address:             excelx.NormalizeText(cols.Cell(row, "address")),
		PostalCode:          excelx.DigitsOnly(cols.Cell(row, "postal_code")),
		Status:              AddressStatusPending,
		Vehicles: VehicleTypes{
			Single:  truthyCell(cols.Cell(row, "single")),
			Double:  truthyCell(cols.Cell(row, "double")),
			Trailer: truthyCell(cols.Cell(row, "trailer")),
		},
	}
	if addr.AssignmentNumber == "" {
		return addr, fmt.Errorf("assignment number missing")
	}
	if addr.RecipientName == "" {
		return addr, fmt.Errorf("recipient name missing")
	}
	weight, err := parseWeight(cols.Cell(row, "weight"))
	if err != nil {
		return addr, err
	}
	addr.OrderWeight = weight
	return addr, nil
}

func parseWeight(cell string) (float64, error) {
	weight, err := parseAmount(cell)
	if err != nil {
		return 0, fmt.Errorf("weight: %w", err)
	}
	if weight <= 0 {
		return 0, fmt.Errorf("weight must be positive")
	}
	return weight, nil
}

func parseAmount(cell string) (float64, error) {
	normalized := strings.ReplaceAll(excelx.NormalizeDigits(cell), ",", "")
	if normalized == "" {
		return 0, fmt.Errorf("value missing")
	}
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", cell)
	}
	return v, nil
}

func parsePurchaseType(cell string) PurchaseType {
	switch excelx.NormalizeText(cell) {
	case "توافقی", "مدت دار", "agreement":
		return PurchaseTypeAgreement
	case "ترکیبی", "mixed":
		return PurchaseTypeMixed
	default:
		return PurchaseTypeCash
	}
}

func truthyCell(cell string) bool {
	switch excelx.NormalizeText(excelx.NormalizeDigits(cell)) {
	case "", "0", "no", "خیر", "-":
		return false
	default:
		return true
	}
}

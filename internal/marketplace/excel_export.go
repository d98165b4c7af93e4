package marketplace

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ghalla-erp/ghalla-erp/internal/excelx"
)

var purchaseExportHeaders = []string{
	"شناسه خرید", "کوتاژ", "نام خریدار", "کد ملی", "موبایل",
	"وزن خرید", "فی", "مبلغ پرداختی", "نوع خرید", "تاریخ خرید",
}

var addressExportHeaders = []string{
	"شناسه حواله", "نام خریدار", "نام گیرنده", "کد ملی گیرنده", "موبایل گیرنده",
	"آدرس", "کد پستی", "تک", "جفت", "تریلی", "وزن سفارش", "وضعیت", "شماره حواله خروج",
}

// PurchaseTemplate builds an empty styled upload template for one sale.
func (s *Service) PurchaseTemplate() (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := excelx.WriteSheet(f, sheet, purchaseExportHeaders, nil); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// ExportPurchases renders the live purchase set of a sale as a styled sheet.
func (s *Service) ExportPurchases(ctx context.Context, saleID int64) (*excelize.File, error) {
	purchases, err := s.repo.ListPurchases(ctx, saleID)
	if err != nil {
		return nil, err
	}

	rows := make([][]any, 0, len(purchases))
	for _, p := range purchases {
		rows = append(rows, []any{
			p.PurchaseNumber, p.CottageNumber, p.BuyerName, p.NationalID, p.Mobile,
			p.Weight, excelx.Amount(p.UnitPrice), excelx.Amount(p.PaidAmount),
			string(p.Type), excelx.FormatJalali(p.PurchaseDate),
		})
	}

	f := excelize.NewFile()
	if err := excelx.WriteSheet(f, f.GetSheetName(0), purchaseExportHeaders, rows); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// ExportAddresses renders the delivery addresses of a purchase as a styled
// sheet.
func (s *Service) ExportAddresses(ctx context.Context, purchaseID int64) (*excelize.File, error) {
	detail, err := s.repo.GetDetailByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	addresses, err := s.repo.ListAddressesByDetail(ctx, detail.ID)
	if err != nil {
		return nil, err
	}

	rows := make([][]any, 0, len(addresses))
	for _, a := range addresses {
		rows = append(rows, []any{
			a.AssignmentNumber, a.BuyerName, a.RecipientName, a.RecipientNationalID,
			a.RecipientMobile, a.Address, a.PostalCode,
			vehicleMark(a.Vehicles.Single), vehicleMark(a.Vehicles.Double), vehicleMark(a.Vehicles.Trailer),
			a.OrderWeight, string(a.Status), a.OrderNumber,
		})
	}

	f := excelize.NewFile()
	if err := excelx.WriteSheet(f, f.GetSheetName(0), addressExportHeaders, rows); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// ExportDispatchedOrders renders a dispatch batch summary.
func ExportDispatchedOrders(orders []DispatchedOrder) (*excelize.File, error) {
	headers := []string{"شماره حواله", "انبار", "وزن کل", "تعداد آدرس"}
	rows := make([][]any, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, []any{o.OrderNumber, fmt.Sprintf("%d", o.WarehouseID), o.TotalWeight, o.Addresses})
	}
	f := excelize.NewFile()
	if err := excelx.WriteSheet(f, f.GetSheetName(0), headers, rows); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func vehicleMark(on bool) string {
	if on {
		return "1"
	}
	return ""
}

package marketplace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ghalla-erp/ghalla-erp/internal/excelx"
)

func buildWorkbook(t *testing.T, headers []string, rows [][]interface{}) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &headerRow))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	return f
}

var purchaseUploadHeaders = []string{
	"شناسه خرید", "کوتاژ", "نام خریدار", "وزن خرید", "تاریخ خرید", "مبلغ پرداختی",
}

func purchaseRow(number, cottage, buyer string, weight, paid interface{}) []interface{} {
	return []interface{}{number, cottage, buyer, weight, "1403/02/15", paid}
}

func TestImportPurchasesMissingHeadersAbort(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	sale := f.seedSale(t, 1000, 20000)

	wb := buildWorkbook(t, []string{"شناسه خرید", "نام خریدار"}, [][]interface{}{
		{"B-1", "Buyer"},
	})
	defer wb.Close()

	_, err := f.svc.ImportPurchases(context.Background(), sale.ID, wb, 0)
	var missing *excelx.MissingHeadersError
	require.ErrorAs(t, err, &missing)
	require.ElementsMatch(t, []string{"cottage_number", "weight", "purchase_date"}, missing.Fields)
	require.Empty(t, f.repo.purchases)
}

func TestImportPurchasesPartialFailure(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	wb := buildWorkbook(t, purchaseUploadHeaders, [][]interface{}{
		purchaseRow("B-1", "900123", "Buyer One", "300", "100000"),
		purchaseRow("B-2", "900123", "Buyer Two", "abc", "0"),
		purchaseRow("B-3", "999999", "Buyer Three", "100", "0"),
		purchaseRow("B-4", "900123", "Buyer Four", "200", "0"),
	})
	defer wb.Close()

	result, err := f.svc.ImportPurchases(ctx, sale.ID, wb, 0)
	require.NoError(t, err)
	require.NotEmpty(t, result.BatchID)
	require.Equal(t, 2, result.Created)
	require.Len(t, result.Errors, 2)
	require.Contains(t, result.Errors[0], "row 3:")
	require.Contains(t, result.Errors[1], "row 4:")
	require.Contains(t, result.Errors[1], ErrCottageMismatch.Error())

	got, err := f.svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.InDelta(t, 500, got.SoldBeforeTransport, 0.0001)
}

func TestImportPurchasesPersianDigits(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	wb := buildWorkbook(t, purchaseUploadHeaders, [][]interface{}{
		{"۱۲۳۴", "۹۰۰۱۲۳", "حسن محمدی", "۲۵۰", "۱۴۰۳/۰۲/۱۵", "1,500,000"},
	})
	defer wb.Close()

	result, err := f.svc.ImportPurchases(ctx, sale.ID, wb, 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Empty(t, result.Errors)

	purchases, err := f.svc.ListPurchases(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	require.Equal(t, "1234", purchases[0].PurchaseNumber)
	require.Equal(t, "900123", purchases[0].CottageNumber)
	require.InDelta(t, 250, purchases[0].Weight, 0.0001)
	require.InDelta(t, 1_500_000, purchases[0].PaidAmount, 0.0001)
}

var addressUploadHeaders = []string{
	"شناسه حواله", "نام گیرنده", "وزن سفارش", "آدرس", "کد پستی", "تک", "جفت", "تریلی",
}

func TestImportAddressesReplacesExisting(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	p, err := f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-1", 300))
	require.NoError(t, err)
	detail, err := f.repo.GetDetailByPurchase(ctx, p.ID)
	require.NoError(t, err)

	err = f.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := tx.InsertAddress(ctx, DeliveryAddress{
			DetailID: detail.ID, AssignmentNumber: "OLD-1",
			RecipientName: "Old Recipient", OrderWeight: 300, Status: AddressStatusPending,
		})
		return err
	})
	require.NoError(t, err)

	wb := buildWorkbook(t, addressUploadHeaders, [][]interface{}{
		{"HV-1", "گیرنده یک", "150", "تهران", "1111111111", "1", "", ""},
		{"HV-2", "گیرنده دو", "150", "اصفهان", "2222222222", "", "", "1"},
	})
	defer wb.Close()

	result, err := f.svc.ImportAddresses(ctx, p.ID, wb, 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Replaced)
	require.Equal(t, 2, result.Created)
	require.Empty(t, result.Errors)

	addresses, err := f.svc.ListAddresses(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, addresses, 2)
	for _, a := range addresses {
		require.NotEqual(t, "OLD-1", a.AssignmentNumber)
		require.Equal(t, AddressStatusPending, a.Status)
	}
}

func TestImportAddressesRejectsBatchDuplicates(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	p, err := f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-1", 300))
	require.NoError(t, err)

	wb := buildWorkbook(t, addressUploadHeaders, [][]interface{}{
		{"HV-1", "گیرنده یک", "100", "", "", "", "", ""},
		{"HV-1", "گیرنده دو", "100", "", "", "", "", ""},
		{"HV-2", "", "100", "", "", "", "", ""},
	})
	defer wb.Close()

	result, err := f.svc.ImportAddresses(ctx, p.ID, wb, 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 2)
	require.Contains(t, result.Errors[0], "duplicate assignment number HV-1")
	require.Contains(t, result.Errors[1], "recipient name missing")
}

func TestImportAddressesRejectOverweight(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	p, err := f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-1", 300))
	require.NoError(t, err)

	wb := buildWorkbook(t, addressUploadHeaders, [][]interface{}{
		{"HV-1", "گیرنده یک", "200", "", "", "", "", ""},
		{"HV-2", "گیرنده دو", "200", "", "", "", "", ""},
	})
	defer wb.Close()

	result, err := f.svc.ImportAddresses(ctx, p.ID, wb, 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "exceeds purchase weight")
}

func TestImportAddressesVehicleFlags(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	sale := f.seedSale(t, 1000, 20000)

	p, err := f.svc.CreatePurchase(ctx, purchaseInput(sale.ID, "B-1", 300))
	require.NoError(t, err)

	wb := buildWorkbook(t, addressUploadHeaders, [][]interface{}{
		{"HV-1", "گیرنده", "100", "", "", "1", "0", "بله"},
	})
	defer wb.Close()

	result, err := f.svc.ImportAddresses(ctx, p.ID, wb, 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)

	addresses, err := f.svc.ListAddresses(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, addresses, 1)
	require.True(t, addresses[0].Vehicles.Single)
	require.False(t, addresses[0].Vehicles.Double)
	require.True(t, addresses[0].Vehicles.Trailer)
}

package report

import (
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"orderdesk/internal"
)

const dateLayout = "2006-01-02 15:04:05"

// ExportCustomersXLSX writes one customer registry to a workbook, one row per
// customer in registry order.
func ExportCustomersXLSX(customers []internal.Customer, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"id", "customer_name", "shop", "region", "handler", "phone", "wechat",
		"orders_count", "total_amount", "first_order_date", "last_order_date",
		"converted", "conversion_date", "counterpart_id",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, c := range customers {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, c.ID)
		set(2, c.CustomerName)
		set(3, derefString(c.Shop))
		set(4, derefString(c.Region))
		set(5, derefString(c.Handler))
		set(6, derefString(c.Phone))
		set(7, derefString(c.Wechat))
		set(8, c.OrdersCount)
		set(9, c.TotalAmount)
		set(10, derefTime(c.FirstOrderDate))
		set(11, derefTime(c.LastOrderDate))
		set(12, c.Converted)
		set(13, derefTime(c.ConversionDate))
		set(14, derefInt(c.CounterpartID))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// ExportConversionsXLSX writes the recorded conversions with both sides'
// registry names.
func ExportConversionsXLSX(conversions []internal.ConversionDetail, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"id", "sample_customer_id", "sample_customer_name", "sample_shop",
		"bulk_customer_id", "bulk_customer_name", "bulk_shop",
		"conversion_date", "created_at",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, c := range conversions {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, c.ID)
		set(2, c.SampleCustomerID)
		set(3, c.SampleCustomerName)
		set(4, derefString(c.SampleShop))
		set(5, c.BulkCustomerID)
		set(6, c.BulkCustomerName)
		set(7, derefString(c.BulkShop))
		set(8, c.ConversionDate.Format(dateLayout))
		set(9, c.CreatedAt.Format(dateLayout))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format(dateLayout)
}

func derefInt(v *int64) any {
	if v == nil {
		return ""
	}
	return *v
}

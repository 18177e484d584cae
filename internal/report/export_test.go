package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"orderdesk/internal"
	"orderdesk/internal/util"
)

// cellAt tolerates the trailing-cell trimming excelize applies to sparse rows.
func cellAt(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

func readSheet(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	return rows
}

func TestExportCustomersXLSX(t *testing.T) {
	first := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	last := first.AddDate(0, 1, 0)
	counterpart := int64(7)

	customers := []internal.Customer{
		{
			ID:             1,
			CustomerName:   "张三",
			Shop:           util.StringPtr("淘宝"),
			Region:         util.StringPtr("华东"),
			Handler:        util.StringPtr("小林"),
			Phone:          util.StringPtr("13800138000"),
			Wechat:         util.StringPtr("zs888"),
			OrdersCount:    3,
			TotalAmount:    1234.5,
			FirstOrderDate: &first,
			LastOrderDate:  &last,
			Converted:      true,
			ConversionDate: &last,
			CounterpartID:  &counterpart,
		},
		{ID: 2, CustomerName: "李四"},
	}

	out := filepath.Join(t.TempDir(), "exports", "sample_customers.xlsx")
	require.NoError(t, ExportCustomersXLSX(customers, out))

	rows := readSheet(t, out)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{
		"id", "customer_name", "shop", "region", "handler", "phone", "wechat",
		"orders_count", "total_amount", "first_order_date", "last_order_date",
		"converted", "conversion_date", "counterpart_id",
	}, rows[0])

	full := rows[1]
	assert.Equal(t, "1", cellAt(full, 0))
	assert.Equal(t, "张三", cellAt(full, 1))
	assert.Equal(t, "淘宝", cellAt(full, 2))
	assert.Equal(t, "3", cellAt(full, 7))
	assert.Equal(t, "1234.5", cellAt(full, 8))
	assert.Equal(t, "2026-01-02 15:04:05", cellAt(full, 9))
	assert.Equal(t, "TRUE", cellAt(full, 11))
	assert.Equal(t, "7", cellAt(full, 13))

	sparse := rows[2]
	assert.Equal(t, "李四", cellAt(sparse, 1))
	assert.Equal(t, "", cellAt(sparse, 2), "nil shop exports empty")
	assert.Equal(t, "FALSE", cellAt(sparse, 11))
	assert.Equal(t, "", cellAt(sparse, 13))
}

func TestExportConversionsXLSX(t *testing.T) {
	date := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	detail := internal.ConversionDetail{
		ConversionRecord: internal.ConversionRecord{
			ID:               1,
			SampleCustomerID: 10,
			BulkCustomerID:   20,
			ConversionDate:   date,
			CreatedAt:        date.Add(time.Hour),
		},
		SampleCustomerName: "张三",
		SampleShop:         util.StringPtr("淘宝"),
		BulkCustomerName:   "张三",
	}

	out := filepath.Join(t.TempDir(), "conversions.xlsx")
	require.NoError(t, ExportConversionsXLSX([]internal.ConversionDetail{detail}, out))

	rows := readSheet(t, out)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"id", "sample_customer_id", "sample_customer_name", "sample_shop",
		"bulk_customer_id", "bulk_customer_name", "bulk_shop",
		"conversion_date", "created_at",
	}, rows[0])

	row := rows[1]
	assert.Equal(t, "10", cellAt(row, 1))
	assert.Equal(t, "张三", cellAt(row, 2))
	assert.Equal(t, "淘宝", cellAt(row, 3))
	assert.Equal(t, "20", cellAt(row, 4))
	assert.Equal(t, "", cellAt(row, 6), "nil bulk shop exports empty")
	assert.Equal(t, "2026-02-01 08:00:00", cellAt(row, 7))
	assert.Equal(t, "2026-02-01 09:00:00", cellAt(row, 8))
}

package importer

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"orderdesk/internal"
	"orderdesk/internal/storage"
)

var exportHeader = []any{
	"订单ID", "角色", "处理人", "工艺", "金额", "高清图数", "印制报价", "高清图尺寸成本",
	"高清图颜色成本", "高清图工费成本", "衣服售价总额", "衣服总数", "衣服成本", "叠衣服成本",
	"衣服款式", "颜色总数", "客户", "电话", "渠道", "快递", "订单状态", "下单时间",
	"处理时间", "完成时间", "订单分类", "备注",
}

func mkWorkbook(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestParseWorkbookMapsColumns(t *testing.T) {
	blob := mkWorkbook([][]any{
		exportHeader,
		{"S001", "主单", "小林", "印花", "¥1,234.50", "3", "10.5", "", "", "", "", "5", "", "",
			"T恤-001", "2", "张三", "13800138000", "淘宝", "顺丰", "已完成",
			"2024-01-02 15:04:05", "", "2024/1/5", "打样单", "加急"},
	})

	p, err := parseWorkbook(blob)
	require.NoError(t, err)
	require.Len(t, p.orders, 1)
	require.Empty(t, p.rowErrors)

	o := p.orders[0]
	assert.Equal(t, "S001", o.OrderID)
	require.NotNil(t, o.Role)
	assert.Equal(t, "主单", *o.Role)
	require.NotNil(t, o.Handler)
	assert.Equal(t, "小林", *o.Handler)
	require.NotNil(t, o.Amount)
	assert.InDelta(t, 1234.50, *o.Amount, 1e-9)
	require.NotNil(t, o.PictureAmount)
	assert.EqualValues(t, 3, *o.PictureAmount)
	require.NotNil(t, o.PicturePrice)
	assert.InDelta(t, 10.5, *o.PicturePrice, 1e-9)
	assert.Nil(t, o.PictureCost)
	require.NotNil(t, o.Quantity)
	assert.EqualValues(t, 5, *o.Quantity)
	require.NotNil(t, o.ClothCode)
	assert.Equal(t, "T恤-001", *o.ClothCode)
	require.NotNil(t, o.CustomerName)
	assert.Equal(t, "张三", *o.CustomerName)
	require.NotNil(t, o.Phone)
	assert.Equal(t, "13800138000", *o.Phone)
	require.NotNil(t, o.Shop)
	assert.Equal(t, "淘宝", *o.Shop)
	require.NotNil(t, o.OrderCreatedDate)
	assert.True(t, o.OrderCreatedDate.Equal(time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)))
	assert.Nil(t, o.OrderProcessedDate)
	require.NotNil(t, o.CompletionDate)
	assert.True(t, o.CompletionDate.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, o.OrderType)
	assert.Equal(t, "打样单", *o.OrderType)
	require.NotNil(t, o.Notes)
	assert.Equal(t, "加急", *o.Notes)
}

func TestParseWorkbookIgnoresUnknownColumns(t *testing.T) {
	blob := mkWorkbook([][]any{
		{"订单ID", "客户", "内部编号"},
		{"S001", "张三", "IGNORED"},
	})

	p, err := parseWorkbook(blob)
	require.NoError(t, err)
	require.Len(t, p.orders, 1)
	assert.Equal(t, "S001", p.orders[0].OrderID)
	require.NotNil(t, p.orders[0].CustomerName)
	assert.Equal(t, "张三", *p.orders[0].CustomerName)
}

func TestParseWorkbookRequiresOrderIDColumn(t *testing.T) {
	blob := mkWorkbook([][]any{
		{"客户", "金额"},
		{"张三", "100"},
	})

	_, err := parseWorkbook(blob)
	require.Error(t, err)
	assert.ErrorContains(t, err, "订单ID")
}

func TestParseWorkbookCountsRowsWithoutOrderID(t *testing.T) {
	blob := mkWorkbook([][]any{
		{"订单ID", "客户"},
		{"", "张三"},
		{"S002", "李四"},
		{},
	})

	p, err := parseWorkbook(blob)
	require.NoError(t, err)
	require.Len(t, p.orders, 1)
	require.Len(t, p.rowErrors, 1)
	assert.Equal(t, 2, p.rowErrors[0].Row)
}

func TestParseWorkbookKeepsFirstDuplicate(t *testing.T) {
	blob := mkWorkbook([][]any{
		{"订单ID", "金额"},
		{"S001", "100"},
		{"S001", "999"},
	})

	p, err := parseWorkbook(blob)
	require.NoError(t, err)
	require.Len(t, p.orders, 1)
	assert.Equal(t, 1, p.duplicates)
	require.NotNil(t, p.orders[0].Amount)
	assert.InDelta(t, 100, *p.orders[0].Amount, 1e-9)
}

const htmlExport = `<html><body><table>
<tr><th>订单ID</th><th>客户</th><th>金额</th><th>订单分类</th></tr>
<tr><td>H001</td><td> 李四 </td><td>￥88.00</td><td>新订单</td></tr>
</table></body></html>`

func TestParseHTMLTable(t *testing.T) {
	p, err := parseHTMLTable([]byte(htmlExport))
	require.NoError(t, err)
	require.Len(t, p.orders, 1)

	o := p.orders[0]
	assert.Equal(t, "H001", o.OrderID)
	require.NotNil(t, o.CustomerName)
	assert.Equal(t, "李四", *o.CustomerName)
	require.NotNil(t, o.Amount)
	assert.InDelta(t, 88, *o.Amount, 1e-9)
	require.NotNil(t, o.OrderType)
	assert.Equal(t, "新订单", *o.OrderType)
}

func TestParseHTMLTableGB18030(t *testing.T) {
	encoded, _, err := transform.Bytes(simplifiedchinese.GB18030.NewEncoder(), []byte(htmlExport))
	require.NoError(t, err)

	p, err := parseHTMLTable(encoded)
	require.NoError(t, err)
	require.Len(t, p.orders, 1)
	require.NotNil(t, p.orders[0].CustomerName)
	assert.Equal(t, "李四", *p.orders[0].CustomerName)
}

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "orderdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestService(t *testing.T) (*ImportService, *storage.DB) {
	t.Helper()
	db := newTestDB(t)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewImportService(db, 500, log), db
}

func writeFixture(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestImportFileRoundTrip(t *testing.T) {
	svc, db := newTestService(t)
	path := writeFixture(t, "orders.xlsx", mkWorkbook([][]any{
		{"订单ID", "客户", "金额", "订单分类"},
		{"S001", "张三", "100", "打样单"},
		{"B001", "李四", "2000", "新订单"},
	}))

	stats, err := svc.ImportFile(path)
	require.NoError(t, err)
	assert.Equal(t, internal.ImportStats{Inserted: 2}, stats)

	o, err := db.GetOriginalOrder("S001")
	require.NoError(t, err)
	require.NotNil(t, o)
	require.NotNil(t, o.OrderType)
	assert.Equal(t, "打样单", *o.OrderType)

	files, err := db.ListImportFiles(0)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, internal.ImportFileImported, files[0].Status)
	assert.Equal(t, "orders.xlsx", files[0].Filename)
	assert.Contains(t, files[0].CountsJSON, `"inserted":2`)

	// Importing the same content again refreshes instead of duplicating.
	stats, err = svc.ImportFile(path)
	require.NoError(t, err)
	assert.Equal(t, internal.ImportStats{Updated: 2}, stats)

	totals, err := db.Totals()
	require.NoError(t, err)
	assert.EqualValues(t, 2, totals.OriginalOrders)
}

func TestImportFileLegacyHTMLExport(t *testing.T) {
	svc, db := newTestService(t)
	path := writeFixture(t, "orders.xls", []byte(htmlExport))

	stats, err := svc.ImportFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)

	o, err := db.GetOriginalOrder("H001")
	require.NoError(t, err)
	require.NotNil(t, o)
}

func TestImportFileCountsRowErrors(t *testing.T) {
	svc, _ := newTestService(t)
	path := writeFixture(t, "orders.xlsx", mkWorkbook([][]any{
		{"订单ID", "客户"},
		{"", "张三"},
		{"S002", "李四"},
	}))

	stats, err := svc.ImportFile(path)
	require.NoError(t, err)
	assert.Equal(t, internal.ImportStats{Inserted: 1, Errors: 1}, stats)
}

func TestImportFileRegistersParseFailure(t *testing.T) {
	svc, db := newTestService(t)
	path := writeFixture(t, "broken.xlsx", []byte("not a workbook"))

	_, err := svc.ImportFile(path)
	require.Error(t, err)

	files, err := db.ListImportFiles(0)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, internal.ImportFileFailed, files[0].Status)
}

package importer

import (
	"fmt"
	"strings"

	"orderdesk/internal"
	"orderdesk/internal/util"
)

const headerOrderID = "订单ID"

// setter writes one parsed cell into its order field.
type setter func(o *internal.Order, cell string)

// headerColumns maps the export's Chinese header names onto order fields.
// Each setter owns the parsing for its column; empty and unparseable cells
// stay nil.
var headerColumns = map[string]setter{
	headerOrderID: func(o *internal.Order, c string) { o.OrderID = strings.TrimSpace(c) },
	"角色":          func(o *internal.Order, c string) { o.Role = util.StrCell(c) },
	"处理人":         func(o *internal.Order, c string) { o.Handler = util.StrCell(c) },
	"工艺":          func(o *internal.Order, c string) { o.Process = util.StrCell(c) },
	"金额":          func(o *internal.Order, c string) { o.Amount = util.ParseAmount(c) },
	"高清图数":        func(o *internal.Order, c string) { o.PictureAmount = util.ParseCount(c) },
	"印制报价":        func(o *internal.Order, c string) { o.PicturePrice = util.ParseAmount(c) },
	"高清图尺寸成本":     func(o *internal.Order, c string) { o.PictureCost = util.ParseAmount(c) },
	"高清图颜色成本":     func(o *internal.Order, c string) { o.ColorCost = util.ParseAmount(c) },
	"高清图工费成本":     func(o *internal.Order, c string) { o.WorkCost = util.ParseAmount(c) },
	"衣服售价总额":      func(o *internal.Order, c string) { o.ClothPrice = util.ParseAmount(c) },
	"衣服总数":        func(o *internal.Order, c string) { o.Quantity = util.ParseCount(c) },
	"衣服成本":        func(o *internal.Order, c string) { o.ClothCost = util.ParseAmount(c) },
	"叠衣服成本":       func(o *internal.Order, c string) { o.ClothPackCost = util.ParseAmount(c) },
	"衣服款式":        func(o *internal.Order, c string) { o.ClothCode = util.StrCell(c) },
	"颜色总数":        func(o *internal.Order, c string) { o.ColorAmount = util.ParseCount(c) },
	"客户":          func(o *internal.Order, c string) { o.CustomerName = util.StrCell(c) },
	"电话":          func(o *internal.Order, c string) { o.Phone = util.StrCell(c) },
	"渠道":          func(o *internal.Order, c string) { o.Shop = util.StrCell(c) },
	"快递":          func(o *internal.Order, c string) { o.Express = util.StrCell(c) },
	"订单状态":        func(o *internal.Order, c string) { o.OrderStatus = util.StrCell(c) },
	"下单时间":        func(o *internal.Order, c string) { o.OrderCreatedDate = util.ParseDate(c) },
	"处理时间":        func(o *internal.Order, c string) { o.OrderProcessedDate = util.ParseDate(c) },
	"完成时间":        func(o *internal.Order, c string) { o.CompletionDate = util.ParseDate(c) },
	"订单分类":        func(o *internal.Order, c string) { o.OrderType = util.StrCell(c) },
	"备注":          func(o *internal.Order, c string) { o.Notes = util.StrCell(c) },
}

// resolveHeaders maps header cell positions to column setters. Unknown
// headers are skipped; a sheet without the order id column is unusable.
func resolveHeaders(header []string) (map[int]setter, error) {
	cols := make(map[int]setter)
	hasID := false
	for i, cell := range header {
		name := strings.TrimSpace(cell)
		set, ok := headerColumns[name]
		if !ok {
			continue
		}
		cols[i] = set
		if name == headerOrderID {
			hasID = true
		}
	}
	if !hasID {
		return nil, fmt.Errorf("header row has no %s column", headerOrderID)
	}
	return cols, nil
}

func rowToOrder(cols map[int]setter, row []string) internal.Order {
	var o internal.Order
	for i, set := range cols {
		if i < len(row) {
			set(&o, row[i])
		}
	}
	return o
}

package importer

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"orderdesk/internal"
)

// rowError is one skipped data row, reported against its 1-based sheet row.
type rowError struct {
	Row    int
	Reason string
}

// parsed is the outcome of reading one export file.
type parsed struct {
	orders     []internal.Order
	rowErrors  []rowError
	duplicates int
}

// parseWorkbook reads the first sheet of an xlsx workbook.
func parseWorkbook(content []byte) (parsed, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return parsed{}, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return parsed{}, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return parsed{}, err
	}
	return rowsToOrders(rows)
}

// rowsToOrders translates the header row plus data rows into orders. Rows
// without an order id are counted as errors; later rows repeating an order id
// are dropped in favor of the first.
func rowsToOrders(rows [][]string) (parsed, error) {
	if len(rows) == 0 {
		return parsed{}, fmt.Errorf("sheet is empty")
	}
	cols, err := resolveHeaders(rows[0])
	if err != nil {
		return parsed{}, err
	}

	var p parsed
	seen := make(map[string]bool)
	for i, row := range rows[1:] {
		if emptyRow(row) {
			continue
		}
		o := rowToOrder(cols, row)
		if o.OrderID == "" {
			p.rowErrors = append(p.rowErrors, rowError{Row: i + 2, Reason: "missing order id"})
			continue
		}
		if seen[o.OrderID] {
			p.duplicates++
			continue
		}
		seen[o.OrderID] = true
		p.orders = append(p.orders, o)
	}
	return p, nil
}

func emptyRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

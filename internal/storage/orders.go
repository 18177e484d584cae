package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"orderdesk/internal"
)

const orderColumns = `order_id, role, handler, process, amount, picture_amount, picture_price, picture_cost, color_cost, work_cost, cloth_price, quantity, cloth_cost, cloth_pack_cost, cloth_code, color_amount, customer_name, phone, shop, express, order_status, order_created_date, order_processed_date, completion_date, order_type, notes, created_at, updated_at`

const orderColumnCount = 28

const idChunkSize = 500

func orderTable(kind internal.OrderKind) string {
	switch kind {
	case internal.KindSample:
		return "sample_orders"
	case internal.KindBulk:
		return "bulk_orders"
	}
	panic(fmt.Sprintf("storage: unknown order kind %q", kind))
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func orderArgs(o internal.Order) []any {
	return []any{
		o.OrderID, o.Role, o.Handler, o.Process, o.Amount, o.PictureAmount,
		o.PicturePrice, o.PictureCost, o.ColorCost, o.WorkCost, o.ClothPrice,
		o.Quantity, o.ClothCost, o.ClothPackCost, o.ClothCode, o.ColorAmount,
		o.CustomerName, o.Phone, o.Shop, o.Express, o.OrderStatus,
		fmtTimePtr(o.OrderCreatedDate), fmtTimePtr(o.OrderProcessedDate), fmtTimePtr(o.CompletionDate),
		o.OrderType, o.Notes, fmtTime(o.CreatedAt), fmtTime(o.UpdatedAt),
	}
}

func scanOrder(rows *sql.Rows) (internal.Order, error) {
	var o internal.Order
	var createdRaw string
	var updatedRaw, createdDateRaw, processedDateRaw, completionDateRaw *string

	if err := rows.Scan(
		&o.ID, &o.OrderID, &o.Role, &o.Handler, &o.Process, &o.Amount,
		&o.PictureAmount, &o.PicturePrice, &o.PictureCost, &o.ColorCost,
		&o.WorkCost, &o.ClothPrice, &o.Quantity, &o.ClothCost, &o.ClothPackCost,
		&o.ClothCode, &o.ColorAmount, &o.CustomerName, &o.Phone, &o.Shop,
		&o.Express, &o.OrderStatus, &createdDateRaw, &processedDateRaw,
		&completionDateRaw, &o.OrderType, &o.Notes, &createdRaw, &updatedRaw,
	); err != nil {
		return internal.Order{}, err
	}

	var err error
	if o.OrderCreatedDate, err = parseTimePtr(createdDateRaw); err != nil {
		return internal.Order{}, err
	}
	if o.OrderProcessedDate, err = parseTimePtr(processedDateRaw); err != nil {
		return internal.Order{}, err
	}
	if o.CompletionDate, err = parseTimePtr(completionDateRaw); err != nil {
		return internal.Order{}, err
	}
	if o.CreatedAt, err = parseTime(createdRaw); err != nil {
		return internal.Order{}, err
	}
	updated, err := parseTimePtr(updatedRaw)
	if err != nil {
		return internal.Order{}, err
	}
	if updated != nil {
		o.UpdatedAt = *updated
	}

	return o, nil
}

func (d *DB) queryOrders(query string, args ...any) ([]internal.Order, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type UpsertResult struct {
	Inserted int
	Updated  int
	Errors   int
}

// UpsertOriginalOrders writes a batch into the canonical table in one
// transaction. Existing rows keep their created_at; every touched row gets
// updated_at = now. The inserted/updated split is computed against the ids
// present before the batch ran, read in chunks of batchSize.
func (d *DB) UpsertOriginalOrders(orders []internal.Order, batchSize int, now time.Time) (UpsertResult, error) {
	var res UpsertResult
	if len(orders) == 0 {
		return res, nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.OrderID)
	}
	existing, err := d.existingOrderIDs("original_orders", ids, batchSize)
	if err != nil {
		return res, err
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO original_orders (` + orderColumns + `)
VALUES (` + placeholders(orderColumnCount) + `)
ON CONFLICT(order_id) DO UPDATE SET
  role=excluded.role,
  handler=excluded.handler,
  process=excluded.process,
  amount=excluded.amount,
  picture_amount=excluded.picture_amount,
  picture_price=excluded.picture_price,
  picture_cost=excluded.picture_cost,
  color_cost=excluded.color_cost,
  work_cost=excluded.work_cost,
  cloth_price=excluded.cloth_price,
  quantity=excluded.quantity,
  cloth_cost=excluded.cloth_cost,
  cloth_pack_cost=excluded.cloth_pack_cost,
  cloth_code=excluded.cloth_code,
  color_amount=excluded.color_amount,
  customer_name=excluded.customer_name,
  phone=excluded.phone,
  shop=excluded.shop,
  express=excluded.express,
  order_status=excluded.order_status,
  order_created_date=excluded.order_created_date,
  order_processed_date=excluded.order_processed_date,
  completion_date=excluded.completion_date,
  order_type=excluded.order_type,
  notes=excluded.notes,
  updated_at=excluded.updated_at
`)
	if err != nil {
		return res, err
	}
	defer stmt.Close()

	for _, o := range orders {
		o.CreatedAt = now
		o.UpdatedAt = now
		if _, err := stmt.Exec(orderArgs(o)...); err != nil {
			res.Errors++
			continue
		}
		if existing[o.OrderID] {
			res.Updated++
		} else {
			res.Inserted++
		}
	}

	return res, tx.Commit()
}

func (d *DB) existingOrderIDs(table string, ids []string, chunk int) (map[string]bool, error) {
	if chunk <= 0 {
		chunk = idChunkSize
	}
	out := make(map[string]bool, len(ids))
	for start := 0; start < len(ids); start += chunk {
		end := start + chunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		rows, err := d.conn.Query(`SELECT order_id FROM `+table+` WHERE order_id IN (`+placeholders(len(chunk))+`)`, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return nil, err
			}
			out[id] = true
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()
	}
	return out, nil
}

// CanonicalOrdersByTypes returns every canonical order whose label is in the
// given set, in insertion order.
func (d *DB) CanonicalOrdersByTypes(labels []string) ([]internal.Order, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	args := make([]any, len(labels))
	for i, label := range labels {
		args[i] = label
	}
	return d.queryOrders(`SELECT id, `+orderColumns+` FROM original_orders WHERE order_type IN (`+placeholders(len(labels))+`) ORDER BY id`, args...)
}

// TypedOrderStamps maps order_id to updated_at for a typed table. A nil stamp
// means the row has no timestamp and always counts as stale.
func (d *DB) TypedOrderStamps(kind internal.OrderKind) (map[string]*time.Time, error) {
	rows, err := d.conn.Query(`SELECT order_id, updated_at FROM ` + orderTable(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*time.Time)
	for rows.Next() {
		var id string
		var raw *string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		stamp, err := parseTimePtr(raw)
		if err != nil {
			return nil, err
		}
		out[id] = stamp
	}
	return out, rows.Err()
}

type SyncApply struct {
	Inserted int
	Updated  int
	Errors   int
}

// ApplyOrderSync writes a planned batch onto a typed table in one
// transaction. Inserts copy the canonical row verbatim, timestamps included;
// updates mirror the business fields and stamp updated_at with now. A failed
// statement counts as a row error and does not abort the batch.
func (d *DB) ApplyOrderSync(kind internal.OrderKind, inserts, updates []internal.Order, now time.Time) (SyncApply, error) {
	var res SyncApply
	if len(inserts) == 0 && len(updates) == 0 {
		return res, nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback() }()

	table := orderTable(kind)

	insStmt, err := tx.Prepare(`INSERT INTO ` + table + ` (` + orderColumns + `) VALUES (` + placeholders(orderColumnCount) + `)`)
	if err != nil {
		return res, err
	}
	defer insStmt.Close()

	updStmt, err := tx.Prepare(`
UPDATE ` + table + ` SET
  role=?, handler=?, process=?, amount=?, picture_amount=?, picture_price=?,
  picture_cost=?, color_cost=?, work_cost=?, cloth_price=?, quantity=?,
  cloth_cost=?, cloth_pack_cost=?, cloth_code=?, color_amount=?,
  customer_name=?, phone=?, shop=?, express=?, order_status=?,
  order_created_date=?, order_processed_date=?, completion_date=?,
  order_type=?, notes=?, updated_at=?
WHERE order_id=?`)
	if err != nil {
		return res, err
	}
	defer updStmt.Close()

	for _, o := range inserts {
		if _, err := insStmt.Exec(orderArgs(o)...); err != nil {
			res.Errors++
			continue
		}
		res.Inserted++
	}

	for _, o := range updates {
		if _, err := updStmt.Exec(
			o.Role, o.Handler, o.Process, o.Amount, o.PictureAmount, o.PicturePrice,
			o.PictureCost, o.ColorCost, o.WorkCost, o.ClothPrice, o.Quantity,
			o.ClothCost, o.ClothPackCost, o.ClothCode, o.ColorAmount,
			o.CustomerName, o.Phone, o.Shop, o.Express, o.OrderStatus,
			fmtTimePtr(o.OrderCreatedDate), fmtTimePtr(o.OrderProcessedDate), fmtTimePtr(o.CompletionDate),
			o.OrderType, o.Notes, fmtTime(now), o.OrderID,
		); err != nil {
			res.Errors++
			continue
		}
		res.Updated++
	}

	return res, tx.Commit()
}

// TypedOrdersWithCustomer returns the typed rows eligible for customer
// extraction: a present customer name and a present order id.
func (d *DB) TypedOrdersWithCustomer(kind internal.OrderKind) ([]internal.Order, error) {
	return d.queryOrders(`SELECT id, ` + orderColumns + ` FROM ` + orderTable(kind) + `
WHERE customer_name IS NOT NULL AND customer_name != '' AND order_id != ''
ORDER BY id`)
}

func (d *DB) GetOriginalOrder(orderID string) (*internal.Order, error) {
	return d.getOrder("original_orders", orderID)
}

func (d *DB) GetTypedOrder(kind internal.OrderKind, orderID string) (*internal.Order, error) {
	return d.getOrder(orderTable(kind), orderID)
}

func (d *DB) getOrder(table, orderID string) (*internal.Order, error) {
	rows, err := d.conn.Query(`SELECT id, `+orderColumns+` FROM `+table+` WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, nil
	}
	o, err := scanOrder(rows)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

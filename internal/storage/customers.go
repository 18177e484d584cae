package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"orderdesk/internal"
)

func customerTable(kind internal.OrderKind) string {
	switch kind {
	case internal.KindSample:
		return "sample_customers"
	case internal.KindBulk:
		return "bulk_customers"
	}
	panic(fmt.Sprintf("storage: unknown order kind %q", kind))
}

func relationTable(kind internal.OrderKind) string {
	switch kind {
	case internal.KindSample:
		return "sample_order_customers"
	case internal.KindBulk:
		return "bulk_order_customers"
	}
	panic(fmt.Sprintf("storage: unknown order kind %q", kind))
}

// customerSelect lines the two registries up on one scan shape. Bulk rows
// have no conversion_date column, so a NULL is selected in its position.
func customerSelect(kind internal.OrderKind) string {
	switch kind {
	case internal.KindSample:
		return `SELECT id, customer_name, shop, region, handler, phone, wechat, notes,
  orders_count, total_amount, first_order_date, last_order_date,
  converted_to_bulk, conversion_date, bulk_customer_id, created_at, updated_at
FROM sample_customers`
	case internal.KindBulk:
		return `SELECT id, customer_name, shop, region, handler, phone, wechat, notes,
  orders_count, total_amount, first_order_date, last_order_date,
  converted_from_sample, NULL, sample_customer_id, created_at, updated_at
FROM bulk_customers`
	}
	panic(fmt.Sprintf("storage: unknown order kind %q", kind))
}

func scanCustomer(rows *sql.Rows) (internal.Customer, error) {
	var c internal.Customer
	var createdRaw, updatedRaw string
	var firstRaw, lastRaw, conversionRaw *string

	if err := rows.Scan(
		&c.ID, &c.CustomerName, &c.Shop, &c.Region, &c.Handler, &c.Phone,
		&c.Wechat, &c.Notes, &c.OrdersCount, &c.TotalAmount, &firstRaw,
		&lastRaw, &c.Converted, &conversionRaw, &c.CounterpartID,
		&createdRaw, &updatedRaw,
	); err != nil {
		return internal.Customer{}, err
	}

	var err error
	if c.FirstOrderDate, err = parseTimePtr(firstRaw); err != nil {
		return internal.Customer{}, err
	}
	if c.LastOrderDate, err = parseTimePtr(lastRaw); err != nil {
		return internal.Customer{}, err
	}
	if c.ConversionDate, err = parseTimePtr(conversionRaw); err != nil {
		return internal.Customer{}, err
	}
	if c.CreatedAt, err = parseTime(createdRaw); err != nil {
		return internal.Customer{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedRaw); err != nil {
		return internal.Customer{}, err
	}

	return c, nil
}

func scanCustomers(rows *sql.Rows) ([]internal.Customer, error) {
	defer rows.Close()
	var out []internal.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) AllCustomers(kind internal.OrderKind) ([]internal.Customer, error) {
	rows, err := d.conn.Query(customerSelect(kind) + ` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return scanCustomers(rows)
}

func (d *DB) GetCustomer(kind internal.OrderKind, id int64) (*internal.Customer, error) {
	rows, err := d.conn.Query(customerSelect(kind)+` WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	out, err := scanCustomers(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// ListCustomers filters by handler when one is given. limit <= 0 lists all.
func (d *DB) ListCustomers(kind internal.OrderKind, handler string, limit int) ([]internal.Customer, error) {
	if limit <= 0 {
		limit = -1
	}
	query := customerSelect(kind)
	args := []any{}
	if handler != "" {
		query += ` WHERE handler = ?`
		args = append(args, handler)
	}
	query += ` ORDER BY id LIMIT ?`
	args = append(args, limit)

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return scanCustomers(rows)
}

// UnconvertedSampleCustomers lists sample customers still without a bulk
// counterpart, biggest spenders first.
func (d *DB) UnconvertedSampleCustomers(limit int) ([]internal.Customer, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.conn.Query(customerSelect(internal.KindSample)+` WHERE converted_to_bulk = 0 ORDER BY total_amount DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return scanCustomers(rows)
}

func (d *DB) CustomerSummary() (internal.CustomerSummary, error) {
	var s internal.CustomerSummary
	counts := []struct {
		query string
		dst   *int64
	}{
		{query: `SELECT COUNT(*) FROM sample_customers`, dst: &s.SampleCustomers},
		{query: `SELECT COUNT(*) FROM bulk_customers`, dst: &s.BulkCustomers},
		{query: `SELECT COUNT(*) FROM sample_customers WHERE converted_to_bulk = 1`, dst: &s.ConvertedSamples},
		{query: `SELECT COUNT(*) FROM customer_conversions`, dst: &s.Conversions},
	}
	for _, c := range counts {
		if err := d.conn.QueryRow(c.query).Scan(c.dst); err != nil {
			return internal.CustomerSummary{}, err
		}
	}
	if s.SampleCustomers > 0 {
		s.ConversionRate = float64(s.ConvertedSamples) / float64(s.SampleCustomers) * 100
	}
	return s, nil
}

// CustomerUpdate carries the fields the update surface may touch. Nil fields
// are left alone.
type CustomerUpdate struct {
	CustomerName *string
	Shop         *string
	Region       *string
	Handler      *string
	Phone        *string
	Wechat       *string
	Notes        *string
}

func (d *DB) UpdateCustomerFields(kind internal.OrderKind, id int64, upd CustomerUpdate, now time.Time) (bool, error) {
	var sets []string
	var args []any
	add := func(col string, val *string) {
		if val != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *val)
		}
	}
	add("customer_name", upd.CustomerName)
	add("shop", upd.Shop)
	add("region", upd.Region)
	add("handler", upd.Handler)
	add("phone", upd.Phone)
	add("wechat", upd.Wechat)
	add("notes", upd.Notes)
	if len(sets) == 0 {
		return false, nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, fmtTime(now), id)

	res, err := d.conn.Exec(`UPDATE `+customerTable(kind)+` SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CustomerTx scopes one extraction pass over a registry to a single
// transaction. Lookups inside the transaction see rows created earlier in the
// same pass.
type CustomerTx struct {
	tx   *sql.Tx
	kind internal.OrderKind
}

func (d *DB) BeginCustomerTx(kind internal.OrderKind) (*CustomerTx, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return nil, err
	}
	return &CustomerTx{tx: tx, kind: kind}, nil
}

func (t *CustomerTx) Commit() error {
	return t.tx.Commit()
}

func (t *CustomerTx) Rollback() error {
	return t.tx.Rollback()
}

// FindCustomer matches by exact name, narrowed by shop when the sighting has
// one. With several matches the oldest row wins.
func (t *CustomerTx) FindCustomer(name string, shop *string) (*internal.Customer, error) {
	query := customerSelect(t.kind) + ` WHERE customer_name = ?`
	args := []any{name}
	if shop != nil && *shop != "" {
		query += ` AND shop = ?`
		args = append(args, *shop)
	}
	query += ` ORDER BY id LIMIT 1`

	rows, err := t.tx.Query(query, args...)
	if err != nil {
		return nil, err
	}
	out, err := scanCustomers(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (t *CustomerTx) InsertCustomer(name string, shop, handler *string, now time.Time) (int64, error) {
	res, err := t.tx.Exec(`
INSERT INTO `+customerTable(t.kind)+` (customer_name, shop, handler, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`, name, shop, handler, fmtTime(now), fmtTime(now))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FillCustomerMeta writes only the provided fields; callers pass just the
// gaps so first-write-wins metadata is preserved.
func (t *CustomerTx) FillCustomerMeta(id int64, shop, handler *string, now time.Time) error {
	var sets []string
	var args []any
	if shop != nil {
		sets = append(sets, "shop = ?")
		args = append(args, *shop)
	}
	if handler != nil {
		sets = append(sets, "handler = ?")
		args = append(args, *handler)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, fmtTime(now), id)

	_, err := t.tx.Exec(`UPDATE `+customerTable(t.kind)+` SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return err
}

// InsertRelation records an order to customer association. Returns false when
// the pair already exists; the duplicate is a benign no-op.
func (t *CustomerTx) InsertRelation(customerID int64, orderID string, orderDate *time.Time, amount *float64, now time.Time) (bool, error) {
	res, err := t.tx.Exec(`
INSERT INTO `+relationTable(t.kind)+` (customer_id, order_id, order_date, amount, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(customer_id, order_id) DO NOTHING`,
		customerID, orderID, fmtTimePtr(orderDate), amount, fmtTime(now))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ConversionTx scopes one conversion detection pass to a single transaction.
type ConversionTx struct {
	tx *sql.Tx
}

func (d *DB) BeginConversionTx() (*ConversionTx, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return nil, err
	}
	return &ConversionTx{tx: tx}, nil
}

func (t *ConversionTx) Commit() error {
	return t.tx.Commit()
}

func (t *ConversionTx) Rollback() error {
	return t.tx.Rollback()
}

// InsertConversion returns false when the pair is already recorded.
func (t *ConversionTx) InsertConversion(sampleID, bulkID int64, date, now time.Time) (bool, error) {
	res, err := t.tx.Exec(`
INSERT INTO customer_conversions (sample_customer_id, bulk_customer_id, conversion_date, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(sample_customer_id, bulk_customer_id) DO NOTHING`,
		sampleID, bulkID, fmtTime(date), fmtTime(now))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *ConversionTx) MarkSampleConverted(id, bulkID int64, date, now time.Time) error {
	_, err := t.tx.Exec(`
UPDATE sample_customers SET converted_to_bulk = 1, conversion_date = ?, bulk_customer_id = ?, updated_at = ?
WHERE id = ?`, fmtTime(date), bulkID, fmtTime(now), id)
	return err
}

func (t *ConversionTx) MarkBulkConverted(id, sampleID int64, now time.Time) error {
	_, err := t.tx.Exec(`
UPDATE bulk_customers SET converted_from_sample = 1, sample_customer_id = ?, updated_at = ?
WHERE id = ?`, sampleID, fmtTime(now), id)
	return err
}

func (d *DB) Relations(kind internal.OrderKind) ([]internal.OrderRelation, error) {
	rows, err := d.conn.Query(`SELECT id, customer_id, order_id, order_date, amount, created_at FROM ` + relationTable(kind) + ` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.OrderRelation
	for rows.Next() {
		var r internal.OrderRelation
		var dateRaw *string
		var createdRaw string
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.OrderID, &dateRaw, &r.Amount, &createdRaw); err != nil {
			return nil, err
		}
		if r.OrderDate, err = parseTimePtr(dateRaw); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(createdRaw); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CustomerStats is one recomputed aggregate row.
type CustomerStats struct {
	CustomerID     int64
	OrdersCount    int64
	TotalAmount    float64
	FirstOrderDate *time.Time
	LastOrderDate  *time.Time
}

// ApplyCustomerStats overwrites the aggregates of every given customer in one
// transaction. The recompute is atomic: any failure rolls the batch back.
func (d *DB) ApplyCustomerStats(kind internal.OrderKind, stats []CustomerStats, now time.Time) (int, error) {
	if len(stats) == 0 {
		return 0, nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
UPDATE ` + customerTable(kind) + ` SET
  orders_count = ?, total_amount = ?, first_order_date = ?, last_order_date = ?, updated_at = ?
WHERE id = ?`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	updated := 0
	for _, s := range stats {
		if _, err := stmt.Exec(s.OrdersCount, s.TotalAmount, fmtTimePtr(s.FirstOrderDate), fmtTimePtr(s.LastOrderDate), fmtTime(now), s.CustomerID); err != nil {
			return 0, err
		}
		updated++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}

// ConversionDetails lists every recorded conversion joined with both
// registry rows, for reporting.
func (d *DB) ConversionDetails() ([]internal.ConversionDetail, error) {
	rows, err := d.conn.Query(`
SELECT cc.id, cc.sample_customer_id, cc.bulk_customer_id, cc.conversion_date,
       cc.sample_order_id, cc.bulk_order_id, cc.conversion_days, cc.created_at,
       COALESCE(sc.customer_name, ''), sc.shop,
       COALESCE(bc.customer_name, ''), bc.shop
FROM customer_conversions cc
LEFT JOIN sample_customers sc ON sc.id = cc.sample_customer_id
LEFT JOIN bulk_customers bc ON bc.id = cc.bulk_customer_id
ORDER BY cc.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ConversionDetail
	for rows.Next() {
		var c internal.ConversionDetail
		var dateRaw, createdRaw string
		if err := rows.Scan(
			&c.ID, &c.SampleCustomerID, &c.BulkCustomerID, &dateRaw,
			&c.SampleOrderID, &c.BulkOrderID, &c.ConversionDays, &createdRaw,
			&c.SampleCustomerName, &c.SampleShop,
			&c.BulkCustomerName, &c.BulkShop,
		); err != nil {
			return nil, err
		}
		if c.ConversionDate, err = parseTime(dateRaw); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(createdRaw); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

package storage

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA foreign_keys = ON;`,
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`, key, value, fmtTime(time.Now()))
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// Totals is the row census used by the status command.
type Totals struct {
	OriginalOrders  int64
	SampleOrders    int64
	BulkOrders      int64
	SampleCustomers int64
	BulkCustomers   int64
	SampleRelations int64
	BulkRelations   int64
	Conversions     int64
	ImportFiles     int64
}

func (d *DB) Totals() (Totals, error) {
	var t Totals
	counts := []struct {
		table string
		dst   *int64
	}{
		{table: "original_orders", dst: &t.OriginalOrders},
		{table: "sample_orders", dst: &t.SampleOrders},
		{table: "bulk_orders", dst: &t.BulkOrders},
		{table: "sample_customers", dst: &t.SampleCustomers},
		{table: "bulk_customers", dst: &t.BulkCustomers},
		{table: "sample_order_customers", dst: &t.SampleRelations},
		{table: "bulk_order_customers", dst: &t.BulkRelations},
		{table: "customer_conversions", dst: &t.Conversions},
		{table: "import_files", dst: &t.ImportFiles},
	}
	for _, c := range counts {
		if err := d.conn.QueryRow(`SELECT COUNT(*) FROM ` + c.table).Scan(c.dst); err != nil {
			return Totals{}, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return t, nil
}

const timeFormat = time.RFC3339Nano

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmtTime(*t)
	return &s
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

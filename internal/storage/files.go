package storage

import (
	"database/sql"
	"errors"
	"time"

	"orderdesk/internal"
)

// ImportFileByHash reports whether a spreadsheet with this content hash has
// been seen before. Returns nil when unknown.
func (d *DB) ImportFileByHash(hash string) (*internal.ImportFile, error) {
	row := d.conn.QueryRow(`
SELECT id, filename, hash, size, status, counts_json, created_at, updated_at
FROM import_files WHERE hash = ?`, hash)
	return scanImportFile(row)
}

// RecordImportFile registers an import attempt outcome, keyed by content
// hash. A retried file overwrites its previous status.
func (d *DB) RecordImportFile(f internal.ImportFile, now time.Time) (int64, error) {
	_, err := d.conn.Exec(`
INSERT INTO import_files (filename, hash, size, status, counts_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(hash) DO UPDATE SET
  filename=excluded.filename,
  size=excluded.size,
  status=excluded.status,
  counts_json=excluded.counts_json,
  updated_at=excluded.updated_at
`, f.Filename, f.Hash, f.Size, string(f.Status), f.CountsJSON, fmtTime(now), fmtTime(now))
	if err != nil {
		return 0, err
	}

	var id int64
	if err := d.conn.QueryRow(`SELECT id FROM import_files WHERE hash = ?`, f.Hash).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (d *DB) ListImportFiles(limit int) ([]internal.ImportFile, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.conn.Query(`
SELECT id, filename, hash, size, status, counts_json, created_at, updated_at
FROM import_files ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ImportFile
	for rows.Next() {
		var f internal.ImportFile
		var status, createdRaw, updatedRaw string
		if err := rows.Scan(&f.ID, &f.Filename, &f.Hash, &f.Size, &status, &f.CountsJSON, &createdRaw, &updatedRaw); err != nil {
			return nil, err
		}
		f.Status = internal.ImportFileStatus(status)
		if f.CreatedAt, err = parseTime(createdRaw); err != nil {
			return nil, err
		}
		if f.UpdatedAt, err = parseTime(updatedRaw); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanImportFile(row *sql.Row) (*internal.ImportFile, error) {
	var f internal.ImportFile
	var status, createdRaw, updatedRaw string
	err := row.Scan(&f.ID, &f.Filename, &f.Hash, &f.Size, &status, &f.CountsJSON, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f.Status = internal.ImportFileStatus(status)
	if f.CreatedAt, err = parseTime(createdRaw); err != nil {
		return nil, err
	}
	if f.UpdatedAt, err = parseTime(updatedRaw); err != nil {
		return nil, err
	}
	return &f, nil
}

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"orderdesk/internal"
)

func (d *DB) InsertRun(run internal.RunRecord, now time.Time) error {
	timingsJSON, _ := json.Marshal(run.TimingsMs)
	countsJSON, _ := json.Marshal(run.Counts)
	_, err := d.conn.Exec(`
INSERT INTO reconcile_runs (run_id, triggered_by, timings_json, counts_json, created_at)
VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.Trigger, string(timingsJSON), string(countsJSON), fmtTime(now))
	return err
}

func (d *DB) LastRun() (*internal.RunRecord, error) {
	var run internal.RunRecord
	var timingsJSON, countsJSON, createdRaw string
	err := d.conn.QueryRow(`
SELECT id, run_id, triggered_by, timings_json, counts_json, created_at
FROM reconcile_runs ORDER BY id DESC LIMIT 1`).Scan(
		&run.ID, &run.RunID, &run.Trigger, &timingsJSON, &countsJSON, &createdRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(timingsJSON), &run.TimingsMs)
	_ = json.Unmarshal([]byte(countsJSON), &run.Counts)
	if run.CreatedAt, err = parseTime(createdRaw); err != nil {
		return nil, err
	}
	return &run, nil
}

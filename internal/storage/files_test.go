package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/internal"
)

func TestRecordImportFileUpsertsByHash(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	first, err := db.RecordImportFile(internal.ImportFile{
		Filename: "orders.xlsx",
		Hash:     "abc123",
		Size:     1024,
		Status:   internal.ImportFileFailed,
	}, now)
	require.NoError(t, err)

	// A retry of the same content keeps the row, refreshed.
	second, err := db.RecordImportFile(internal.ImportFile{
		Filename: "orders-renamed.xlsx",
		Hash:     "abc123",
		Size:     1024,
		Status:   internal.ImportFileImported,
		CountsJSON: `{"inserted":2,"updated":0,"errors":0}`,
	}, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got, err := db.ImportFileByHash("abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "orders-renamed.xlsx", got.Filename)
	assert.Equal(t, internal.ImportFileImported, got.Status)
	assert.Contains(t, got.CountsJSON, `"inserted":2`)
}

func TestImportFileByHashUnknown(t *testing.T) {
	db := openTestDB(t)

	got, err := db.ImportFileByHash("deadbeef")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListImportFilesNewestFirst(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	for i, name := range []string{"a.xlsx", "b.xlsx", "c.xlsx"} {
		_, err := db.RecordImportFile(internal.ImportFile{
			Filename: name,
			Hash:     name,
			Status:   internal.ImportFileImported,
		}, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	files, err := db.ListImportFiles(2)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "c.xlsx", files[0].Filename)
	assert.Equal(t, "b.xlsx", files[1].Filename)
}

func TestRunRecordRoundTrip(t *testing.T) {
	db := openTestDB(t)

	empty, err := db.LastRun()
	require.NoError(t, err)
	assert.Nil(t, empty)

	run := internal.RunRecord{
		RunID:   uuid.NewString(),
		Trigger: "cli",
		TimingsMs: map[string]int64{
			"sync_ms":  12,
			"total_ms": 40,
		},
		Counts: map[string]int{
			"sample_orders_inserted": 3,
			"conversions":            1,
		},
	}
	require.NoError(t, db.InsertRun(run, time.Now()))

	got, err := db.LastRun()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, "cli", got.Trigger)
	assert.Equal(t, int64(40), got.TimingsMs["total_ms"])
	assert.Equal(t, 3, got.Counts["sample_orders_inserted"])
	assert.Equal(t, 1, got.Counts["conversions"])
}

package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "orderdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenCreatesSchema(t *testing.T) {
	db := openTestDB(t)

	totals, err := db.Totals()
	require.NoError(t, err)
	assert.Equal(t, Totals{}, totals)
}

func TestMetadataRoundTrip(t *testing.T) {
	db := openTestDB(t)

	v, err := db.GetMetadata("missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, db.SetMetadata("reconcile.last_run_at", "2026-01-01T00:00:00Z"))
	require.NoError(t, db.SetMetadata("reconcile.last_run_at", "2026-02-02T00:00:00Z"))

	v, err = db.GetMetadata("reconcile.last_run_at")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "2026-02-02T00:00:00Z", *v)
}

func TestParseTimeAcceptsStoredLayouts(t *testing.T) {
	cases := []struct {
		input string
		want  time.Time
	}{
		{"2024-01-02T15:04:05.123456789Z", time.Date(2024, 1, 2, 15, 4, 5, 123456789, time.UTC)},
		{"2024-01-02T15:04:05Z", time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)},
		{"2024-01-02 15:04:05", time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)},
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got, err := parseTime(c.input)
		require.NoError(t, err, c.input)
		assert.True(t, got.Equal(c.want), "%s parsed to %s", c.input, got)
	}

	_, err := parseTime("02/01/2024 nonsense")
	require.Error(t, err)
	assert.ErrorContains(t, err, "unrecognized timestamp")
}

func TestFmtTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 25, 9, 30, 0, 987654321, time.FixedZone("CST", 8*3600))

	parsed, err := parseTime(fmtTime(now))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(now))

	assert.Nil(t, fmtTimePtr(nil))
	p, err := parseTimePtr(nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

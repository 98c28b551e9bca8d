package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adbfleet/models"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := Open(filepath.Join(t.TempDir(), "data", "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func record(id string, ts int64, devices ...string) models.DispatchRecord {
	rec := models.DispatchRecord{ID: id, Command: "adb shell getprop", Devices: devices, Timestamp: ts}
	for _, d := range devices {
		rec.Results = append(rec.Results, models.DeviceOutcome{Device: d, Stdout: d + "-out"})
	}
	return rec
}

func TestRecordAndGet(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	rec := record("one", 100, "B", "A", "B")
	rec.Results[1].ExitCode = 1
	rec.Results[1].Stderr = "not found"
	rec.Results[2].Error = "spawn adb: permission denied"
	rec.Failed = 2
	require.NoError(t, h.Record(ctx, rec))

	got, err := h.Get(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestGetUnknown(t *testing.T) {
	h := openTestHistory(t)
	_, err := h.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecordDuplicateID(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()
	require.NoError(t, h.Record(ctx, record("dup", 1, "A")))
	require.Error(t, h.Record(ctx, record("dup", 2, "A")))

	records, err := h.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].Timestamp)
}

func TestListNewestFirstWithLimit(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()
	for _, rec := range []models.DispatchRecord{
		record("old", 100, "A"),
		record("new", 300, "A", "B"),
		record("mid", 200, "B"),
	} {
		require.NoError(t, h.Record(ctx, rec))
	}

	records, err := h.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "new", records[0].ID)
	assert.Equal(t, "mid", records[1].ID)
	assert.Equal(t, []string{"A", "B"}, records[0].Devices)
	require.Len(t, records[0].Results, 2)
	assert.Equal(t, "B-out", records[0].Results[1].Stdout)
}

func TestListEmpty(t *testing.T) {
	h := openTestHistory(t)
	records, err := h.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NotNil(t, records)
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, h.Record(context.Background(), record("kept", 1, "A")))
	require.NoError(t, h.Close())

	h, err = Open(path, nil)
	require.NoError(t, err)
	defer h.Close()
	_, err = h.Get(context.Background(), "kept")
	require.NoError(t, err)
}

package storage_test

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/plugmon/internal/errors"
	"codeberg.org/mutker/plugmon/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(storage.Config{
		Path:  filepath.Join(t.TempDir(), "data", "power.db"),
		Clock: func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func ptr[T any](v T) *T {
	return &v
}

func reading(deviceID string, ts int64, power float64) *storage.Reading {
	return &storage.Reading{
		DeviceID:         deviceID,
		Timestamp:        ts,
		Voltage:          ptr(120.1),
		ElectricCurrent:  ptr(0.45),
		Power:            ptr(power),
		ElectricityOfDay: ptr(321.0),
		PowerOn:          ptr(true),
	}
}

func TestAppendLatestRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	in := reading("A", fixedNow.Unix(), 42.5)
	require.True(t, store.Append(ctx, in))
	assert.NotZero(t, in.ID)

	got, err := store.Latest(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, "A", got.DeviceID)
	assert.Equal(t, in.Timestamp, got.Timestamp)
	require.NotNil(t, got.Power)
	assert.InDelta(t, 42.5, *got.Power, 1e-9)
	require.NotNil(t, got.PowerOn)
	assert.True(t, *got.PowerOn)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestAppendKeepsNullFields(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.True(t, store.Append(ctx, &storage.Reading{
		DeviceID:  "A",
		Timestamp: fixedNow.Unix(),
		Power:     ptr(0.0),
	}))

	got, err := store.Latest(ctx, "A")
	require.NoError(t, err)
	assert.Nil(t, got.Voltage)
	assert.Nil(t, got.PowerOn)
	require.NotNil(t, got.Power)
	assert.Zero(t, *got.Power)
}

func TestAppendRejectsReservedAndEmptyIDs(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	assert.False(t, store.Append(ctx, reading(storage.AllDevices, fixedNow.Unix(), 1)))
	assert.False(t, store.Append(ctx, reading("", fixedNow.Unix(), 1)))
	assert.False(t, store.Append(ctx, nil))

	_, err := store.Insert(ctx, reading(storage.AllDevices, fixedNow.Unix(), 1))
	assert.True(t, errors.HasCode(err, errors.ErrValidation))
}

func TestLatestNotFound(t *testing.T) {
	store := openStore(t)

	_, err := store.Latest(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))
}

func TestLatestBreaksTiesByID(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	ts := fixedNow.Unix()
	require.True(t, store.Append(ctx, reading("A", ts, 1)))
	second := reading("A", ts, 2)
	require.True(t, store.Append(ctx, second))
	require.True(t, store.Append(ctx, reading("A", ts-10, 3)))

	got, err := store.Latest(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestRangeSinceOrdering(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := fixedNow.Unix()

	for _, ts := range []int64{now - 7200, now - 60, now - 3600, now - 90000} {
		require.True(t, store.Append(ctx, reading("A", ts, 1)))
	}
	require.True(t, store.Append(ctx, reading("B", now, 1)))

	readings, err := store.RangeSince(ctx, "A", 24)
	require.NoError(t, err)
	require.Len(t, readings, 3)
	assert.Equal(t, now-60, readings[0].Timestamp)
	assert.Equal(t, now-3600, readings[1].Timestamp)
	assert.Equal(t, now-7200, readings[2].Timestamp)

	_, err = store.RangeSince(ctx, "A", 0)
	assert.True(t, errors.HasCode(err, errors.ErrValidation))
}

func TestRecentLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := fixedNow.Unix()

	for i := range 5 {
		require.True(t, store.Append(ctx, reading("A", now-int64(i*60), 1)))
	}

	readings, err := store.Recent(ctx, "A", 2)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, now, readings[0].Timestamp)
	assert.Equal(t, now-60, readings[1].Timestamp)

	readings, err = store.Recent(ctx, "A", 0)
	require.NoError(t, err)
	assert.Len(t, readings, 5)

	readings, err = store.Recent(ctx, "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, readings)
}

func TestKnownDeviceIDs(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	ids, err := store.KnownDeviceIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, id := range []string{"C", "A", "B", "A"} {
		require.True(t, store.Append(ctx, reading(id, fixedNow.Unix(), 1)))
	}

	ids, err = store.KnownDeviceIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, ids)
	assert.NotContains(t, ids, storage.AllDevices)
}

func TestStats(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := fixedNow.Unix()

	require.True(t, store.Append(ctx, reading("A", now-90000, 1)))
	require.True(t, store.Append(ctx, reading("A", now-60, 1)))
	require.True(t, store.Append(ctx, reading("B", now, 1)))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalRecords)
	assert.Equal(t, int64(2), stats.RecentRecords)
	require.Len(t, stats.Devices, 2)
	assert.NotContains(t, stats.Devices, storage.AllDevices)

	a := stats.Devices["A"]
	assert.Equal(t, int64(2), a.Count)
	assert.Equal(t, now-90000, a.FirstTimestamp)
	assert.Equal(t, now-60, a.LastTimestamp)
	assert.Equal(t, int64(1), a.RecentCount)
	assert.Positive(t, stats.StorageSizeBytes)
}

func TestExportCSV(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := fixedNow.Unix()

	require.True(t, store.Append(ctx, reading("A", now, 10)))
	require.True(t, store.Append(ctx, reading("A", now-60, 20)))
	require.True(t, store.Append(ctx, &storage.Reading{DeviceID: "B", Timestamp: now - 30}))

	var buf bytes.Buffer
	n, err := store.ExportCSV(ctx, &buf, storage.AllDevices, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, n+1)
	assert.Equal(t, strings.Join(storage.CSVHeader, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1773489540,"), lines[1])
	assert.Contains(t, lines[1], time.Unix(now-60, 0).Local().Format("2006-01-02T15:04:05"))
	assert.True(t, strings.HasSuffix(lines[2], ",B,,,,,"), lines[2])
	assert.True(t, strings.HasSuffix(lines[3], ",true"), lines[3])

	buf.Reset()
	n, err = store.ExportCSV(ctx, &buf, "A", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	buf.Reset()
	n, err = store.ExportCSV(ctx, &buf, "missing", 24)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, strings.Join(storage.CSVHeader, ",")+"\n", buf.String())
}

func TestDeleteByDevice(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.True(t, store.Append(ctx, reading("A", fixedNow.Unix(), 1)))
	require.True(t, store.Append(ctx, reading("A", fixedNow.Unix(), 2)))
	require.True(t, store.Append(ctx, reading("B", fixedNow.Unix(), 3)))

	deleted, err := store.DeleteByDevice(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = store.Latest(ctx, "A")
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))

	_, err = store.DeleteByDevice(ctx, "A")
	assert.True(t, errors.HasCode(err, errors.ErrNotFound))

	_, err = store.Latest(ctx, "B")
	assert.NoError(t, err)
}

func TestDeleteOlderThan(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := fixedNow.Unix()

	require.True(t, store.Append(ctx, reading("A", now-3600, 1)))
	require.True(t, store.Append(ctx, reading("A", now-90000, 1)))

	deleted, err := store.DeleteOlderThan(ctx, 1440)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = store.DeleteOlderThan(ctx, 1440)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	readings, err := store.Recent(ctx, "A", 0)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, now-3600, readings[0].Timestamp)

	_, err = store.DeleteOlderThan(ctx, 0)
	assert.True(t, errors.HasCode(err, errors.ErrValidation))
}

func TestWindowsBeyondTimeRange(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := fixedNow.Unix()

	require.True(t, store.Append(ctx, reading("A", now-60, 1)))
	require.True(t, store.Append(ctx, reading("A", now-3600, 1)))

	for _, minutes := range []int{200000 * 1440, math.MaxInt / 60, math.MaxInt} {
		deleted, err := store.DeleteOlderThan(ctx, minutes)
		require.NoError(t, err)
		assert.Zero(t, deleted, minutes)
	}

	for _, hours := range []int{3000000, math.MaxInt} {
		readings, err := store.RangeSince(ctx, "A", hours)
		require.NoError(t, err)
		assert.Len(t, readings, 2, hours)

		var buf bytes.Buffer
		n, err := store.ExportCSV(ctx, &buf, "A", hours)
		require.NoError(t, err)
		assert.Equal(t, 2, n, hours)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := storage.Open(storage.Config{})
	require.Error(t, err)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "power.db")
	ctx := context.Background()

	store, err := storage.Open(storage.Config{Path: path})
	require.NoError(t, err)
	require.True(t, store.Append(ctx, reading("A", fixedNow.Unix(), 1)))
	require.NoError(t, store.Close())

	store, err = storage.Open(storage.Config{Path: path})
	require.NoError(t, err)
	defer store.Close()

	ids, err := store.KnownDeviceIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, ids)
	assert.Equal(t, path, store.Path())
	assert.NoError(t, store.HealthCheck(ctx))
}

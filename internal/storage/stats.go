package storage

import (
	"context"
	"os"

	"codeberg.org/mutker/plugmon/internal/errors"
)

// Stats aggregates record counts per device. The reserved "all" id is left
// out of every figure.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	errFactory := errors.New()

	recentSince := s.now().Add(-recentWindow).Unix()

	rows, err := s.db.QueryContext(ctx, `
        SELECT device_id,
               COUNT(*),
               MIN(timestamp),
               MAX(timestamp),
               SUM(CASE WHEN timestamp >= ? THEN 1 ELSE 0 END)
        FROM power_readings
        WHERE device_id != ?
        GROUP BY device_id`, recentSince, AllDevices)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	stats := &Stats{Devices: make(map[string]DeviceStats)}
	for rows.Next() {
		var (
			deviceID string
			ds       DeviceStats
		)
		if err := rows.Scan(&deviceID, &ds.Count, &ds.FirstTimestamp, &ds.LastTimestamp, &ds.RecentCount); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		stats.Devices[deviceID] = ds
		stats.TotalRecords += ds.Count
		stats.RecentRecords += ds.RecentCount
	}

	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	stats.StorageSizeBytes = s.sizeOnDisk()

	return stats, nil
}

// sizeOnDisk sums the database file and its write-ahead log.
func (s *Store) sizeOnDisk() int64 {
	var size int64
	for _, path := range []string{s.path, s.path + "-wal"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		size += info.Size()
	}
	return size
}

package storage

import (
	"context"
	"database/sql"

	"codeberg.org/mutker/plugmon/internal/errors"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (Reading, error) {
	var (
		r                                         Reading
		voltage, current, power, electricityOfDay sql.NullFloat64
		powerOn                                   sql.NullBool
		createdAt                                 sql.NullTime
	)

	if err := row.Scan(
		&r.ID, &r.DeviceID, &r.Timestamp,
		&voltage, &current, &power, &electricityOfDay,
		&powerOn, &createdAt,
	); err != nil {
		return Reading{}, err
	}

	r.Voltage = nullFloat(voltage)
	r.ElectricCurrent = nullFloat(current)
	r.Power = nullFloat(power)
	r.ElectricityOfDay = nullFloat(electricityOfDay)
	if powerOn.Valid {
		on := powerOn.Bool
		r.PowerOn = &on
	}
	if createdAt.Valid {
		r.CreatedAt = createdAt.Time
	}

	return r, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func (s *Store) queryReadings(ctx context.Context, query string, args ...any) ([]Reading, error) {
	errFactory := errors.New()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	readings := make([]Reading, 0)
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		readings = append(readings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return readings, nil
}

// Latest returns the newest reading for a device. Readings sharing the
// newest timestamp resolve to the most recently inserted one.
func (s *Store) Latest(ctx context.Context, deviceID string) (*Reading, error) {
	errFactory := errors.New()

	row := s.db.QueryRowContext(ctx, `
        SELECT `+readingColumns+`
        FROM power_readings
        WHERE device_id = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT 1`, deviceID)

	r, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errFactory.WithMessage(ErrNotFound, "no readings found for this device")
	}
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return &r, nil
}

// RangeSince returns a device's readings from the last hoursBack hours,
// newest first.
func (s *Store) RangeSince(ctx context.Context, deviceID string, hoursBack int) ([]Reading, error) {
	if hoursBack <= 0 {
		return nil, errors.New().WithMessage(ErrInvalidWindow, "hours must be positive")
	}

	since := s.hoursAgo(hoursBack)

	return s.queryReadings(ctx, `
        SELECT `+readingColumns+`
        FROM power_readings
        WHERE device_id = ? AND timestamp >= ?
        ORDER BY timestamp DESC, id DESC`, deviceID, since)
}

// Recent returns at most limit readings for a device, newest first. A
// non-positive limit uses the default of 1000.
func (s *Store) Recent(ctx context.Context, deviceID string, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	return s.queryReadings(ctx, `
        SELECT `+readingColumns+`
        FROM power_readings
        WHERE device_id = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?`, deviceID, limit)
}

// KnownDeviceIDs returns every device id present in storage, sorted.
func (s *Store) KnownDeviceIDs(ctx context.Context) ([]string, error) {
	errFactory := errors.New()

	rows, err := s.db.QueryContext(ctx, `
        SELECT DISTINCT device_id
        FROM power_readings
        WHERE device_id != ?
        ORDER BY device_id`, AllDevices)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return ids, nil
}

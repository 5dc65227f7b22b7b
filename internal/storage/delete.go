package storage

import (
	"context"
	"database/sql"

	"codeberg.org/mutker/plugmon/internal/errors"
)

// DeleteByDevice removes every reading of a device and returns how many
// were removed. A device without readings is ErrNotFound.
func (s *Store) DeleteByDevice(ctx context.Context, deviceID string) (int64, error) {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				s.logger.Debug().Err(err).Msg("Failed to rollback delete")
			}
		}
	}()

	var count int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM power_readings WHERE device_id = ?", deviceID,
	).Scan(&count); err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	if count == 0 {
		return 0, errFactory.WithMessage(ErrNotFound, "no readings found for this device")
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM power_readings WHERE device_id = ?", deviceID)
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}
	committed = true

	s.logger.Info().
		Str("device_id", deviceID).
		Int64("deleted_records", deleted).
		Msg("Deleted device readings")

	return deleted, nil
}

// DeleteOlderThan removes readings older than cutoffMinutes and returns how
// many were removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoffMinutes int) (int64, error) {
	errFactory := errors.New()

	if cutoffMinutes < 1 {
		return 0, errFactory.WithMessage(ErrInvalidWindow, "cutoff must be at least 1 minute")
	}

	cutoff := s.minutesAgo(cutoffMinutes)

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM power_readings WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	s.logger.Info().
		Int("cutoff_minutes", cutoffMinutes).
		Int64("cutoff_timestamp", cutoff).
		Int64("deleted_records", deleted).
		Msg("Deleted old readings")

	return deleted, nil
}

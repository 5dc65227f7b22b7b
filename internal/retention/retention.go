// Package retention deletes stored readings. Every deletion must be
// explicitly confirmed by the caller.
package retention

import (
	"context"
	"fmt"
	"math"

	"codeberg.org/mutker/plugmon/internal/errors"
	"codeberg.org/mutker/plugmon/internal/logger"
	"codeberg.org/mutker/plugmon/internal/storage"
)

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * minutesPerHour
)

// Store is the deletion surface of the reading store.
type Store interface {
	DeleteByDevice(ctx context.Context, deviceID string) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoffMinutes int) (int64, error)
}

// Cutoff is an age threshold. Its parts are summed and must not be
// negative.
type Cutoff struct {
	Days    int
	Hours   int
	Minutes int
}

// TotalMinutes returns the cutoff in minutes, saturating at math.MaxInt.
func (c Cutoff) TotalMinutes() int {
	total := 0
	for _, part := range [...]struct{ n, unit int }{
		{c.Days, minutesPerDay},
		{c.Hours, minutesPerHour},
		{c.Minutes, 1},
	} {
		if part.n <= 0 {
			total += part.n
			continue
		}
		if part.n > math.MaxInt/part.unit {
			return math.MaxInt
		}
		minutes := part.n * part.unit
		if total > math.MaxInt-minutes {
			return math.MaxInt
		}
		total += minutes
	}
	return total
}

func (c Cutoff) validate() error {
	if c.Days < 0 || c.Hours < 0 || c.Minutes < 0 {
		return errors.New().WithMessage(ErrInvalidCutoff, "cutoff parts must not be negative")
	}
	if c.TotalMinutes() < 1 {
		return errors.New().WithMessage(ErrInvalidCutoff, "cutoff must be at least 1 minute")
	}
	return nil
}

type Manager struct {
	store  Store
	logger logger.Logger
}

func New(store Store) *Manager {
	return &Manager{
		store:  store,
		logger: logger.With("retention"),
	}
}

// DeleteByDevice removes all readings of a device.
func (m *Manager) DeleteByDevice(ctx context.Context, deviceID string, confirm bool) (int64, error) {
	errFactory := errors.New()

	if deviceID == "" || deviceID == storage.AllDevices {
		return 0, errFactory.WithMessage(ErrInvalidDevice, fmt.Sprintf("device id %q does not name a single device", deviceID))
	}
	if !confirm {
		return 0, errFactory.WithMessage(ErrNotConfirmed, "deletion requires confirm=true")
	}

	deleted, err := m.store.DeleteByDevice(ctx, deviceID)
	if err != nil {
		if !errors.HasCode(err, ErrNothingDeleted) {
			m.logger.ErrorWithCode(err).
				Str("device_id", deviceID).
				Str("operation", "delete_device").
				Msg("Failed to delete readings")
		}
		return 0, err
	}

	m.logger.Info().
		Str("device_id", deviceID).
		Int64("deleted", deleted).
		Msg("Device readings deleted")

	return deleted, nil
}

// DeleteOlderThan removes readings older than the cutoff. The cutoff must
// be at least one minute.
func (m *Manager) DeleteOlderThan(ctx context.Context, cutoff Cutoff, confirm bool) (int64, error) {
	errFactory := errors.New()

	if err := cutoff.validate(); err != nil {
		return 0, err
	}
	minutes := cutoff.TotalMinutes()
	if !confirm {
		return 0, errFactory.WithMessage(ErrNotConfirmed, "deletion requires confirm=true")
	}

	deleted, err := m.store.DeleteOlderThan(ctx, minutes)
	if err != nil {
		m.logger.ErrorWithCode(err).
			Int("cutoff_minutes", minutes).
			Str("operation", "delete_older_than").
			Msg("Failed to delete readings")
		return 0, err
	}

	m.logger.Info().
		Int("cutoff_minutes", minutes).
		Int64("deleted", deleted).
		Msg("Old readings deleted")

	return deleted, nil
}

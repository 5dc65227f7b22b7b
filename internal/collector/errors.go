package collector

import "codeberg.org/mutker/plugmon/internal/errors"

const (
	ErrNotConfigured = errors.ErrConfiguration
	ErrNoDevices     = errors.ErrConfiguration
	ErrNoReading     = errors.ErrNotFound
	ErrSaveFailed    = errors.ErrStorage
	ErrInvalidDevice = errors.ErrValidation
)

// Per-device failure messages reported in batch results.
const (
	msgNoData     = "no data available"
	msgSaveFailed = "failed to save"
)

package retention

import "codeberg.org/mutker/plugmon/internal/errors"

const (
	ErrNotConfirmed   = errors.ErrConfirmationRequired
	ErrInvalidDevice  = errors.ErrValidation
	ErrInvalidCutoff  = errors.ErrValidation
	ErrNothingDeleted = errors.ErrNotFound
)

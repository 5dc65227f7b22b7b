package switchbot

import "codeberg.org/mutker/plugmon/internal/errors"

const (
	ErrMissingCredentials = errors.ErrConfiguration
	ErrRequestFailed      = errors.ErrNetwork
	ErrBadStatus          = errors.ErrUpstream
	ErrNoData             = errors.ErrNoData
	ErrBuildRequest       = errors.ErrInternal
)

// statusSuccess is the API-level statusCode of a successful response.
const statusSuccess = 100

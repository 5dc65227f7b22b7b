package sink

import "codeberg.org/mutker/plugmon/internal/errors"

const (
	ErrSinkConfig     = errors.ErrConfiguration
	ErrSinkConnect    = errors.ErrorCode("sink_connect_failed")
	ErrNotConnected   = errors.ErrorCode("sink_not_connected")
	ErrPublishFailed  = errors.ErrorCode("sink_publish_failed")
	ErrPublishTimeout = errors.ErrTimeout
	ErrEncodeReading  = errors.ErrInternal
)

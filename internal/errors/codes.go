package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"

	// Configuration errors
	ErrConfiguration ErrorCode = "configuration_error"
	ErrInvalidConfig ErrorCode = "invalid_configuration"
	ErrBindFlags     ErrorCode = "bind_flags_failed"
	ErrReadConfig    ErrorCode = "read_config_failed"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Upstream errors
	ErrNetwork  ErrorCode = "network_error"
	ErrUpstream ErrorCode = "upstream_error"
	ErrNoData   ErrorCode = "no_data"

	// Storage errors
	ErrStorage  ErrorCode = "storage_error"
	ErrNotFound ErrorCode = "not_found"

	// Operation errors
	ErrConfirmationRequired ErrorCode = "confirmation_required"
	ErrValidation           ErrorCode = "validation_error"
	ErrTimeout              ErrorCode = "operation_timeout"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:             "Internal error occurred",
	ErrInvalidArgument:      "Invalid argument provided",
	ErrConfiguration:        "Missing or invalid configuration",
	ErrInvalidConfig:        "Invalid configuration",
	ErrBindFlags:            "Failed to bind flags",
	ErrReadConfig:           "Failed to read config file",
	ErrInvalidLogLevel:      "Invalid log level",
	ErrInitFailed:           "Initialization failed",
	ErrShutdownFailed:       "Shutdown failed",
	ErrAlreadyRunning:       "Another instance is already running",
	ErrNetwork:              "Failed to reach upstream API",
	ErrUpstream:             "Upstream API returned an error",
	ErrNoData:               "No data available",
	ErrStorage:              "Storage operation failed",
	ErrNotFound:             "Not found",
	ErrConfirmationRequired: "Confirmation required",
	ErrValidation:           "Validation failed",
	ErrTimeout:              "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}

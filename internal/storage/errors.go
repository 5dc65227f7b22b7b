package storage

import "codeberg.org/mutker/plugmon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidDBPath = errors.ErrorCode("storage_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed = errors.ErrorCode("storage_schema_init_failed")
	ErrSchemaVersion    = errors.ErrorCode("storage_schema_version_mismatch")

	// Storage Errors
	ErrStorageInit   = errors.ErrInitFailed
	ErrStorageAccess = errors.ErrStorage
	ErrStorageClose  = errors.ErrShutdownFailed

	// Query Errors
	ErrNotFound       = errors.ErrNotFound
	ErrInvalidReading = errors.ErrValidation
	ErrInvalidWindow  = errors.ErrValidation
)

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/plugmon/internal/errors"
	"codeberg.org/mutker/plugmon/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the append-only time series of power readings. Reads may run
// concurrently; writes are serialized.
type Store struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex
	logger logger.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at cfg.Path and prepares the
// schema.
func Open(cfg Config) (*Store, error) {
	errFactory := errors.New()
	log := logger.With("storage")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.Path,
			Error: err.Error(),
		})
	}

	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		cfg.Path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	// One connection keeps SQLite to a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initSchema(db, log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	log.Info().
		Str("path", cfg.Path).
		Int("schema_version", SchemaVersion).
		Msg("Storage opened")

	return &Store{
		db:     db,
		path:   cfg.Path,
		logger: log,
		now:    now,
	}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// HealthCheck verifies the database answers queries.
func (s *Store) HealthCheck(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}
	return nil
}

// Insert stores one reading and returns its row id.
func (s *Store) Insert(ctx context.Context, reading *Reading) (int64, error) {
	errFactory := errors.New()

	if reading == nil {
		return 0, errFactory.WithMessage(ErrInvalidReading, "reading is nil")
	}
	if err := validateDeviceID(reading.DeviceID); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, insertReadingSQL,
		reading.DeviceID,
		reading.Timestamp,
		reading.Voltage,
		reading.ElectricCurrent,
		reading.Power,
		reading.ElectricityOfDay,
		reading.PowerOn,
	)
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	return id, nil
}

// Append stores one reading and reports success. Failures are logged, never
// returned.
func (s *Store) Append(ctx context.Context, reading *Reading) bool {
	id, err := s.Insert(ctx, reading)
	if err != nil {
		event := s.logger.ErrorWithCode(err).Str("operation", "append")
		if reading != nil {
			event = event.Str("device_id", reading.DeviceID)
		}
		event.Msg("Failed to save reading")
		return false
	}

	reading.ID = id
	s.logger.Debug().
		Str("device_id", reading.DeviceID).
		Int64("timestamp", reading.Timestamp).
		Int64("id", id).
		Msg("Reading saved")

	return true
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to checkpoint WAL")
	}

	if err := s.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	s.logger.Debug().Msg("Storage closed")

	return nil
}

func validateDeviceID(deviceID string) error {
	errFactory := errors.New()
	if deviceID == "" {
		return errFactory.WithMessage(ErrInvalidReading, "device id is required")
	}
	if deviceID == AllDevices {
		return errFactory.WithMessage(ErrInvalidReading, "device id \"all\" is reserved")
	}
	return nil
}

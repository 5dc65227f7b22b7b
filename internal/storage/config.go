package storage

import (
	"time"

	"codeberg.org/mutker/plugmon/internal/errors"
)

const (
	defaultDirPerm     = 0o755
	defaultBusyTimeout = 5 * time.Second
	defaultRecentLimit = 1000
	recentWindow       = 24 * time.Hour
)

type Config struct {
	// Path is the SQLite database file. Its directory is created if needed.
	Path string

	// BusyTimeout bounds how long a statement waits for a lock.
	BusyTimeout time.Duration

	// Clock overrides time.Now for window computations.
	Clock func() time.Time
}

func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New().New(ErrInvalidDBPath)
	}
	return nil
}

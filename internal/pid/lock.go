package pid

import (
	"context"
	"os"
	"syscall"
	"time"

	"codeberg.org/mutker/plugmon/internal/errors"
)

const (
	lockSuffix       = ".lock"
	lockPollInterval = 100 * time.Millisecond
)

// LockPathFor returns the lock file serializing collection into a database.
func LockPathFor(database string) string {
	return database + lockSuffix
}

// Acquire takes an exclusive advisory lock on the file at path, waiting until
// it is free or ctx is done. The lock is shared by every process using the
// same path and is released by the returned function.
func Acquire(ctx context.Context, path string) (func() error, error) {
	errFactory := errors.New()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return func() error {
				defer f.Close()
				if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
					return errFactory.Wrap(errors.ErrInternal, err)
				}
				return nil
			}, nil
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) {
			f.Close()
			return nil, errFactory.Wrap(errors.ErrInternal, err)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, errFactory.Wrap(errors.ErrTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

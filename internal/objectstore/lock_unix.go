//go:build unix

package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dmitrijs2005/soundboard/internal/common"
)

// fileLock is an flock(2) advisory lock. Locks belong to the open file
// description, so two handles in the same process contend like two processes.
type fileLock struct {
	f *os.File
}

func openLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open lock file: %w", common.ErrStorageUnavailable, err)
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) try(how int) (bool, error) {
	err := unix.Flock(int(l.f.Fd()), how|unix.LOCK_NB)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.EWOULDBLOCK), errors.Is(err, unix.EINTR):
		return false, nil
	default:
		return false, fmt.Errorf("%w: flock: %w", common.ErrStorageUnavailable, err)
	}
}

func (l *fileLock) shared(ctx context.Context, timeout time.Duration) error {
	return retryLock(ctx, timeout, "shared", func() (bool, error) { return l.try(unix.LOCK_SH) })
}

func (l *fileLock) exclusive(ctx context.Context, timeout time.Duration) error {
	return retryLock(ctx, timeout, "exclusive", func() (bool, error) { return l.try(unix.LOCK_EX) })
}

func (l *fileLock) release() error {
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}

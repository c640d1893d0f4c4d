//go:build !unix

package objectstore

import (
	"context"
	"time"
)

// fileLock is a no-op where flock is unavailable; only the SQLite busy
// handling protects concurrent migrations there.
type fileLock struct{}

func openLock(string) (*fileLock, error) { return &fileLock{}, nil }

func (*fileLock) shared(context.Context, time.Duration) error    { return nil }
func (*fileLock) exclusive(context.Context, time.Duration) error { return nil }
func (*fileLock) release() error                                 { return nil }

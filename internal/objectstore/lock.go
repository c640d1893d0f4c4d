package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/soundboard/internal/common"
)

const lockPollInterval = 20 * time.Millisecond

// retryLock calls try until it succeeds, fails hard, or timeout elapses.
// try reports (acquired, error); a false result with nil error means contended.
func retryLock(ctx context.Context, timeout time.Duration, what string, try func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s lock held elsewhere after %s", common.ErrBlocked, what, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

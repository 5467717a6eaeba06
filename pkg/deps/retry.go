// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forgebuild/forge/internal/shell"
)

// retryWithBackoff runs op up to maxAttempts times, sleeping baseBackoff,
// 2*baseBackoff, ... between attempts. op returns (retry, err); a nil err or
// retry == false ends the loop with err. exhausted is true when the last
// attempt still asked for a retry, in which case err is the last error.
func retryWithBackoff(
	ctx context.Context,
	maxAttempts int,
	baseBackoff time.Duration,
	op func(attempt int) (retry bool, err error),
) (exhausted bool, err error) {
	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			if err := sleep(ctx, baseBackoff*time.Duration(1<<(attempt-1))); err != nil {
				return false, fmt.Errorf("retry aborted: %w", err)
			}
		}

		retry, err := op(attempt)
		if err == nil || !retry {
			return false, err
		}
		lastErr = err
	}
	return true, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isTransient reports whether a clone failure may succeed on retry: the
// client ran and exited non-zero. Cancellation is never transient.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var exitErr *shell.ExitError
	return errors.As(err, &exitErr)
}

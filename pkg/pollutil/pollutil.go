// Package pollutil provides the single cancellable-sleep primitive shared
// by Queue.Tasks and Stream.Wait, so the "polling sleep is the cancellation
// point" contract lives in exactly one place.
package pollutil

import (
	"context"
	"time"
)

// SleepOrDone blocks for d or until ctx is done, whichever comes first,
// returning ctx.Err() if cancellation won the race.
func SleepOrDone(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

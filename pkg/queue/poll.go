package queue

import (
	"context"
	"time"

	"colas/pkg/metrics"
	"colas/pkg/pollutil"
)

// RunLoop drives the generic Tasks() polling shape: pop is tried first (so
// an already-available task never waits), and on empty the loop sleeps
// pollingInterval before retrying. Each backend supplies its own typed pop
// and a typed emit; RunLoop itself never inspects T.
func RunLoop[T any](ctx context.Context, pollingInterval time.Duration, pop func(context.Context) (v T, ok bool, err error), emit func(T), emitErr func(error)) {
	for {
		v, ok, err := pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			emitErr(err)
			return
		}
		if ok {
			emit(v)
			continue
		}
		if err := pollutil.SleepOrDone(ctx, pollingInterval); err != nil {
			return
		}
		metrics.PollSleeps.WithLabelValues("queue").Inc()
	}
}

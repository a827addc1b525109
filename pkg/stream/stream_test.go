package stream

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// countingStream satisfies Stream with canned Retrieve responses so the
// polling contract can be observed without a database.
type countingStream struct {
	retrieves  int
	foundAfter int // Retrieve call number on which the id appears
	payload    []byte
}

func (c *countingStream) Init(context.Context, ...string) error { return nil }

func (c *countingStream) Store(context.Context, string, uuid.UUID, []byte) error { return nil }

func (c *countingStream) Retrieve(_ context.Context, _ string, ids []uuid.UUID) (map[uuid.UUID][]byte, error) {
	c.retrieves++
	out := make(map[uuid.UUID][]byte)
	if c.retrieves >= c.foundAfter {
		for _, id := range ids {
			out[id] = c.payload
		}
	}
	return out, nil
}

func (c *countingStream) Wait(ctx context.Context, table string, id uuid.UUID, d time.Duration) ([]byte, error) {
	return Wait(ctx, c, table, id, d)
}

func (c *countingStream) Clean(context.Context, string, time.Duration) (int64, error) { return 0, nil }

func (c *countingStream) Close() error { return nil }

func TestWaitRetrievesBeforeFirstSleep(t *testing.T) {
	c := &countingStream{foundAfter: 1, payload: []byte("v")}

	// An hour-long interval: if Wait slept before the first Retrieve the
	// test would time out rather than return instantly.
	done := make(chan struct{})
	go func() {
		defer close(done)
		got, err := Wait(context.Background(), c, "results", uuid.New(), time.Hour)
		require.NoError(t, err)
		require.Equal(t, []byte("v"), got)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait slept before issuing the first Retrieve")
	}
	require.Equal(t, 1, c.retrieves)
}

func TestWaitSleepsBetweenEmptyRetrieves(t *testing.T) {
	c := &countingStream{foundAfter: 3, payload: []byte("v")}

	start := time.Now()
	got, err := Wait(context.Background(), c, "results", uuid.New(), 20*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
	require.Equal(t, 3, c.retrieves)
	// two empty attempts -> two sleeps of the polling interval
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestWaitPropagatesCancellationFromSleep(t *testing.T) {
	c := &countingStream{foundAfter: 1 << 30}
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := Wait(ctx, c, "results", uuid.New(), time.Minute)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancellation during the polling sleep did not return")
	}
}

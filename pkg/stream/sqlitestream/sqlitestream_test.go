package sqlitestream

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"colas/pkg/colaserr"
)

func openTestStream(t *testing.T) *Stream {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Init(context.Background(), "results"))
	return s
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStream(t)

	id := uuid.New()
	require.NoError(t, s.Store(ctx, "results", id, []byte("payload")))

	got, err := s.Retrieve(ctx, "results", []uuid.UUID{id})
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got[id])
}

func TestRetrieveOnlyReturnsFoundIDs(t *testing.T) {
	ctx := context.Background()
	s := openTestStream(t)

	present := uuid.New()
	absent := uuid.New()
	require.NoError(t, s.Store(ctx, "results", present, []byte("x")))

	got, err := s.Retrieve(ctx, "results", []uuid.UUID{present, absent})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Contains(t, got, present)
}

func TestRetrieveEmptyBatchSkipsStorage(t *testing.T) {
	ctx := context.Background()
	s := openTestStream(t)

	// "no_such_table" was never created; an empty batch must return before
	// any statement touches it.
	got, err := s.Retrieve(ctx, "no_such_table", nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestStoreDuplicateIDIsStorageError(t *testing.T) {
	ctx := context.Background()
	s := openTestStream(t)

	id := uuid.New()
	require.NoError(t, s.Store(ctx, "results", id, []byte("first")))

	err := s.Store(ctx, "results", id, []byte("second"))
	require.Error(t, err)
	require.True(t, colaserr.Of(err, colaserr.StorageError))
}

func TestStreamTableIsolation(t *testing.T) {
	ctx := context.Background()
	s := openTestStream(t)
	require.NoError(t, s.Init(ctx, "other"))

	id := uuid.New()
	require.NoError(t, s.Store(ctx, "results", id, []byte("x")))

	got, err := s.Retrieve(ctx, "other", []uuid.UUID{id})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestCleanRemovesOnlyExpiredRows(t *testing.T) {
	ctx := context.Background()
	s := openTestStream(t)

	old := uuid.New()
	require.NoError(t, s.Store(ctx, "results", old, []byte("old")))
	time.Sleep(50 * time.Millisecond)
	fresh := uuid.New()
	require.NoError(t, s.Store(ctx, "results", fresh, []byte("fresh")))

	n, err := s.Clean(ctx, "results", 25*time.Millisecond)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := s.Retrieve(ctx, "results", []uuid.UUID{old, fresh})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Contains(t, got, fresh)
}

func TestCleanKeepsEverythingWithinTTL(t *testing.T) {
	ctx := context.Background()
	s := openTestStream(t)

	id := uuid.New()
	require.NoError(t, s.Store(ctx, "results", id, []byte("x")))

	n, err := s.Clean(ctx, "results", time.Hour)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestWaitReturnsWithoutSleepingWhenPresent(t *testing.T) {
	ctx := context.Background()
	s := openTestStream(t)

	id := uuid.New()
	require.NoError(t, s.Store(ctx, "results", id, []byte("ready")))

	done := make(chan struct{})
	var got []byte
	var err error
	go func() {
		defer close(done)
		got, err = s.Wait(ctx, "results", id, time.Hour)
	}()
	select {
	case <-done:
		require.NoError(t, err)
		require.Equal(t, []byte("ready"), got)
	case <-time.After(time.Second):
		t.Fatal("Wait slept despite the value being present")
	}
}

func TestWaitPicksUpStoreMadeDuringPolling(t *testing.T) {
	ctx := context.Background()
	s := openTestStream(t)

	id := uuid.New()
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = s.Store(ctx, "results", id, []byte("late"))
	}()

	got, err := s.Wait(ctx, "results", id, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []byte("late"), got)
}

func TestWaitReturnsOnCancellation(t *testing.T) {
	s := openTestStream(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Wait(ctx, "results", uuid.New(), time.Minute)
		errCh <- err
	}()
	time.Sleep(30 * time.Millisecond) // let Wait reach the polling sleep
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}

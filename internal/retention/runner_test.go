package retention

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"colas/pkg/config"
	"colas/pkg/stream/sqlitestream"
)

func newSweeperWithStream(t *testing.T, ttl time.Duration) (*Sweeper, *sqlitestream.Stream) {
	t.Helper()
	s, err := sqlitestream.Open(filepath.Join(t.TempDir(), "stream.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Init(context.Background(), "results"))

	cfg := config.RetentionConfig{
		Enabled: true,
		TTL:     config.Duration(ttl),
		LockTTL: config.Duration(time.Minute),
		Lockdir: t.TempDir(),
	}
	sw, err := NewSweeper(cfg, s, []string{"results"})
	require.NoError(t, err)
	return sw, s
}

func TestRunOncePurgesExpiredRows(t *testing.T) {
	ctx := context.Background()
	sw, s := newSweeperWithStream(t, 25*time.Millisecond)

	id := uuid.New()
	require.NoError(t, s.Store(ctx, "results", id, []byte("stale")))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, sw.RunOnce(ctx))

	got, err := s.Retrieve(ctx, "results", []uuid.UUID{id})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRunOnceSkipsWhenLeaseHeld(t *testing.T) {
	ctx := context.Background()
	sw, s := newSweeperWithStream(t, time.Millisecond)

	held, err := sw.lease.Acquire("another-process", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	id := uuid.New()
	require.NoError(t, s.Store(ctx, "results", id, []byte("stale")))
	time.Sleep(20 * time.Millisecond)

	// lease contention: RunOnce yields without sweeping
	require.NoError(t, sw.RunOnce(ctx))

	got, err := s.Retrieve(ctx, "results", []uuid.UUID{id})
	require.NoError(t, err)
	require.Contains(t, got, id)
}

func TestStartDisabledIsNoOp(t *testing.T) {
	cancel, err := Start(context.Background(), config.RetentionConfig{Enabled: false}, nil, nil)
	require.NoError(t, err)
	cancel()
}

func TestStartRejectsInvalidCron(t *testing.T) {
	cfg := config.RetentionConfig{
		Enabled: true,
		Cron:    "every now and then",
		TTL:     config.Duration(time.Hour),
		LockTTL: config.Duration(time.Minute),
		Lockdir: t.TempDir(),
	}
	_, err := Start(context.Background(), cfg, nil, nil)
	require.Error(t, err)
}

package retention

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"colas/pkg/config"
	"colas/pkg/logger"
	"colas/pkg/metrics"
	"colas/pkg/stream"
	"colas/pkg/telemetry"
)

// Sweeper periodically purges expired rows from a fixed set of Stream
// result tables, coordinating with any sibling process via a file lease so
// only one sweep runs per cron tick.
type Sweeper struct {
	Stream  stream.Stream
	Tables  []string
	TTL     time.Duration
	LockTTL time.Duration
	lease   *fileLease
}

// NewSweeper builds a Sweeper from the resolved retention config, ensuring
// the lock directory exists.
func NewSweeper(cfg config.RetentionConfig, s stream.Stream, tables []string) (*Sweeper, error) {
	if err := os.MkdirAll(cfg.Lockdir, 0o700); err != nil {
		return nil, fmt.Errorf("create retention lock dir: %w", err)
	}
	return &Sweeper{
		Stream:  s,
		Tables:  tables,
		TTL:     cfg.TTL.Duration(),
		LockTTL: cfg.LockTTL.Duration(),
		lease:   NewFileLease(cfg.Lockdir),
	}, nil
}

// Start launches the cron-driven scheduler goroutine and returns a cancel
// func. If the config disables retention, Start is a no-op.
func Start(ctx context.Context, cfg config.RetentionConfig, s stream.Stream, tables []string) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid retention cron expression: %s", cronExpr)
	}

	sw, err := NewSweeper(cfg, s, tables)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	logger.Info("retention_enabled", "cron", cronExpr, "ttl", sw.TTL, "tables", tables)
	go sw.schedule(runCtx, cronExpr)
	return cancel, nil
}

// schedule computes the next cron tick with gronx and sweeps at each one.
func (sw *Sweeper) schedule(ctx context.Context, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			if !sleepOrDone(ctx, 30*time.Second) {
				return
			}
			continue
		}

		if !sleepOrDone(ctx, time.Until(next)) {
			return
		}
		if err := sw.RunOnce(ctx); err != nil {
			logger.Error("retention_run_error", "error", err)
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// RunOnce acquires the lease, sweeps every configured table, and releases
// the lease. If the lease is already held by another process, RunOnce
// returns nil without sweeping.
func (sw *Sweeper) RunOnce(ctx context.Context) error {
	owner := uuid.NewString()
	acquired, err := sw.lease.Acquire(owner, sw.LockTTL)
	if err != nil {
		return fmt.Errorf("lease acquire failed: %w", err)
	}
	if !acquired {
		logger.Info("retention_lease_not_acquired")
		return nil
	}
	defer func() {
		if err := sw.lease.Release(owner); err != nil {
			logger.Error("retention_lease_release_error", "error", err)
		}
	}()

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	hbCtx, hbCancel := context.WithCancel(runCtx)
	defer hbCancel()
	go sw.heartbeat(hbCtx, owner, runCancel)

	runID := uuid.NewString()
	logger.Info("retention_run_start", "run_id", runID, "owner", owner, "tables", sw.Tables)
	tr := telemetry.Track("retention")
	defer tr.Finish()

	var totalPurged int64
	for _, table := range sw.Tables {
		select {
		case <-runCtx.Done():
			metrics.RetentionSweeps.WithLabelValues("aborted").Inc()
			return fmt.Errorf("retention run aborted due to lease renewal failures")
		default:
		}

		n, err := sw.Stream.Clean(ctx, table, sw.TTL)
		if err != nil {
			metrics.RetentionSweeps.WithLabelValues("error").Inc()
			logger.Error("retention_sweep_failed", "run_id", runID, "table", table, "error", err)
			continue
		}
		totalPurged += n
		tr.Mark(table)
		if logger.Audit != nil {
			logger.Audit.Info("retention_audit_item", "run_id", runID, "table", table, "purged", n)
		}
		logger.Info("retention_table_swept", "run_id", runID, "table", table, "purged", n)
	}

	metrics.RetentionSweeps.WithLabelValues("ok").Inc()
	logger.Info("retention_run_complete", "run_id", runID, "purged", totalPurged)
	return nil
}

// heartbeat renews the lease at 1/3 of its TTL until the run finishes or
// renewal fails three times in a row, at which point it cancels the run
// context so RunOnce aborts mid-sweep rather than continue holding a lease
// it may no longer own.
func (sw *Sweeper) heartbeat(ctx context.Context, owner string, abort context.CancelFunc) {
	interval := sw.LockTTL / 3
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	var fails int
	const maxFails = 3
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := sw.lease.Renew(owner, sw.LockTTL); err != nil {
				fails++
				logger.Error("retention_lease_renew_failed", "error", err, "count", fails)
				if fails >= maxFails {
					logger.Error("retention_lease_renew_failed_fatal", "owner", owner)
					abort()
					return
				}
				continue
			}
			if fails != 0 {
				logger.Info("retention_lease_renew_succeeded_after_failures", "owner", owner, "recovered_count", fails)
			}
			fails = 0
		}
	}
}

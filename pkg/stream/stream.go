// Package stream defines the polymorphic Stream contract: a keyed result
// store with TTL-based cleanup and a polling-based Wait. As with Queue, the
// sqlitestream and pgstream subpackages share no code beyond this
// interface.
package stream

import (
	"context"
	"time"

	"github.com/google/uuid"

	"colas/pkg/colaserr"
	"colas/pkg/metrics"
	"colas/pkg/pollutil"
)

// Stream is the keyed result-store contract.
type Stream interface {
	// Init idempotently creates one table per result table name.
	Init(ctx context.Context, tables ...string) error

	// Store inserts one row with created_at = now() in UTC. A duplicate id
	// surfaces as a StorageError.
	Store(ctx context.Context, table string, id uuid.UUID, payload []byte) error

	// Retrieve performs a batch lookup; ids not found are simply absent
	// from the result. An empty ids slice returns an empty map without
	// touching storage.
	Retrieve(ctx context.Context, table string, ids []uuid.UUID) (map[uuid.UUID][]byte, error)

	// Wait polls Retrieve([id]) until present, sleeping pollingInterval
	// between empty attempts. The first Retrieve happens before any sleep.
	Wait(ctx context.Context, table string, id uuid.UUID, pollingInterval time.Duration) ([]byte, error)

	// Clean deletes rows older than ttl, computed once against a single UTC
	// wall-clock cutoff, and returns the number of rows removed.
	Clean(ctx context.Context, table string, ttl time.Duration) (int64, error)

	// Close releases any pooled resources.
	Close() error
}

// Wait is a backend-agnostic implementation of the polling contract, built
// only on top of Retrieve; both backends delegate to it so the "retrieve
// before first sleep" invariant lives in exactly one place.
func Wait(ctx context.Context, s Stream, table string, id uuid.UUID, pollingInterval time.Duration) ([]byte, error) {
	for {
		found, err := s.Retrieve(ctx, table, []uuid.UUID{id})
		if err != nil {
			return nil, err
		}
		if v, ok := found[id]; ok {
			return v, nil
		}
		if err := pollutil.SleepOrDone(ctx, pollingInterval); err != nil {
			return nil, colaserr.Cancel("stream.Wait", err)
		}
		metrics.PollSleeps.WithLabelValues("stream").Inc()
	}
}

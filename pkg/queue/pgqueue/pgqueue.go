// Package pgqueue implements the networked Queue backend on top of
// PostgreSQL. Unlike the embedded backend, Pop uses FOR UPDATE SKIP LOCKED
// so that N concurrent workers each claim a distinct row in one round trip
// instead of serializing on the head of the queue.
package pgqueue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"colas/pkg/colaserr"
	"colas/pkg/metrics"
	"colas/pkg/queue"
	"colas/pkg/task"
)

// Queue is the PostgreSQL-backed networked Queue.
type Queue struct {
	db *sql.DB
}

// Open connects to the PostgreSQL DSN and returns a Queue backed by its own
// pool. To share one pool with a Stream, open it once and pass it to
// OpenWithPool and pgstream.OpenWithDB.
func Open(dsn string) (*Queue, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, colaserr.Storage("pgqueue.Open", err)
	}
	return &Queue{db: db}, nil
}

// OpenWithPool adapts an already-open pool, e.g. one shared with a Stream.
func OpenWithPool(db *sql.DB) *Queue { return &Queue{db: db} }

var _ queue.Queue = (*Queue)(nil)

func (q *Queue) Init(ctx context.Context, names ...string) error {
	for _, name := range names {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			position BIGSERIAL PRIMARY KEY,
			task_id UUID NOT NULL,
			payload BYTEA NOT NULL
		)`, name)
		if _, err := q.db.ExecContext(ctx, stmt); err != nil {
			return colaserr.Storage("pgqueue.Init", err)
		}
	}
	return nil
}

func (q *Queue) Push(ctx context.Context, name string, t task.Task) error {
	payload, err := t.EncodePayload()
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT INTO %q (task_id, payload) VALUES ($1, $2)`, name)
	if _, err := q.db.ExecContext(ctx, stmt, t.ID.String(), payload); err != nil {
		return colaserr.Storage("pgqueue.Push", err)
	}
	metrics.Pushes.WithLabelValues(name).Inc()
	return nil
}

func (q *Queue) Pop(ctx context.Context, name string) (task.Task, bool, error) {
	stmt := fmt.Sprintf(`WITH oldest AS (
		SELECT position FROM %q ORDER BY position ASC LIMIT 1 FOR UPDATE SKIP LOCKED
	)
	DELETE FROM %q WHERE position IN (SELECT position FROM oldest)
	RETURNING task_id, payload`, name, name)

	row := q.db.QueryRowContext(ctx, stmt)
	var idStr string
	var payload []byte
	if err := row.Scan(&idStr, &payload); err != nil {
		if err == sql.ErrNoRows {
			return task.Task{}, false, nil
		}
		return task.Task{}, false, colaserr.Storage("pgqueue.Pop", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return task.Task{}, false, colaserr.Codec("pgqueue.Pop", err)
	}
	t, err := task.DecodePayload(id, payload)
	if err != nil {
		return task.Task{}, false, err
	}
	metrics.Pops.WithLabelValues(name).Inc()
	return t, true, nil
}

func (q *Queue) Tasks(ctx context.Context, name string, pollingInterval time.Duration) <-chan queue.TaskOrErr {
	out := make(chan queue.TaskOrErr)
	go func() {
		defer close(out)
		queue.RunLoop(ctx, pollingInterval,
			func(ctx context.Context) (task.Task, bool, error) { return q.Pop(ctx, name) },
			func(t task.Task) {
				select {
				case out <- queue.TaskOrErr{Task: t}:
				case <-ctx.Done():
				}
			},
			func(err error) {
				select {
				case out <- queue.TaskOrErr{Err: err}:
				case <-ctx.Done():
				}
			},
		)
	}()
	return out
}

func (q *Queue) Close() error {
	if err := q.db.Close(); err != nil {
		return colaserr.Storage("pgqueue.Close", err)
	}
	return nil
}

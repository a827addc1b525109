// Package sqlitequeue implements the embedded single-file Queue backend on
// top of SQLite. Concurrency across processes relies on SQLite's own file
// lock; concurrency within this process is serialized by pinning the pool
// to a single connection, mirroring the single-writer rule the backend
// already enforces at the file level. SKIP LOCKED has no SQLite analogue
// and is never emulated here.
package sqlitequeue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/google/uuid"

	"colas/pkg/colaserr"
	"colas/pkg/metrics"
	"colas/pkg/queue"
	"colas/pkg/task"
)

// Queue is the SQLite-backed embedded Queue.
type Queue struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite file at path and returns a Queue
// backed by it. The connection pool is pinned to one open connection: the
// embedded backend has no server-side lock manager, so correctness of Pop's
// atomic CTE depends on there being no intra-process contention either.
func Open(path string) (*Queue, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, colaserr.Storage("sqlitequeue.Open", err)
	}
	db.SetMaxOpenConns(1)
	return &Queue{db: db}, nil
}

var _ queue.Queue = (*Queue)(nil)

func (q *Queue) Init(ctx context.Context, names ...string) error {
	for _, name := range names {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			position INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id BLOB NOT NULL,
			payload BLOB NOT NULL
		)`, name)
		if _, err := q.db.ExecContext(ctx, stmt); err != nil {
			return colaserr.Storage("sqlitequeue.Init", err)
		}
	}
	return nil
}

func (q *Queue) Push(ctx context.Context, name string, t task.Task) error {
	payload, err := t.EncodePayload()
	if err != nil {
		return err
	}
	idBytes, err := t.ID.MarshalBinary()
	if err != nil {
		return colaserr.Codec("sqlitequeue.Push", err)
	}
	stmt := fmt.Sprintf(`INSERT INTO %q (task_id, payload) VALUES (?, ?)`, name)
	if _, err := q.db.ExecContext(ctx, stmt, idBytes, payload); err != nil {
		return colaserr.Storage("sqlitequeue.Push", err)
	}
	metrics.Pushes.WithLabelValues(name).Inc()
	return nil
}

func (q *Queue) Pop(ctx context.Context, name string) (task.Task, bool, error) {
	stmt := fmt.Sprintf(`WITH oldest AS (
		SELECT position FROM %q ORDER BY position ASC LIMIT 1
	)
	DELETE FROM %q WHERE position IN (SELECT position FROM oldest)
	RETURNING task_id, payload`, name, name)

	row := q.db.QueryRowContext(ctx, stmt)
	var idBytes, payload []byte
	if err := row.Scan(&idBytes, &payload); err != nil {
		if err == sql.ErrNoRows {
			return task.Task{}, false, nil
		}
		return task.Task{}, false, colaserr.Storage("sqlitequeue.Pop", err)
	}

	var id uuid.UUID
	if err := id.UnmarshalBinary(idBytes); err != nil {
		return task.Task{}, false, colaserr.Codec("sqlitequeue.Pop", err)
	}
	t, err := task.DecodePayload(id, payload)
	if err != nil {
		// the row is already deleted: a corrupt payload is lost, per contract.
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
		return colaserr.Storage("sqlitequeue.Close", err)
	}
	return nil
}

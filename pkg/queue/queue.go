// Package queue defines the polymorphic Queue contract shared by the
// embedded (SQLite) and networked (PostgreSQL) backends. The two concrete
// variants live in the sqlitequeue and pgqueue subpackages and share no
// code beyond this interface: the embedded backend leans on its single-
// writer file lock, the networked backend leans on FOR UPDATE SKIP LOCKED.
// Neither emulates the other's concurrency primitive.
package queue

import (
	"context"
	"time"

	"colas/pkg/task"
)

// TaskOrErr is one element of the Tasks() channel: either a decoded task or
// an error observed while polling.
type TaskOrErr struct {
	Task task.Task
	Err  error
}

// Queue is the durable FIFO contract. Implementations must make Pop atomic:
// the row returned is deleted in the same statement that selects it.
type Queue interface {
	// Init idempotently creates one table per queue name.
	Init(ctx context.Context, names ...string) error

	// Push durably appends t to the named queue.
	Push(ctx context.Context, name string, t task.Task) error

	// Pop atomically selects and deletes the oldest row in the named queue.
	// ok is false when the queue is empty; err is non-nil only on storage
	// or decode failure.
	Pop(ctx context.Context, name string) (t task.Task, ok bool, err error)

	// Tasks returns a channel fed by repeated Pop calls, sleeping
	// pollingInterval between empty polls. The channel closes when ctx is
	// done; the polling sleep itself is the cancellation point.
	Tasks(ctx context.Context, name string, pollingInterval time.Duration) <-chan TaskOrErr

	// Close releases any pooled resources.
	Close() error
}

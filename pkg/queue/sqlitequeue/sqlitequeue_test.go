package sqlitequeue

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"colas/pkg/task"
)

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.db")
	q, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	require.NoError(t, q.Init(context.Background(), "tasks"))
	return q
}

func TestPushPopFIFOOrder(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(ctx, "tasks", task.New("mul", []any{int64(i)}, nil)))
	}

	for i := 0; i < 5; i++ {
		tk, ok, err := q.Pop(ctx, "tasks")
		require.NoError(t, err)
		require.True(t, ok)
		require.EqualValues(t, i, tk.Args[0])
	}

	_, ok, err := q.Pop(ctx, "tasks")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPopAtMostOnceUnderConcurrentPop(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, q.Push(ctx, "tasks", task.New("mul", []any{int64(i)}, nil)))
	}

	var mu sync.Mutex
	seen := make(map[int64]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				tk, ok, err := q.Pop(ctx, "tasks")
				require.NoError(t, err)
				if !ok {
					return
				}
				id := tk.Args[0].(int64)
				mu.Lock()
				seen[id]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
	for id, count := range seen {
		require.Equalf(t, 1, count, "task %d popped %d times", id, count)
	}
}

func TestTasksClosesOnCancellationDuringPollSleep(t *testing.T) {
	q := openTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch := q.Tasks(ctx, "tasks", 10*time.Millisecond)
	cancel()

	select {
	case _, ok := <-ch:
		require.False(t, ok, "channel should close without emitting on cancellation")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Tasks channel to close")
	}
}

func TestTasksDeliversAlreadyPushedTaskBeforeSleeping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := openTestQueue(t)
	require.NoError(t, q.Push(ctx, "tasks", task.New("mul", []any{int64(7)}, nil)))

	ch := q.Tasks(ctx, "tasks", time.Minute)
	select {
	case to := <-ch:
		require.NoError(t, to.Err)
		require.EqualValues(t, 7, to.Task.Args[0])
	case <-time.After(time.Second):
		t.Fatal("expected immediate delivery of already-pushed task")
	}
}

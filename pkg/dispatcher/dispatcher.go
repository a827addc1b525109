// Package dispatcher binds handler names to callables and drives both
// sides of the round trip: the client-side Invoke façade (enqueue + wait)
// and the worker-side consume-execute-store loop.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"colas/pkg/codec"
	"colas/pkg/colaserr"
	"colas/pkg/metrics"
	"colas/pkg/queue"
	"colas/pkg/stream"
	"colas/pkg/task"
	"colas/pkg/telemetry"
)

// HandlerFunc is the uniform callable every registered handler satisfies.
// Its own decode of args/kwargs carries whatever per-handler type safety is
// wanted; the wire itself is untyped.
type HandlerFunc func(args []any, kwargs map[string]any) (any, error)

// resultEnvelope is the optional {ok, value|error} wrapper used when
// envelope mode is enabled, letting Wait rethrow a handler's error instead
// of hanging forever.
type resultEnvelope struct {
	OK    bool   `msgpack:"ok"`
	Value any    `msgpack:"value,omitempty"`
	Error string `msgpack:"error,omitempty"`
}

// Dispatcher is the single entry point binding a Queue, a Stream, and a
// handler registry together.
type Dispatcher struct {
	Queue  queue.Queue
	Stream stream.Stream

	queueName       string
	resultsTable    string
	pollingInterval time.Duration
	envelope        bool

	mu       sync.RWMutex
	registry map[string]HandlerFunc
}

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

// WithPollingInterval overrides the default 100ms polling interval used by
// both Queue.Tasks and Stream.Wait.
func WithPollingInterval(d time.Duration) Option {
	return func(d2 *Dispatcher) { d2.pollingInterval = d }
}

// WithResultEnvelope enables the opt-in {ok, value|error} envelope: a
// handler error is captured rather than propagated out of the worker loop,
// and Wait rethrows it as a HandlerError to the waiting caller.
func WithResultEnvelope() Option {
	return func(d *Dispatcher) { d.envelope = true }
}

// New constructs a Dispatcher over the given queue/results table names.
func New(q queue.Queue, s stream.Stream, queueName, resultsTable string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		Queue:           q,
		Stream:          s,
		queueName:       queueName,
		resultsTable:    resultsTable,
		pollingInterval: 100 * time.Millisecond,
		registry:        make(map[string]HandlerFunc),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register binds name to fn; re-registering a name overwrites it.
func (d *Dispatcher) Register(name string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registry[name] = fn
}

// Invoke performs the full client-side round trip: construct a task, push
// it, and wait for its result. It is the Go analogue of the task()
// decorator facade described for the invocation decorator API.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args []any, kwargs map[string]any) (any, error) {
	tr := telemetry.Track("invoke")
	defer tr.Finish()

	t := task.New(name, args, kwargs)

	if err := d.Queue.Push(ctx, d.queueName, t); err != nil {
		return nil, err
	}
	tr.Mark("push")

	start := time.Now()
	payload, err := d.Stream.Wait(ctx, d.resultsTable, t.ID, d.pollingInterval)
	metrics.WaitLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	tr.Mark("wait")
	if err != nil {
		if ctx.Err() != nil {
			return nil, colaserr.Cancel("dispatcher.Invoke", ctx.Err())
		}
		return nil, err
	}

	return d.decodeResult(payload)
}

func (d *Dispatcher) decodeResult(payload []byte) (any, error) {
	if !d.envelope {
		return codec.Decode(payload)
	}
	v, err := codec.Decode(payload)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return v, nil
	}
	if ok, _ := m["ok"].(bool); !ok {
		msg, _ := m["error"].(string)
		return nil, colaserr.Handler("dispatcher.Invoke", errString(msg))
	}
	return m["value"], nil
}

// Run drives the worker loop: it consumes d.Queue.Tasks, looks up the
// handler by name, executes it, and stores the result. With envelope mode
// off (the default), a missing handler or a handler error propagates and
// stops the loop, matching the documented current behavior. With envelope
// mode on, the error is captured in the result and the loop continues.
func (d *Dispatcher) Run(ctx context.Context) error {
	for to := range d.Queue.Tasks(ctx, d.queueName, d.pollingInterval) {
		if to.Err != nil {
			return to.Err
		}
		if err := d.execute(ctx, to.Task); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (d *Dispatcher) execute(ctx context.Context, t task.Task) error {
	tr := telemetry.Track("execute")
	defer tr.Finish()

	d.mu.RLock()
	fn, ok := d.registry[t.Name]
	d.mu.RUnlock()

	if !ok {
		err := colaserr.Handler("dispatcher.execute", errString("no handler registered for "+t.Name))
		if !d.envelope {
			return err
		}
		return d.storeError(ctx, t.ID, err)
	}

	result, err := fn(t.Args, t.Kwargs)
	tr.Mark("handler")
	if err != nil {
		herr := colaserr.Handler("dispatcher.execute", err)
		if !d.envelope {
			return herr
		}
		return d.storeError(ctx, t.ID, herr)
	}

	payload, err := d.encodeResult(result)
	if err != nil {
		return err
	}
	return d.Stream.Store(ctx, d.resultsTable, t.ID, payload)
}

func (d *Dispatcher) encodeResult(v any) ([]byte, error) {
	if !d.envelope {
		return codec.Encode(v)
	}
	return codec.Encode(resultEnvelope{OK: true, Value: v})
}

func (d *Dispatcher) storeError(ctx context.Context, id uuid.UUID, cause error) error {
	payload, err := codec.Encode(resultEnvelope{OK: false, Error: cause.Error()})
	if err != nil {
		return err
	}
	return d.Stream.Store(ctx, d.resultsTable, id, payload)
}

// RunWorkerPool runs n concurrent worker loops over the same queue using
// errgroup, so a single process can host multiple consumers without
// emulating SKIP LOCKED itself: each goroutine's Pop still goes through the
// storage layer's own atomic dequeue.
func (d *Dispatcher) RunWorkerPool(ctx context.Context, n int) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error { return d.Run(ctx) })
	}
	return g.Wait()
}

type errString string

func (e errString) Error() string { return string(e) }

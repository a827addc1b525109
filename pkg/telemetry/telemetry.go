// Package telemetry records per-operation latency traces, one JSONL file
// per traced operation (invoke, execute, retention), via an async
// background writer, independent of the Prometheus counters in pkg/metrics.
// Traces are for offline latency breakdowns; metrics are for live scraping.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Step is one marked segment of a trace, in milliseconds.
type Step struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration_ms"`
}

// Trace accumulates marked steps between Track and Finish.
type Trace struct {
	Name    string    `json:"name"`
	Start   time.Time `json:"start"`
	Steps   []Step    `json:"steps"`
	TotalMS float64   `json:"total_ms"`

	lastMark time.Time
	rec      *Recorder
}

// sink is the open file plus its write buffer for one operation name.
type sink struct {
	file *os.File
	buf  *bufio.Writer
}

// Recorder owns the trace queue and the background writer draining it.
type Recorder struct {
	dir      string
	bufSize  int
	maxBytes int64
	flushInt time.Duration

	mu    sync.Mutex
	sinks map[string]*sink

	queue    chan *Trace
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var global *Recorder

// Init sets up the package-level Recorder writing under dir.
func Init(dir string, bufferSize, queueCapacity int, flushInterval time.Duration, maxFileSize int64) {
	global, _ = New(dir, bufferSize, queueCapacity, flushInterval, maxFileSize)
}

// Track starts a trace on the package-level Recorder. Safe to call when
// telemetry was never initialized: the returned trace is inert.
func Track(name string) *Trace {
	if global == nil {
		return &Trace{Name: name}
	}
	return global.Track(name)
}

// Close flushes and stops the package-level Recorder.
func Close() {
	if global != nil {
		global.Close()
		global = nil
	}
}

// New creates a Recorder with an async background writer.
func New(dir string, bufferSize, queueCapacity int, flushInterval time.Duration, maxFileSize int64) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	r := &Recorder{
		dir:      dir,
		bufSize:  bufferSize,
		maxBytes: maxFileSize,
		flushInt: flushInterval,
		sinks:    make(map[string]*sink),
		queue:    make(chan *Trace, queueCapacity),
		stopCh:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.writerLoop()
	return r, nil
}

// Track starts a new trace bound to this Recorder.
func (r *Recorder) Track(name string) *Trace {
	now := time.Now().UTC()
	return &Trace{Name: name, Start: now, lastMark: now, rec: r}
}

// Mark records the time elapsed since the previous mark (or since Track)
// under the given label.
func (tr *Trace) Mark(label string) {
	now := time.Now().UTC()
	tr.Steps = append(tr.Steps, Step{Name: label, Duration: now.Sub(tr.lastMark).Seconds() * 1000})
	tr.lastMark = now
}

// Finish totals the trace and enqueues it for background writing. Calling
// Finish more than once, or on an inert trace, is a no-op. A full queue
// drops the trace rather than block the traced operation.
func (tr *Trace) Finish() {
	if tr.rec == nil {
		return
	}
	tr.TotalMS = time.Since(tr.Start).Seconds() * 1000

	var marked float64
	for _, s := range tr.Steps {
		marked += s.Duration
	}
	if rest := tr.TotalMS - marked; rest > 0.001 {
		tr.Steps = append(tr.Steps, Step{Name: "unmarked", Duration: rest})
	}

	select {
	case tr.rec.queue <- tr:
	default:
	}
	tr.rec = nil
}

func (r *Recorder) writerLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.flushInt)
	defer ticker.Stop()

	for {
		select {
		case tr := <-r.queue:
			line, err := json.Marshal(tr)
			if err != nil {
				continue
			}
			r.mu.Lock()
			if s := r.sinkFor(tr.Name); s != nil {
				s.buf.Write(line)
				s.buf.WriteByte('\n')
			}
			r.mu.Unlock()

		case <-ticker.C:
			r.mu.Lock()
			r.flushAndRotate()
			r.mu.Unlock()

		case <-r.stopCh:
			r.mu.Lock()
			for pending := true; pending; {
				select {
				case tr := <-r.queue:
					if line, err := json.Marshal(tr); err == nil {
						if s := r.sinkFor(tr.Name); s != nil {
							s.buf.Write(line)
							s.buf.WriteByte('\n')
						}
					}
				default:
					pending = false
				}
			}
			for _, s := range r.sinks {
				s.buf.Flush()
				s.file.Sync()
				s.file.Close()
			}
			r.mu.Unlock()
			return
		}
	}
}

// flushAndRotate flushes every sink and drops any file that has grown past
// maxBytes; the sink is recreated lazily on the next trace for that
// operation. Callers hold r.mu.
func (r *Recorder) flushAndRotate() {
	for name, s := range r.sinks {
		s.buf.Flush()
		fi, err := s.file.Stat()
		if err != nil || fi.Size() <= r.maxBytes {
			continue
		}
		s.file.Close()
		os.Remove(s.file.Name())
		delete(r.sinks, name)
		fmt.Fprintf(os.Stderr, "telemetry: rotated %s traces (exceeded %d bytes)\n", name, r.maxBytes)
	}
}

// sinkFor returns the open sink for op, creating it if needed. Callers hold
// r.mu. Returns nil when the file cannot be opened.
func (r *Recorder) sinkFor(op string) *sink {
	if s, ok := r.sinks[op]; ok {
		return s
	}
	path := filepath.Join(r.dir, op+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: cannot open %s: %v\n", path, err)
		return nil
	}
	s := &sink{file: f, buf: bufio.NewWriterSize(f, r.bufSize)}
	r.sinks[op] = s
	return s
}

// Close stops the background writer after flushing all sinks.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()
	})
}

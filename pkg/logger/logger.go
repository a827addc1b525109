// Package logger provides the process-wide slog logger used by the
// dispatcher, the storage backends, and the retention sweep. Records are
// handed to a background goroutine over a bounded channel and drained into
// a flushed bufio.Writer, so a Push or Pop never blocks on log I/O.
package logger

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var Log *slog.Logger

// Audit is an optional dedicated audit logger used by the retention sweep
// to record per-table purge counts. Nil unless AttachAuditFileSink has been
// called; callers fall back to Log when Audit is nil.
var Audit *slog.Logger

const (
	recordQueueLen = 10000
	writeBufSize   = 8192
	flushEvery     = time.Second
)

// queueWriter satisfies io.Writer by enqueueing a copy of each record onto
// the drain channel. A full queue drops the record rather than stall the
// hot path.
type queueWriter struct {
	records chan<- []byte
}

func (w *queueWriter) Write(p []byte) (int, error) {
	rec := make([]byte, len(p))
	copy(rec, p)
	select {
	case w.records <- rec:
	default:
	}
	return len(p), nil
}

var (
	records chan []byte
	stop    chan struct{}
	drained sync.WaitGroup
)

// Init initializes the global logger, taking the level from the
// COLAS_LOG_LEVEL env var (default info).
func Init() {
	InitWithLevel("")
}

// InitWithLevel initializes the global logger at the given level ("debug",
// "info", "warn", "error"). An empty level falls back to COLAS_LOG_LEVEL.
// The sink defaults to stdout; COLAS_LOG_SINK=file:/path redirects it.
func InitWithLevel(level string) {
	if level == "" {
		level = os.Getenv("COLAS_LOG_LEVEL")
	}

	records = make(chan []byte, recordQueueLen)
	stop = make(chan struct{})
	Log = slog.New(slog.NewTextHandler(
		&queueWriter{records: records},
		&slog.HandlerOptions{Level: parseLevel(level)},
	))

	drained.Add(1)
	go drain(os.Getenv("COLAS_LOG_SINK"), records, stop)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// drain moves records from the queue into a buffered writer, flushing on a
// ticker and once more at shutdown.
func drain(sink string, records <-chan []byte, stop <-chan struct{}) {
	defer drained.Done()

	out := os.Stdout
	var f *os.File
	if path, ok := strings.CutPrefix(sink, "file:"); ok {
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: cannot open sink %s: %v\n", path, err)
		} else {
			out = f
		}
	}
	buf := bufio.NewWriterSize(out, writeBufSize)

	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()
	for {
		select {
		case rec := <-records:
			buf.Write(rec)
		case <-ticker.C:
			buf.Flush()
		case <-stop:
			for pending := true; pending; {
				select {
				case rec := <-records:
					buf.Write(rec)
				default:
					pending = false
				}
			}
			buf.Flush()
			if f != nil {
				f.Close()
			}
			return
		}
	}
}

// Sync stops the drain goroutine after flushing whatever is buffered.
func Sync() {
	if stop != nil {
		close(stop)
		drained.Wait()
	}
}

// AttachAuditFileSink points the Audit logger at <dir>/audit.log, creating
// the directory if needed. An oversized existing file is rotated aside
// first. Symlinked audit paths are rejected.
func AttachAuditFileSink(dir string) error {
	if dir == "" {
		return fmt.Errorf("empty audit dir")
	}
	if fi, err := os.Lstat(dir); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("audit path is a symlink: %s", dir)
		}
		if !fi.IsDir() {
			return fmt.Errorf("audit path is not a directory: %s", dir)
		}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create audit directory: %w", err)
	}

	fname := filepath.Join(dir, "audit.log")
	const maxSize = 10 * 1024 * 1024
	if fi, err := os.Stat(fname); err == nil && fi.Size() > maxSize {
		_ = os.Rename(fname, fname+"."+fi.ModTime().UTC().Format("20060102T150405Z"))
	}
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log file: %w", err)
	}
	Audit = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	Audit.Info("audit_sink_attached", "path", fname)
	return nil
}

// Debug logs with slog-style key/value pairs.
func Debug(msg string, args ...any) {
	if Log != nil {
		Log.Debug(msg, args...)
	}
}

// Info logs with slog-style key/value pairs.
func Info(msg string, args ...any) {
	if Log != nil {
		Log.Info(msg, args...)
	}
}

// Warn logs with slog-style key/value pairs.
func Warn(msg string, args ...any) {
	if Log != nil {
		Log.Warn(msg, args...)
	}
}

// Error logs with slog-style key/value pairs.
func Error(msg string, args ...any) {
	if Log != nil {
		Log.Error(msg, args...)
	}
}

// LogConfigSummary prints a human-readable startup block listing the
// resolved configuration, bypassing the structured logger so the dump is
// visible even before Init.
func LogConfigSummary(title string, items []string) {
	if len(items) == 0 {
		return
	}
	header := "== " + titleWords(title) + " "
	const width = 60
	if len(header) < width {
		header += strings.Repeat("=", width-len(header))
	}
	fmt.Fprintln(os.Stdout, header)
	for _, it := range items {
		fmt.Fprintln(os.Stdout, "- "+it)
	}
	fmt.Fprintln(os.Stdout)
}

func titleWords(s string) string {
	words := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

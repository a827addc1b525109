package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitWithLevelWritesToFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colas.log")
	t.Setenv("COLAS_LOG_SINK", "file:"+path)

	InitWithLevel("debug")
	Info("queue_push_ok", "queue", "tasks")
	Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "queue_push_ok")
	require.Contains(t, string(b), "queue=tasks")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
	require.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestAttachAuditFileSinkCreatesLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audit")
	require.NoError(t, AttachAuditFileSink(dir))
	t.Cleanup(func() { Audit = nil })

	b, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	require.Contains(t, string(b), "audit_sink_attached")
}

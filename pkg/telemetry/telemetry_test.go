package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTraceWrittenAsJSONLPerOperation(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, 4096, 16, 10*time.Millisecond, 1<<20)
	require.NoError(t, err)

	tr := r.Track("invoke")
	tr.Mark("push")
	tr.Mark("wait")
	tr.Finish()
	r.Close()

	f, err := os.Open(filepath.Join(dir, "invoke.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan(), "expected one trace line")

	var got Trace
	require.NoError(t, json.Unmarshal(sc.Bytes(), &got))
	require.Equal(t, "invoke", got.Name)
	require.GreaterOrEqual(t, len(got.Steps), 2)
	require.Equal(t, "push", got.Steps[0].Name)
	require.Equal(t, "wait", got.Steps[1].Name)
}

func TestFinishTwiceEnqueuesOnce(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, 4096, 16, 10*time.Millisecond, 1<<20)
	require.NoError(t, err)

	tr := r.Track("execute")
	tr.Finish()
	tr.Finish()
	r.Close()

	b, err := os.ReadFile(filepath.Join(dir, "execute.jsonl"))
	require.NoError(t, err)
	require.Equal(t, 1, bytes.Count(b, []byte("\n")))
}

func TestTrackWithoutInitIsInert(t *testing.T) {
	tr := Track("never-initialized")
	tr.Mark("step")
	tr.Finish() // must not panic
}

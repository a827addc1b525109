package colaserr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOfMatchesCode(t *testing.T) {
	err := Config("backend.Connect", "unsupported DSN: foo")
	require.True(t, Of(err, ConfigError))
	require.False(t, Of(err, StorageError))
}

func TestWrapPreservesInnerAndUnwraps(t *testing.T) {
	inner := errors.New("connection refused")
	err := Storage("queue.Push", inner)
	require.True(t, errors.Is(err, inner))
	require.Equal(t, inner, err.Unwrap())
}

func TestIsComparesByCode(t *testing.T) {
	a := Cancel("stream.Wait", errors.New("context canceled"))
	b := Cancel("queue.Tasks", errors.New("different cause"))
	require.True(t, errors.Is(a, b))

	c := Handler("dispatcher.execute", errors.New("boom"))
	require.False(t, errors.Is(a, c))
}

func TestWrapNilReturnsNil(t *testing.T) {
	require.Nil(t, Storage("op", nil))
}

func TestErrorStringIncludesOpAndCode(t *testing.T) {
	err := New("queue.Pop", StorageError, "row gone")
	require.Contains(t, err.Error(), "queue.Pop")
	require.Contains(t, err.Error(), string(StorageError))
	require.Contains(t, err.Error(), "row gone")
}

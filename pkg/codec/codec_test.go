package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"colas/pkg/colaserr"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []any{
		int64(42),
		3.14,
		true,
		false,
		nil,
		"hello",
		[]byte{1, 2, 3},
		[]any{int64(1), "two", 3.0},
		map[string]any{"a": int64(1), "b": "two"},
	}
	for _, v := range cases {
		b, err := Encode(v)
		require.NoError(t, err)
		got, err := Decode(b)
		require.NoError(t, err)
		require.EqualValues(t, v, got)
	}
}

func TestDecodeWidensSmallIntegersToInt64(t *testing.T) {
	b, err := Encode(int64(2))
	require.NoError(t, err)
	v, err := Decode(b)
	require.NoError(t, err)
	require.IsType(t, int64(0), v)
	require.EqualValues(t, 2, v)

	b, err = EncodeInvocation(Invocation{
		Name:   "mul",
		Args:   []any{int64(2), int64(3)},
		Kwargs: map[string]any{"n": int64(7)},
	})
	require.NoError(t, err)
	inv, err := DecodeInvocation(b)
	require.NoError(t, err)
	require.IsType(t, int64(0), inv.Args[0])
	require.IsType(t, int64(0), inv.Args[1])
	require.IsType(t, int64(0), inv.Kwargs["n"])
}

func TestDecodeMalformedBytesIsCodecError(t *testing.T) {
	_, err := Decode([]byte{0xc1}) // msgpack "never used" marker
	require.Error(t, err)
	require.True(t, colaserr.Of(err, colaserr.CodecError))
}

func TestEncodeInvocationDecodeInvocationRoundTrip(t *testing.T) {
	inv := Invocation{
		Name:   "mul",
		Args:   []any{int64(2), int64(3)},
		Kwargs: map[string]any{"verbose": true},
	}
	b, err := EncodeInvocation(inv)
	require.NoError(t, err)

	got, err := DecodeInvocation(b)
	require.NoError(t, err)
	require.Equal(t, inv.Name, got.Name)
	require.EqualValues(t, inv.Args, got.Args)
	require.EqualValues(t, inv.Kwargs, got.Kwargs)
}

func TestDecodeInvocationMalformedIsCodecError(t *testing.T) {
	_, err := DecodeInvocation([]byte{0xc1})
	require.Error(t, err)
	require.True(t, colaserr.Of(err, colaserr.CodecError))
}

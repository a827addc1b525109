// Package codec provides the schema-less MessagePack serialization shared
// by the queue and stream storage layers. The wire bytes are the
// compatibility surface between processes, so the encoding is plain
// MessagePack with no framing or versioning of its own.
package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"colas/pkg/colaserr"
)

// Invocation is the 3-element array encoded as a Queue entry's payload:
// [name, args, kwargs].
type Invocation struct {
	Name   string
	Args   []any
	Kwargs map[string]any
}

// Encode serializes v to a MessagePack blob.
func Encode(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, colaserr.Codec("codec.Encode", err)
	}
	return b, nil
}

// decode unmarshals b into v with loose interface decoding: integers
// surface as int64/uint64 and floats as float64 instead of the narrowest
// width that fits the wire value. Handlers and callers switch on int64;
// without this a round-tripped 2 would come back as int8.
func decode(b []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	return dec.Decode(v)
}

// Decode deserializes a MessagePack blob into a generic value. Maps decode
// to map[string]any, arrays to []any (the canonical ordered-sequence
// normalization callers must apply to re-normalize positional args), and
// integers widen to int64/uint64.
func Decode(b []byte) (any, error) {
	var v any
	if err := decode(b, &v); err != nil {
		return nil, colaserr.Codec("codec.Decode", err)
	}
	return v, nil
}

// EncodeInvocation serializes an Invocation as the [name, args, kwargs]
// array form the Queue payload requires.
func EncodeInvocation(inv Invocation) ([]byte, error) {
	arr := []any{inv.Name, inv.Args, inv.Kwargs}
	return Encode(arr)
}

// DecodeInvocation is the inverse of EncodeInvocation.
func DecodeInvocation(b []byte) (Invocation, error) {
	var arr [3]msgpack.RawMessage
	if err := msgpack.Unmarshal(b, &arr); err != nil {
		return Invocation{}, colaserr.Codec("codec.DecodeInvocation", err)
	}
	var name string
	if err := msgpack.Unmarshal(arr[0], &name); err != nil {
		return Invocation{}, colaserr.Codec("codec.DecodeInvocation", err)
	}
	var args []any
	if err := decode(arr[1], &args); err != nil {
		return Invocation{}, colaserr.Codec("codec.DecodeInvocation", err)
	}
	var kwargs map[string]any
	if err := decode(arr[2], &kwargs); err != nil {
		return Invocation{}, colaserr.Codec("codec.DecodeInvocation", err)
	}
	return Invocation{Name: name, Args: args, Kwargs: kwargs}, nil
}

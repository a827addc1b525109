// Package task defines the Task record carried through the Queue.
package task

import (
	"github.com/google/uuid"

	"colas/pkg/codec"
	"colas/pkg/colaserr"
)

// Task is a single invocation record: a handler name plus its arguments,
// addressed by a fresh v4 UUID.
type Task struct {
	ID     uuid.UUID
	Name   string
	Args   []any
	Kwargs map[string]any
}

// New constructs a Task with a freshly generated v4 identifier.
func New(name string, args []any, kwargs map[string]any) Task {
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return Task{ID: uuid.New(), Name: name, Args: args, Kwargs: kwargs}
}

// EncodePayload encodes the (name, args, kwargs) triple as the Queue entry
// payload, per the wire format in the external interfaces contract.
func (t Task) EncodePayload() ([]byte, error) {
	return codec.EncodeInvocation(codec.Invocation{Name: t.Name, Args: t.Args, Kwargs: t.Kwargs})
}

// DecodePayload reconstructs a Task's name/args/kwargs from its wire
// payload, attaching the given identifier.
func DecodePayload(id uuid.UUID, payload []byte) (Task, error) {
	inv, err := codec.DecodeInvocation(payload)
	if err != nil {
		return Task{}, colaserr.Codec("task.DecodePayload", err)
	}
	return Task{ID: id, Name: inv.Name, Args: inv.Args, Kwargs: inv.Kwargs}, nil
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler processes one kind of task, identified by Name. The raw payload is
// whatever the matching Enqueue call serialized.
type Handler interface {
	Name() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

// TaskHandlerFunc is the typed form of a handler body.
type TaskHandlerFunc[T any] func(ctx context.Context, payload T) error

// NewTaskHandler wraps a typed function into a Handler. The task name is
// derived from the payload type, so enqueueing a value of type T and
// registering NewTaskHandler[T] always line up.
func NewTaskHandler[T any](fn TaskHandlerFunc[T]) Handler {
	var zero T
	return &typedHandler[T]{
		name: qualifiedStructName(zero),
		fn:   fn,
	}
}

type typedHandler[T any] struct {
	name string
	fn   TaskHandlerFunc[T]
}

func (h *typedHandler[T]) Name() string { return h.name }

func (h *typedHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", h.name, err)
	}
	return h.fn(ctx, v)
}

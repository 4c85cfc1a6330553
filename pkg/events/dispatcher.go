package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/licensekit/pkg/billing"
)

// Handler reacts to one billing event type.
type Handler interface {
	EventType() billing.EventType
	Handle(ctx context.Context, event *billing.Event) error
}

// Dispatcher routes events to registered handlers. Events with no handler
// are acknowledged and dropped. A handler error propagates to the caller so
// the delivery mechanism can redeliver; handlers therefore return errors
// only for transient faults and treat everything expected as a no-op.
type Dispatcher struct {
	handlers map[billing.EventType][]Handler
	recorder Recorder
	logger   *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRecorder attaches an audit log for received events.
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// WithLogger sets the dispatcher's logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher over the given handlers.
func NewDispatcher(handlers []Handler, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[billing.EventType][]Handler),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, h := range handlers {
		d.handlers[h.EventType()] = append(d.handlers[h.EventType()], h)
	}
	return d
}

// Dispatch records the event and runs every handler registered for its type.
func (d *Dispatcher) Dispatch(ctx context.Context, event *billing.Event) error {
	if event == nil {
		return nil
	}

	log := d.logger.With(
		slog.String("event_id", event.ID),
		slog.String("event_type", string(event.Type)))

	// Recording is best effort: losing an audit row must not reject a
	// delivery that the handlers can still process.
	if d.recorder != nil {
		if err := d.recorder.Record(ctx, event); err != nil {
			log.Error("failed to record event", slog.String("error", err.Error()))
		}
	}

	handlers, ok := d.handlers[event.Type]
	if !ok {
		log.Debug("no handler for event type, acknowledged")
		return nil
	}

	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			log.Error("event handler failed", slog.String("error", err.Error()))
			return fmt.Errorf("handle %s event %s: %w", event.Type, event.ID, err)
		}
	}

	log.Info("event processed")
	return nil
}

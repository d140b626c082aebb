// Package eventdispatcher delivers domain events to in-process handlers. It is
// the choreography engine between bounded contexts: delivery is synchronous,
// depth-first and in registration order.
package eventdispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/pkg/common/logger"
)

// DeliveryOutcome is the result of dispatching one event.
type DeliveryOutcome string

const (
	// OutcomeInFlight means the event was journaled and its handlers have not
	// finished yet.
	OutcomeInFlight DeliveryOutcome = "IN_FLIGHT"
	// OutcomeHandled means every handler for the event returned successfully.
	OutcomeHandled DeliveryOutcome = "HANDLED"
	// OutcomeFailedHandler means a handler failed and the rest were skipped.
	OutcomeFailedHandler DeliveryOutcome = "FAILED_HANDLER"
)

// Delivery describes a dispatch attempt.
type Delivery struct {
	Envelope      events.EventEnvelope
	Outcome       DeliveryOutcome
	FailedHandler string
	Err           error
}

// Journal observes every dispatch attempt. A journal failure is logged and
// never fails the chain.
type Journal interface {
	// Record journals an event as its dispatch starts, so a cause is always
	// journaled ahead of the events its handlers raise.
	Record(ctx context.Context, d Delivery) error
	// Settle stores the outcome once the event's handlers, cascades included,
	// have returned.
	Settle(ctx context.Context, d Delivery) error
}

type registration struct {
	name string
	fn   events.HandlerFunc
}

// Dispatcher manages event handlers and dispatches events to them.
// Several handlers may subscribe to one event type; they run one after the
// other in the order they were registered. A handler that publishes through
// the dispatcher has its events fully processed, cascades included, before
// the next sibling handler runs.
//
// Typical usage:
//
//	dispatcher := eventdispatcher.New(tracer, log)
//
//	dispatcher.RegisterHandler(ctx, student.EventTypeEnrollmentCreated, "payment.open_payment", fn)
//	_ = dispatcher.Register(ctx, contentHandler)
//
//	err := dispatcher.PublishDomainEvent(ctx, evt)
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[events.EventType][]registration

	strict  bool
	journal Journal
	metrics Metrics

	tracer trace.Tracer
	logger *logger.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithJournal records every dispatch attempt.
func WithJournal(j Journal) Option { return func(d *Dispatcher) { d.journal = j } }

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option { return func(d *Dispatcher) { d.metrics = m } }

// WithStrictRouting makes events without handlers fail with HandlerNotFoundError
// instead of being a no-op.
func WithStrictRouting() Option { return func(d *Dispatcher) { d.strict = true } }

// New constructs a new Dispatcher that uses the provided tracer for
// instrumentation. The dispatcher starts with an empty registry.
func New(tracer trace.Tracer, log *logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[events.EventType][]registration),
		metrics:  noopMetrics{},
		tracer:   tracer,
		logger:   log.With("component", "event_dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterHandler appends a named handler for an event type.
//
// This method is safe to call concurrently.
func (d *Dispatcher) RegisterHandler(
	ctx context.Context,
	eventType events.EventType,
	name string,
	handler events.HandlerFunc,
) error {
	logger := d.logger.With("operation", "register_handler", "event_type", eventType, "handler", name)
	_, span := d.tracer.Start(ctx, "event_dispatcher.register_handler",
		trace.WithAttributes(
			attribute.String("event_type", string(eventType)),
			attribute.String("handler", name),
		),
	)
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range d.handlers[eventType] {
		if r.name == name {
			err := &HandlerAlreadyRegisteredError{EventType: eventType, Handler: name}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	d.handlers[eventType] = append(d.handlers[eventType], registration{name: name, fn: handler})
	logger.Debug(ctx, "handler registered", "position", len(d.handlers[eventType]))
	span.AddEvent("handler_registered")
	span.SetStatus(codes.Ok, "handler registered")
	return nil
}

// Register subscribes an EventHandler to every event type it supports.
func (d *Dispatcher) Register(ctx context.Context, h events.EventHandler) error {
	for _, t := range h.SupportedEvents() {
		if err := d.RegisterHandler(ctx, t, h.HandlerName(), h.HandleEvent); err != nil {
			return err
		}
	}
	return nil
}

// PublishDomainEvent wraps the event in an envelope and dispatches it.
// It satisfies events.DomainEventPublisher.
func (d *Dispatcher) PublishDomainEvent(ctx context.Context, evt events.DomainEvent, opts ...events.PublishOption) error {
	return d.Dispatch(ctx, events.NewEnvelope(evt, opts...))
}

// Dispatch delivers the envelope to every handler registered for its type.
// The first failing handler aborts the rest; the event is not redelivered and
// nothing already applied is undone. Failures come back as a *ChoreographyError.
func (d *Dispatcher) Dispatch(ctx context.Context, evt events.EventEnvelope) error {
	ch, meta := enter(ctx)
	evt.Metadata = meta
	eventID := evt.Payload.EventID()

	logger := logger.NewLoggerContext(d.logger.With(
		"operation", "dispatch",
		"event_type", evt.Type,
		"event_id", eventID,
		"chain_id", meta.ChainID,
		"depth", meta.Depth,
	))
	ctx, span := d.tracer.Start(ctx, "event_dispatcher.dispatch",
		trace.WithAttributes(
			attribute.String("event_type", string(evt.Type)),
			attribute.String("event_id", eventID.String()),
			attribute.String("chain_id", meta.ChainID.String()),
			attribute.Int("depth", meta.Depth),
		))
	defer span.End()

	d.mu.RLock()
	regs := append([]registration(nil), d.handlers[evt.Type]...)
	d.mu.RUnlock()

	if len(regs) == 0 && d.strict {
		err := &HandlerNotFoundError{EventType: evt.Type}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if meta.Depth == 0 {
		ch.root = evt.Type
	}
	d.metrics.IncEventsDispatched(ctx, evt.Type)
	d.record(ctx, Delivery{Envelope: evt, Outcome: OutcomeInFlight})
	logger.Add("handler_count", len(regs))

	handlerCtx := withFrame(ctx, frame{chain: ch, depth: meta.Depth, eventID: eventID})
	for _, reg := range regs {
		err := ctx.Err()
		if err == nil {
			err = reg.fn(handlerCtx, evt)
		}
		if err != nil {
			cerr := d.fail(ctx, ch, evt, reg.name, err)
			span.RecordError(cerr)
			span.SetStatus(codes.Error, cerr.Error())
			return cerr
		}
		ch.applied = append(ch.applied, HandlerStep{EventType: evt.Type, Handler: reg.name, Depth: meta.Depth})
		span.AddEvent("handler_completed", trace.WithAttributes(attribute.String("handler", reg.name)))
	}

	ch.completed = append(ch.completed, evt.Type)
	d.settle(ctx, Delivery{Envelope: evt, Outcome: OutcomeHandled})

	span.SetStatus(codes.Ok, "event dispatched successfully")
	logger.Debug(ctx, "event dispatched successfully")
	return nil
}

// fail turns a handler error into the chain's ChoreographyError. A failure
// that already carries one from a nested dispatch is passed through so the
// caller sees the innermost failing step.
func (d *Dispatcher) fail(
	ctx context.Context,
	ch *chain,
	evt events.EventEnvelope,
	handler string,
	err error,
) error {
	d.settle(ctx, Delivery{Envelope: evt, Outcome: OutcomeFailedHandler, FailedHandler: handler, Err: err})
	d.metrics.IncHandlerFailures(ctx, evt.Type, handler)

	var nested *ChoreographyError
	if errors.As(err, &nested) {
		return err
	}

	cerr := &ChoreographyError{
		ChainID:   ch.id,
		EventID:   evt.Payload.EventID(),
		EventType: evt.Type,
		Handler:   handler,
		Depth:     evt.Metadata.Depth,
		Root:      ch.root,
		Completed: append([]events.EventType(nil), ch.completed...),
		Applied:   append([]HandlerStep(nil), ch.applied...),
		Err:       err,
	}

	partial := cerr.PartiallyApplied()
	if partial {
		d.metrics.IncPartialFailures(ctx, evt.Type)
	}
	d.logger.Error(ctx, "choreography handler failed",
		"partial_failure", partial,
		"chain_id", ch.id,
		"event_type", evt.Type,
		"event_id", cerr.EventID,
		"handler", handler,
		"depth", cerr.Depth,
		"completed", fmt.Sprint(cerr.Completed),
		"error", err,
	)
	return cerr
}

func (d *Dispatcher) record(ctx context.Context, del Delivery) {
	if d.journal == nil {
		return
	}
	// A cancelled request must still leave a journal record behind.
	if err := d.journal.Record(context.WithoutCancel(ctx), del); err != nil {
		d.journalFailed(ctx, del, err)
	}
}

func (d *Dispatcher) settle(ctx context.Context, del Delivery) {
	if d.journal == nil {
		return
	}
	if err := d.journal.Settle(context.WithoutCancel(ctx), del); err != nil {
		d.journalFailed(ctx, del, err)
	}
}

func (d *Dispatcher) journalFailed(ctx context.Context, del Delivery, err error) {
	d.logger.Warn(ctx, "failed to journal event delivery",
		"event_type", del.Envelope.Type,
		"event_id", del.Envelope.Payload.EventID(),
		"outcome", del.Outcome,
		"error", err,
	)
}

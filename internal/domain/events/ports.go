// Package events provides domain event handling capabilities for communicating state changes
// across bounded contexts in a decoupled way.
package events

import "context"

// DomainEventPublisher publishes domain events to notify other parts of the system about
// important domain changes. Aggregates never call it directly; services and handlers
// publish the events an aggregate raised once its state has been persisted.
type DomainEventPublisher interface {
	// PublishDomainEvent sends a domain event to interested subscribers. The provided context
	// controls cancellation and deadlines. Returns an error if any subscriber fails.
	PublishDomainEvent(ctx context.Context, event DomainEvent, opts ...PublishOption) error
}

// Recorder collects events raised by an aggregate during a command so they can
// be published after the aggregate is persisted.
type Recorder struct {
	pending []DomainEvent
}

// Record queues an event.
func (r *Recorder) Record(evt DomainEvent) { r.pending = append(r.pending, evt) }

// PullEvents returns and clears the queued events.
func (r *Recorder) PullEvents() []DomainEvent {
	out := r.pending
	r.pending = nil
	return out
}

// PublishAll publishes events in order, stopping at the first failure.
func PublishAll(ctx context.Context, pub DomainEventPublisher, evts []DomainEvent) error {
	for _, evt := range evts {
		if err := pub.PublishDomainEvent(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

package eventdispatcher

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ahrav/academy/internal/domain/events"
)

// HandlerNotFoundError is returned in strict routing mode when an event type
// has no registered handler.
type HandlerNotFoundError struct {
	EventType events.EventType
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("no handler registered for event type: %s", e.EventType)
}

// HandlerAlreadyRegisteredError is returned when the same handler name is
// registered twice for one event type.
type HandlerAlreadyRegisteredError struct {
	EventType events.EventType
	Handler   string
}

func (e *HandlerAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("handler %s already registered for event type: %s", e.Handler, e.EventType)
}

// ChoreographyError reports a handler failure inside a chain. Work listed in
// Completed and Applied was already persisted by other contexts and is not
// rolled back; operators reconcile it from the journal.
type ChoreographyError struct {
	ChainID   uuid.UUID
	EventID   uuid.UUID
	EventType events.EventType
	Handler   string
	Depth     int

	// Root is the event that opened the chain. Publishers persist before they
	// publish, so its change is always committed when a handler fails.
	Root events.EventType
	// Completed lists events whose handlers all finished before the failure.
	Completed []events.EventType
	// Applied lists every handler invocation that succeeded before the failure.
	Applied []HandlerStep

	Err error
}

func (e *ChoreographyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "choreography chain %s failed at %s (handler %s, depth %d)",
		e.ChainID, e.EventType, e.Handler, e.Depth)
	if len(e.Completed) > 0 {
		names := make([]string, len(e.Completed))
		for i, t := range e.Completed {
			names[i] = string(t)
		}
		fmt.Fprintf(&b, " after completing [%s]", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *ChoreographyError) Unwrap() error { return e.Err }

// PartiallyApplied reports whether the chain left committed work behind: the
// root publisher's change or any handler that returned before the failure.
func (e *ChoreographyError) PartiallyApplied() bool { return e.Root != "" || len(e.Applied) > 0 }

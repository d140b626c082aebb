package eventdispatcher

import (
	"context"

	"github.com/google/uuid"

	"github.com/ahrav/academy/internal/domain/events"
)

// HandlerStep is one handler invocation that returned successfully.
type HandlerStep struct {
	EventType events.EventType
	Handler   string
	Depth     int
}

// chain tracks the synchronous cascade started by one root publish. It lives
// for the duration of that call and is only touched by the calling goroutine.
type chain struct {
	id        uuid.UUID
	completed []events.EventType
	applied   []HandlerStep

	// root is the event that opened the chain. Its publisher persisted its
	// aggregate before publishing.
	root events.EventType
}

// frame locates the handler currently running inside a chain.
type frame struct {
	chain   *chain
	depth   int
	eventID uuid.UUID
}

type frameKey struct{}

func withFrame(ctx context.Context, f frame) context.Context {
	return context.WithValue(ctx, frameKey{}, f)
}

// enter returns the chain metadata for an event published from ctx. A publish
// outside any handler opens a new chain at depth 0.
func enter(ctx context.Context) (*chain, events.ChainMetadata) {
	if parent, ok := ctx.Value(frameKey{}).(frame); ok {
		return parent.chain, events.ChainMetadata{
			ChainID:     parent.chain.id,
			Depth:       parent.depth + 1,
			CausationID: parent.eventID,
		}
	}
	c := &chain{id: uuid.New()}
	return c, events.ChainMetadata{ChainID: c.id}
}

// ChainIDFromContext returns the id of the chain a handler runs in, if any.
func ChainIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	f, ok := ctx.Value(frameKey{}).(frame)
	if !ok {
		return uuid.Nil, false
	}
	return f.chain.id, true
}

// Package memory provides an in-process stand-in for the Kafka sink. It is
// non-persistent and suits local runs and tests where no broker is available.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/ahrav/academy/internal/infra/eventbus/kafka"
)

type handlerList[T any] []func(T) error

// Broker fans relayed messages out to every subscriber. It satisfies the
// outbox relay's sink so the relay can run without Kafka.
type Broker struct {
	mu sync.RWMutex

	nextID   int
	handlers map[int]func(kafka.Message) error
	order    []int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{handlers: make(map[int]func(kafka.Message) error)}
}

// Subscribe registers handler until ctx is cancelled. Handlers run in
// subscription order.
func (b *Broker) Subscribe(ctx context.Context, handler func(kafka.Message) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.order = append(b.order, id)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(id)
	}()
	return nil
}

func (b *Broker) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish delivers msg to every subscriber, stopping at the first error.
// Handlers are copied before iteration so they may subscribe or cancel
// without deadlocking.
func (b *Broker) Publish(ctx context.Context, msg kafka.Message) error {
	return publish(ctx, b.snapshot(), msg)
}

// Subscribers reports how many handlers are registered.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

func (b *Broker) snapshot() handlerList[kafka.Message] {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(handlerList[kafka.Message], 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.handlers[id])
	}
	return out
}

func publish[T any](ctx context.Context, handlers handlerList[T], msg T) error {
	for _, handler := range handlers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := handler(msg); err != nil {
			return err
		}
	}
	return nil
}

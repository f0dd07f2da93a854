// Package audit provides consumers for the ledger's event trail: an in-process
// fan-out bus, a bounded in-memory log, and a PostgreSQL-backed trail for
// deployments that need a durable record of every state transition.
package audit

import (
	"github.com/asaskevich/EventBus"

	"github.com/foldnet/foldnet/ledger"
)

// topicAll receives every event regardless of kind.
const topicAll = "ledger.events"

// Bus fans ledger events out to subscribers, keyed by event kind.
//
// Publication is synchronous and happens while the ledger lock is held, so
// subscriber callbacks must be fast and must never call back into the ledger.
// Subscribers needing to mutate the ledger should hand the event off to their
// own goroutine.
type Bus struct {
	bus EventBus.Bus
}

// NewBus creates an empty fan-out bus.
func NewBus() *Bus {
	return &Bus{bus: EventBus.New()}
}

// Emit implements ledger.EventSink.
func (b *Bus) Emit(e ledger.Event) {
	b.bus.Publish(string(e.Kind()), e)
	b.bus.Publish(topicAll, e)
}

// Subscribe registers a callback for one event kind.
func (b *Bus) Subscribe(kind ledger.EventKind, fn func(ledger.Event)) error {
	return b.bus.Subscribe(string(kind), fn)
}

// SubscribeAll registers a callback for every event.
func (b *Bus) SubscribeAll(fn func(ledger.Event)) error {
	return b.bus.Subscribe(topicAll, fn)
}

// Unsubscribe removes a previously registered callback for one event kind.
func (b *Bus) Unsubscribe(kind ledger.EventKind, fn func(ledger.Event)) error {
	return b.bus.Unsubscribe(string(kind), fn)
}

// Fanout builds a sink that forwards each event to all given sinks in order.
// Used to feed the bus and a durable trail from one ledger.
func Fanout(sinks ...ledger.EventSink) ledger.EventSink {
	return ledger.SinkFunc(func(e ledger.Event) {
		for _, s := range sinks {
			s.Emit(e)
		}
	})
}

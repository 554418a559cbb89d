// Package notify delivers store change events to subscribers.
//
// A Broker publishes an Event after a mutation has committed. Each listener
// runs in isolation: an error or panic from one listener is logged and does
// not stop delivery to the others or reach the publisher.
package notify

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/spellbook/pkg/types"
)

// Op names the mutation that produced an event.
type Op string

// Mutation operations.
const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
	OpImport Op = "import"
	OpClear  Op = "clear"
)

// Event describes one committed mutation. Names lists the affected entities
// by name; it is empty for OpClear.
type Event struct {
	ID    uuid.UUID
	Kind  types.Kind
	Op    Op
	Names []string
}

// NewEvent builds an event with a fresh time-ordered ID.
func NewEvent(kind types.Kind, op Op, names ...string) Event {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Event{ID: id, Kind: kind, Op: op, Names: names}
}

// Listener receives events. A returned error is logged.
type Listener func(Event) error

// Broker fans events out to subscribers in subscription order.
type Broker struct {
	mu     sync.Mutex
	logger *slog.Logger
	nextID uint64
	subs   []*Subscription
}

// NewBroker creates a broker that logs listener failures to logger. A nil
// logger discards them.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Broker{logger: logger}
}

// Subscription is a registered listener. Close stops delivery.
type Subscription struct {
	broker *Broker
	id     uint64
	kind   types.Kind
	fn     Listener
}

// Subscribe registers fn for events of kind, or for every kind when kind is
// empty.
func (b *Broker) Subscribe(kind types.Kind, fn Listener) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &Subscription{broker: b, id: b.nextID, kind: kind, fn: fn}
	b.subs = append(b.subs, s)
	return s
}

// Close removes the subscription. Closing twice is harmless.
func (s *Subscription) Close() {
	b := s.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == s.id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of active subscriptions.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish delivers ev to every matching subscriber and returns the number of
// listeners that failed.
func (b *Broker) Publish(ev Event) int {
	b.mu.Lock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.kind == "" || s.kind == ev.Kind {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	failed := 0
	for _, s := range targets {
		if err := deliver(s.fn, ev); err != nil {
			failed++
			b.logger.Error("listener failed",
				"event", ev.ID, "kind", ev.Kind, "op", ev.Op, "subscription", s.id, "error", err)
		}
	}
	return failed
}

func deliver(fn Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return fn(ev)
}

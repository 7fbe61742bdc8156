// Package events provides lifecycle notifications for the knowledge graph.
//
// The graph publishes an Event after every mutation it performs. Subscribers
// register a Handler on a Bus, optionally filtered to a set of event names.
// Delivery happens after the graph has released its lock, so a handler may
// safely call back into the graph.
//
// Two delivery modes exist:
//   - Synchronous (default): Publish calls every matching handler in order
//     before returning.
//   - Asynchronous: NewBus(WithAsync(n)) appends events to a queue drained
//     by one worker goroutine. Publish never blocks, so handlers running on
//     the worker may themselves publish (for example by mutating the graph).
//     Close drains the queue, including events published while draining, and
//     stops the worker. Close must not be called from a handler.
//
// Example:
//
//	bus := events.NewBus()
//	unsubscribe := bus.Subscribe(func(e events.Event) {
//		fmt.Printf("%s %s\n", e.Name, e.EntityID)
//	}, events.EntityAdded, events.EntityRemoved)
//	defer unsubscribe()
package events

import (
	"sync"
	"time"
)

// Name identifies the kind of lifecycle notification.
type Name string

const (
	EntityAdded         Name = "entity:added"
	EntityUpdated       Name = "entity:updated"
	EntityRemoved       Name = "entity:removed"
	RelationshipAdded   Name = "relationship:added"
	RelationshipRemoved Name = "relationship:removed"
	InferenceRuleAdded  Name = "inference:rule-added"
	InferenceComplete   Name = "inference:complete"
	MergeComplete       Name = "merge:complete"
	Cleared             Name = "cleared"
)

// Event is a single lifecycle notification.
//
// Only the fields relevant to Name are populated:
//   - entity:added        EntityID, EntityType, EntityName
//   - entity:updated      EntityID, EntityName
//   - entity:removed      EntityID
//   - relationship:added  RelationshipID, SourceID, TargetID, RelationshipType
//   - relationship:removed RelationshipID
//   - inference:rule-added RuleID, RuleName
//   - inference:complete  NewRelationships, TotalInferences
//   - merge:complete      EntitiesAdded, RelationshipsAdded, DuplicatesSkipped
//   - cleared             (no payload)
type Event struct {
	Name      Name      `json:"name"`
	Timestamp time.Time `json:"timestamp"`

	EntityID   string `json:"entity_id,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	EntityName string `json:"entity_name,omitempty"`

	RelationshipID   string `json:"relationship_id,omitempty"`
	RelationshipType string `json:"relationship_type,omitempty"`
	SourceID         string `json:"source_id,omitempty"`
	TargetID         string `json:"target_id,omitempty"`

	RuleID   string `json:"rule_id,omitempty"`
	RuleName string `json:"rule_name,omitempty"`

	NewRelationships int   `json:"new_relationships,omitempty"`
	TotalInferences  int64 `json:"total_inferences,omitempty"`

	EntitiesAdded      int `json:"entities_added,omitempty"`
	RelationshipsAdded int `json:"relationships_added,omitempty"`
	DuplicatesSkipped  int `json:"duplicates_skipped,omitempty"`
}

// IsEntityEvent returns true for entity:* notifications.
func (e Event) IsEntityEvent() bool {
	return e.Name == EntityAdded || e.Name == EntityUpdated || e.Name == EntityRemoved
}

// IsRelationshipEvent returns true for relationship:* notifications.
func (e Event) IsRelationshipEvent() bool {
	return e.Name == RelationshipAdded || e.Name == RelationshipRemoved
}

// Handler receives published events.
type Handler func(Event)

// Publisher is the side of the bus the graph depends on.
type Publisher interface {
	Publish(events ...Event)
}

type subscription struct {
	names map[Name]struct{}
	fn    Handler
}

func (s subscription) wants(name Name) bool {
	if len(s.names) == 0 {
		return true
	}
	_, ok := s.names[name]
	return ok
}

// Bus fans events out to subscribers.
type Bus struct {
	handlersMu sync.RWMutex
	handlers   map[uint64]subscription
	order      []uint64
	nextID     uint64

	// async delivery
	async   bool
	queueMu sync.Mutex
	ready   *sync.Cond
	queue   []Event
	closing bool
	stopped bool
	wg      sync.WaitGroup
}

// Option configures a Bus.
type Option func(*Bus)

// WithAsync switches the bus to asynchronous delivery. buffer is the initial
// queue capacity; the queue grows past it rather than blocking publishers.
func WithAsync(buffer int) Option {
	return func(b *Bus) {
		if buffer < 1 {
			buffer = 1
		}
		b.async = true
		b.queue = make([]Event, 0, buffer)
	}
}

// NewBus creates a Bus. Without options delivery is synchronous.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[uint64]subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.async {
		b.ready = sync.NewCond(&b.queueMu)
		b.wg.Add(1)
		go b.run()
	}
	return b
}

// Subscribe registers fn for the given event names (all events when none are
// given) and returns a function that removes the subscription.
func (b *Bus) Subscribe(fn Handler, names ...Name) func() {
	if fn == nil {
		return func() {}
	}

	sub := subscription{fn: fn}
	if len(names) > 0 {
		sub.names = make(map[Name]struct{}, len(names))
		for _, n := range names {
			sub.names[n] = struct{}{}
		}
	}

	b.handlersMu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[id] = sub
	b.order = append(b.order, id)
	b.handlersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()

	delete(b.handlers, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.handlersMu.RLock()
	defer b.handlersMu.RUnlock()
	return len(b.handlers)
}

// Publish delivers events in order. Events published once Close has
// returned are dropped.
func (b *Bus) Publish(events ...Event) {
	if len(events) == 0 {
		return
	}

	if !b.async {
		for _, e := range events {
			b.dispatch(e)
		}
		return
	}

	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	if b.stopped {
		return
	}
	b.queue = append(b.queue, events...)
	b.ready.Signal()
}

// Close stops asynchronous delivery after draining queued events. It is a
// no-op for synchronous buses and safe to call more than once.
func (b *Bus) Close() {
	if !b.async {
		return
	}

	b.queueMu.Lock()
	b.closing = true
	b.ready.Broadcast()
	b.queueMu.Unlock()

	b.wg.Wait()
}

func (b *Bus) run() {
	defer b.wg.Done()
	for {
		b.queueMu.Lock()
		for len(b.queue) == 0 && !b.closing {
			b.ready.Wait()
		}
		if len(b.queue) == 0 {
			b.stopped = true
			b.queueMu.Unlock()
			return
		}
		batch := b.queue
		b.queue = nil
		b.queueMu.Unlock()

		for _, e := range batch {
			b.dispatch(e)
		}
	}
}

func (b *Bus) dispatch(e Event) {
	b.handlersMu.RLock()
	targets := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		if sub := b.handlers[id]; sub.wants(e.Name) {
			targets = append(targets, sub.fn)
		}
	}
	b.handlersMu.RUnlock()

	for _, fn := range targets {
		fn(e)
	}
}

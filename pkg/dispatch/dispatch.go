// Package dispatch fans decoder, transmit and ringer events out to the
// shell transports (MQTT, WebSocket, database, metrics, GPIO) without ever
// blocking the sample path.
package dispatch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pietro2356/gr-selcall/pkg/logger"
)

// DefaultBuffer is the per-subscriber channel depth.
const DefaultBuffer = 64

// EventType tags events on the bus.
type EventType string

const (
	EventDecode       EventType = "decode"
	EventTransmission EventType = "transmission"
	EventPTT          EventType = "ptt"
	EventGate         EventType = "gate"
	EventRinger       EventType = "ringer"
	EventStatus       EventType = "status"
)

// Event is one unit on the bus.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType, payload interface{}) Event {
	return Event{Type: t, Timestamp: time.Now(), Payload: payload}
}

// Subscriber is one registered consumer. Events arrive on a buffered
// channel in publish order; when the consumer falls behind, events are
// dropped and counted rather than stalling the publisher.
type Subscriber struct {
	name  string
	types map[EventType]bool // empty accepts every type
	ch    chan Event
	drops atomic.Int64
}

// Name returns the registration name.
func (s *Subscriber) Name() string {
	return s.name
}

// Events returns the delivery channel. It is closed on Unsubscribe and
// on dispatcher Close, ending a range loop cleanly.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Drops returns how many events this subscriber has missed.
func (s *Subscriber) Drops() int64 {
	return s.drops.Load()
}

func (s *Subscriber) wants(t EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// Dispatcher routes events to named subscribers.
type Dispatcher struct {
	subs  map[string]*Subscriber
	log   *logger.Logger
	drops atomic.Int64
	mu    sync.RWMutex
}

// New creates an empty dispatcher.
func New(log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		subs: make(map[string]*Subscriber),
		log:  log.WithComponent("dispatch"),
	}
}

// Subscribe registers a consumer under name. No types means every type.
// A second Subscribe with the same name replaces the first and closes its
// channel. A buffer of 0 or less uses DefaultBuffer.
func (d *Dispatcher) Subscribe(name string, buffer int, types ...EventType) *Subscriber {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscriber{
		name: name,
		ch:   make(chan Event, buffer),
	}
	if len(types) > 0 {
		sub.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	d.mu.Lock()
	if old, ok := d.subs[name]; ok {
		close(old.ch)
		d.log.Debug("subscriber replaced", logger.String("name", name))
	}
	d.subs[name] = sub
	d.mu.Unlock()

	d.log.Debug("subscriber registered",
		logger.String("name", name),
		logger.Int("buffer", buffer),
		logger.Int("types", len(types)))
	return sub
}

// Unsubscribe removes the named consumer and closes its channel.
func (d *Dispatcher) Unsubscribe(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if sub, ok := d.subs[name]; ok {
		delete(d.subs, name)
		close(sub.ch)
		d.log.Debug("subscriber unregistered", logger.String("name", name))
	}
}

// Publish fans evt out to every matching subscriber. It never blocks: a
// full subscriber channel drops the event for that subscriber only. A
// zero timestamp is stamped with the current time.
func (d *Dispatcher) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, sub := range d.subs {
		if !sub.wants(evt.Type) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			sub.drops.Add(1)
			d.drops.Add(1)
			d.log.Warn("subscriber buffer full, dropping event",
				logger.String("name", sub.name),
				logger.String("event_type", string(evt.Type)))
		}
	}
}

// SubscriberCount returns the number of registered consumers.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Drops returns the total events dropped across all subscribers.
func (d *Dispatcher) Drops() int64 {
	return d.drops.Load()
}

// Close removes every subscriber and closes their channels.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name, sub := range d.subs {
		close(sub.ch)
		delete(d.subs, name)
	}
	d.log.Debug("dispatcher closed")
}

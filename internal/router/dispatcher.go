package router

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Well-known topics.
const (
	TopicConnectionEstablished = "connection_established"
	TopicConnectionStatus      = "connection_status"
	TopicPriceUpdate           = "price_update"
	TopicPriceBatchUpdate      = "price_batch_update"
	TopicAlertTriggered        = "alert_triggered"
	TopicError                 = "error"
)

// Message is one published event.
type Message struct {
	Topic      string
	Data       json.RawMessage // Raw payload for frames from the server
	Value      any             // Payload for locally published events
	Timestamp  time.Time       // Frame timestamp, zero when absent
	ReceivedAt time.Time
}

// Handler receives messages for the topic it was registered on.
type Handler func(Message)

// Unsubscribe removes a handler. Calling it more than once is a no-op.
type Unsubscribe func()

// DispatcherStats contains runtime statistics.
type DispatcherStats struct {
	Published   int64
	Delivered   int64
	Undelivered int64 // Published with no handler registered
	Handlers    int
}

type subscriber struct {
	fn      Handler
	removed atomic.Bool
}

// Dispatcher routes messages to handlers by topic.
//
// Publish takes a snapshot of the topic's handlers and invokes them in
// registration order without holding the lock, so handlers may subscribe
// and unsubscribe freely. A handler removed during a publish is skipped if
// it has not run yet. Handler panics propagate to the Publish caller.
type Dispatcher struct {
	mu     sync.RWMutex
	topics map[string][]*subscriber
	logger *slog.Logger

	published   atomic.Int64
	delivered   atomic.Int64
	undelivered atomic.Int64
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		topics: make(map[string][]*subscriber),
		logger: logger.With("component", "dispatcher"),
	}
}

// Subscribe registers fn on topic and returns its unsubscribe capability.
func (d *Dispatcher) Subscribe(topic string, fn Handler) Unsubscribe {
	sub := &subscriber{fn: fn}

	d.mu.Lock()
	d.topics[topic] = append(d.topics[topic], sub)
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(topic, sub) })
	}
}

func (d *Dispatcher) remove(topic string, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub.removed.Store(true)

	subs := d.topics[topic]
	for i, s := range subs {
		if s == sub {
			// Copy so snapshots held by in-progress publishes stay intact.
			next := make([]*subscriber, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(d.topics, topic)
			} else {
				d.topics[topic] = next
			}
			return
		}
	}
}

// Publish delivers msg to every handler currently registered on msg.Topic.
func (d *Dispatcher) Publish(msg Message) {
	d.published.Add(1)

	d.mu.RLock()
	subs := d.topics[msg.Topic]
	d.mu.RUnlock()

	if len(subs) == 0 {
		d.undelivered.Add(1)
		d.logger.Debug("no handlers for topic", "topic", msg.Topic)
		return
	}

	for _, sub := range subs {
		if sub.removed.Load() {
			continue
		}
		sub.fn(msg)
		d.delivered.Add(1)
	}
}

// PublishValue publishes a locally produced value on topic.
func (d *Dispatcher) PublishValue(topic string, v any) {
	d.Publish(Message{Topic: topic, Value: v, ReceivedAt: time.Now()})
}

// Clear removes every handler on every topic.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, subs := range d.topics {
		for _, sub := range subs {
			sub.removed.Store(true)
		}
	}
	d.topics = make(map[string][]*subscriber)
}

// HandlerCount returns the number of handlers registered on topic.
func (d *Dispatcher) HandlerCount(topic string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.topics[topic])
}

// Topics returns the topics with at least one handler, sorted.
func (d *Dispatcher) Topics() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	topics := make([]string, 0, len(d.topics))
	for t := range d.topics {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Stats returns current statistics.
func (d *Dispatcher) Stats() DispatcherStats {
	d.mu.RLock()
	handlers := 0
	for _, subs := range d.topics {
		handlers += len(subs)
	}
	d.mu.RUnlock()

	return DispatcherStats{
		Published:   d.published.Load(),
		Delivered:   d.delivered.Load(),
		Undelivered: d.undelivered.Load(),
		Handlers:    handlers,
	}
}

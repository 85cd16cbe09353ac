// Package bus provides an internal event bus for component communication
package bus

import (
	"sync"
)

// EventType identifies different event types
type EventType string

// Event types for guardavatar
const (
	// Asset events
	EventTypeAssetLoaded     EventType = "asset.loaded"
	EventTypeAssetLoadFailed EventType = "asset.load_failed"
	EventTypeAssetReloaded   EventType = "asset.reloaded"

	// Animation events
	EventTypeGesture        EventType = "animation.gesture"
	EventTypeGestureMissed  EventType = "animation.gesture_missed"
	EventTypeActionFinished EventType = "animation.action_finished"

	// Conversation events
	EventTypeConversationStarted   EventType = "conversation.started"
	EventTypeConversationCompleted EventType = "conversation.completed"
	EventTypeStepStarted           EventType = "conversation.step_started"

	// Speech events
	EventTypeSpeechStarted   EventType = "speech.started"
	EventTypeSpeechCompleted EventType = "speech.completed"
	EventTypeSpeechFailed    EventType = "speech.failed"

	// Bridge events
	EventTypeClientConnected    EventType = "bridge.client_connected"
	EventTypeClientDisconnected EventType = "bridge.client_disconnected"
)

// AllEventTypes lists every event type, for subscribers that forward
// everything.
var AllEventTypes = []EventType{
	EventTypeAssetLoaded,
	EventTypeAssetLoadFailed,
	EventTypeAssetReloaded,
	EventTypeGesture,
	EventTypeGestureMissed,
	EventTypeActionFinished,
	EventTypeConversationStarted,
	EventTypeConversationCompleted,
	EventTypeStepStarted,
	EventTypeSpeechStarted,
	EventTypeSpeechCompleted,
	EventTypeSpeechFailed,
	EventTypeClientConnected,
	EventTypeClientDisconnected,
}

// Event represents a bus event
type Event struct {
	Type EventType      `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Handler is a function that handles events
type Handler func(Event)

// EventBus is a simple pub/sub event bus. Each subscriber receives events in
// publish order, one at a time.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]*subscriber
}

// subscriber serializes delivery to one handler. A drain goroutine runs only
// while the queue is non-empty.
type subscriber struct {
	handler Handler

	mu       sync.Mutex
	queue    []delivery
	draining bool
}

type delivery struct {
	event Event
	done  chan struct{}
}

func (s *subscriber) enqueue(d delivery) {
	s.mu.Lock()
	s.queue = append(s.queue, d)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	go s.drain()
}

func (s *subscriber) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		d := s.queue[0]
		s.queue[0] = delivery{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.handler(d.event)
		if d.done != nil {
			close(d.done)
		}
	}
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]*subscriber),
	}
}

// Subscribe adds a handler for an event type
func (b *EventBus) Subscribe(eventType EventType, handler Handler) {
	b.SubscribeMultiple([]EventType{eventType}, handler)
}

// SubscribeMultiple adds a handler for multiple event types. The handler sees
// events of all those types in the order they were published.
func (b *EventBus) SubscribeMultiple(eventTypes []EventType, handler Handler) {
	sub := &subscriber{handler: handler}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, et := range eventTypes {
		b.handlers[et] = append(b.handlers[et], sub)
	}
}

func (b *EventBus) snapshot(eventType EventType) []*subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := make([]*subscriber, len(b.handlers[eventType]))
	copy(subs, b.handlers[eventType])
	return subs
}

// Publish queues an event for every subscribed handler without blocking.
func (b *EventBus) Publish(event Event) {
	for _, sub := range b.snapshot(event.Type) {
		sub.enqueue(delivery{event: event})
	}
}

// PublishSync queues an event and waits until every handler has run it.
// Must not be called from a handler subscribed to the same event.
func (b *EventBus) PublishSync(event Event) {
	subs := b.snapshot(event.Type)
	dones := make([]chan struct{}, len(subs))
	for i, sub := range subs {
		dones[i] = make(chan struct{})
		sub.enqueue(delivery{event: event, done: dones[i]})
	}
	for _, done := range dones {
		<-done
	}
}

// Clear removes all handlers
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[EventType][]*subscriber)
}

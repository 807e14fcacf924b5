package messaging

import (
	"context"
	"errors"
	"sync"
)

// Message is a payload received on or published to a topic.
type Message struct {
	Topic   string
	Payload []byte
}

// Handler handles a message delivered on a subscribed topic.
type Handler func(ctx context.Context, msg Message) error

// Publisher publishes payloads to topics.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Bus is a publish/subscribe transport.
type Bus interface {
	Publisher
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// ErrEmptyTopic is returned when a topic name is empty.
var ErrEmptyTopic = errors.New("messaging: empty topic")

// ErrNilHandler is returned when subscribing a nil handler.
var ErrNilHandler = errors.New("messaging: nil handler")

// ErrClosed is returned when using a closed bus.
var ErrClosed = errors.New("messaging: bus closed")

// InMemoryBus is a minimal in-process bus. Publish delivers synchronously to
// every handler subscribed to the topic.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool
}

// NewInMemoryBus constructs a new in-memory bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[string][]Handler)}
}

// Publish dispatches a payload to all handlers of its topic and returns the first handler error.
func (b *InMemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	handlers := append([]Handler(nil), b.handlers[topic]...)
	b.mu.RUnlock()

	msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
	var firstErr error
	for _, handler := range handlers {
		if err := handler(ctx, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Subscribe registers a handler for a topic.
func (b *InMemoryBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	_ = ctx
	if topic == "" {
		return ErrEmptyTopic
	}
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

// Close drops all subscriptions.
func (b *InMemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string][]Handler)
	return nil
}

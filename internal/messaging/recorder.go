package messaging

import (
	"context"
	"sync"
)

// Recorder is a Publisher that keeps every published message, for tests and dry runs.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

// NewRecorder constructs a Recorder. A non-nil err is returned from every Publish.
func NewRecorder(err error) *Recorder {
	return &Recorder{err: err}
}

// Publish records the message.
func (r *Recorder) Publish(ctx context.Context, topic string, payload []byte) error {
	_ = ctx
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// ByTopic returns the payloads published on topic in order.
func (r *Recorder) ByTopic(topic string) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]byte
	for _, msg := range r.messages {
		if msg.Topic == topic {
			out = append(out, msg.Payload)
		}
	}
	return out
}

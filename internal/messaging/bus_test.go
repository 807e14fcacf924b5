package messaging

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewInMemoryBus()
	var got []string
	if err := bus.Subscribe(context.Background(), "a/b", func(_ context.Context, msg Message) error {
		got = append(got, string(msg.Payload))
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := bus.Publish(context.Background(), "a/b", []byte("one")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.Publish(context.Background(), "other", []byte("two")); err != nil {
		t.Fatalf("publish other: %v", err)
	}
	if len(got) != 1 || got[0] != "one" {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestInMemoryBus_FirstHandlerError(t *testing.T) {
	bus := NewInMemoryBus()
	first := errors.New("first")
	calls := 0
	_ = bus.Subscribe(context.Background(), "t", func(context.Context, Message) error { calls++; return first })
	_ = bus.Subscribe(context.Background(), "t", func(context.Context, Message) error { calls++; return errors.New("second") })

	if err := bus.Publish(context.Background(), "t", nil); !errors.Is(err, first) {
		t.Fatalf("expected first error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("all handlers should run, got %d", calls)
	}
}

func TestInMemoryBus_Validation(t *testing.T) {
	bus := NewInMemoryBus()
	if err := bus.Publish(context.Background(), "", nil); !errors.Is(err, ErrEmptyTopic) {
		t.Fatalf("expected ErrEmptyTopic, got %v", err)
	}
	if err := bus.Subscribe(context.Background(), "t", nil); !errors.Is(err, ErrNilHandler) {
		t.Fatalf("expected ErrNilHandler, got %v", err)
	}
	_ = bus.Close()
	if err := bus.Publish(context.Background(), "t", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder(nil)
	_ = rec.Publish(context.Background(), "x", []byte("1"))
	_ = rec.Publish(context.Background(), "y", []byte("2"))
	_ = rec.Publish(context.Background(), "x", []byte("3"))
	payloads := rec.ByTopic("x")
	if len(payloads) != 2 || string(payloads[1]) != "3" {
		t.Fatalf("unexpected payloads: %q", payloads)
	}

	failing := NewRecorder(errors.New("down"))
	if err := failing.Publish(context.Background(), "x", nil); err == nil {
		t.Fatalf("expected publish error")
	}
}

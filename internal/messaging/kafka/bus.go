package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"energy-series/internal/messaging"
)

// Config holds broker settings.
type Config struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`

	// StartLatest makes new consumer groups skip messages published before they joined.
	StartLatest bool `yaml:"start_latest"`
}

// Bus is a Kafka transport. Topic names are mapped with TopicName.
type Bus struct {
	cfg    Config
	writer *kafkago.Writer
	logger *log.Logger

	mu      sync.Mutex
	readers []*kafkago.Reader
	wg      sync.WaitGroup
}

// New constructs a bus. No connection is made until the first publish or subscribe.
func New(cfg Config, logger *log.Logger) (*Bus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka bus: no brokers")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka bus: empty group id")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{
		cfg: cfg,
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.Brokers...),
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireOne,
			Async:        false,
		},
		logger: logger,
	}, nil
}

// TopicName maps a slash-separated topic to a legal Kafka topic name.
func TopicName(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}

// Publish writes one message to the mapped topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return messaging.ErrEmptyTopic
	}
	name := TopicName(topic)
	if err := b.writer.WriteMessages(ctx, kafkago.Message{Topic: name, Value: payload}); err != nil {
		return fmt.Errorf("kafka bus: publish %s: %w", name, err)
	}
	return nil
}

// Subscribe starts a consumer-group reader that feeds handler until ctx ends or the bus closes.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler messaging.Handler) error {
	if topic == "" {
		return messaging.ErrEmptyTopic
	}
	if handler == nil {
		return messaging.ErrNilHandler
	}
	name := TopicName(topic)
	startOffset := kafkago.FirstOffset
	if b.cfg.StartLatest {
		startOffset = kafkago.LastOffset
	}
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     b.cfg.Brokers,
		GroupID:     b.cfg.GroupID,
		Topic:       name,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: startOffset,
	})

	b.mu.Lock()
	b.readers = append(b.readers, reader)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(ctx, reader, topic, handler)
	}()
	b.logger.Printf("kafka bus: subscribed topic=%s group=%s", name, b.cfg.GroupID)
	return nil
}

func (b *Bus) consume(ctx context.Context, reader *kafkago.Reader, topic string, handler messaging.Handler) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			b.logger.Printf("kafka bus: read %s: %v", reader.Config().Topic, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if err := handler(ctx, messaging.Message{Topic: topic, Payload: msg.Value}); err != nil {
			b.logger.Printf("kafka bus: handler error topic=%s offset=%d: %v", msg.Topic, msg.Offset, err)
		}
	}
}

// Close stops all readers and flushes the writer.
func (b *Bus) Close() error {
	b.mu.Lock()
	readers := b.readers
	b.readers = nil
	b.mu.Unlock()

	var errs []error
	for _, reader := range readers {
		if err := reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.wg.Wait()
	if err := b.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

var _ messaging.Bus = (*Bus)(nil)

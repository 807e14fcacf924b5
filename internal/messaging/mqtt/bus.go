package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"energy-series/internal/messaging"
)

// Config holds broker connection settings.
type Config struct {
	BrokerURL      string        `yaml:"broker_url"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Bus is an MQTT transport. Subscriptions are restored after every reconnect.
type Bus struct {
	client paho.Client
	qos    byte
	logger *log.Logger

	mu   sync.Mutex
	subs map[string]paho.MessageHandler
}

// Dial connects to the broker and returns a ready bus.
func Dial(ctx context.Context, cfg Config, logger *log.Logger) (*Bus, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("mqtt bus: empty broker url")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt bus: invalid qos %d", cfg.QoS)
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	b := &Bus{qos: cfg.QoS, logger: logger, subs: make(map[string]paho.MessageHandler)}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetOrderMatters(false).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Printf("mqtt bus: connection lost: %v", err)
		})

	b.client = paho.NewClient(opts)
	if err := wait(ctx, b.client.Connect()); err != nil {
		return nil, fmt.Errorf("mqtt bus: connect %s: %w", cfg.BrokerURL, err)
	}
	return b, nil
}

// Publish sends a payload to a topic and waits for the broker acknowledgement.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == "" {
		return messaging.ErrEmptyTopic
	}
	if err := wait(ctx, b.client.Publish(topic, b.qos, false, payload)); err != nil {
		return fmt.Errorf("mqtt bus: publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers a handler for a topic. The handler runs with ctx.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler messaging.Handler) error {
	if topic == "" {
		return messaging.ErrEmptyTopic
	}
	if handler == nil {
		return messaging.ErrNilHandler
	}
	callback := func(_ paho.Client, msg paho.Message) {
		if err := handler(ctx, messaging.Message{Topic: msg.Topic(), Payload: msg.Payload()}); err != nil {
			b.logger.Printf("mqtt bus: handler error topic=%s: %v", msg.Topic(), err)
		}
	}

	b.mu.Lock()
	b.subs[topic] = callback
	b.mu.Unlock()

	if err := wait(ctx, b.client.Subscribe(topic, b.qos, callback)); err != nil {
		return fmt.Errorf("mqtt bus: subscribe %s: %w", topic, err)
	}
	b.logger.Printf("mqtt bus: subscribed topic=%s qos=%d", topic, b.qos)
	return nil
}

// Close disconnects from the broker.
func (b *Bus) Close() error {
	b.client.Disconnect(250)
	return nil
}

func (b *Bus) onConnect(client paho.Client) {
	b.mu.Lock()
	subs := make(map[string]paho.MessageHandler, len(b.subs))
	for topic, cb := range b.subs {
		subs[topic] = cb
	}
	b.mu.Unlock()

	b.logger.Printf("mqtt bus: connected, restoring %d subscription(s)", len(subs))
	for topic, cb := range subs {
		token := client.Subscribe(topic, b.qos, cb)
		go func(topic string, token paho.Token) {
			if token.WaitTimeout(10*time.Second) && token.Error() != nil {
				b.logger.Printf("mqtt bus: resubscribe %s: %v", topic, token.Error())
			}
		}(topic, token)
	}
}

func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ messaging.Bus = (*Bus)(nil)

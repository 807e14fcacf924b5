package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"energy-series/internal/messaging"
	kafkabus "energy-series/internal/messaging/kafka"
	mqttbus "energy-series/internal/messaging/mqtt"
	series "energy-series/internal/series/domain"
	seriesbus "energy-series/internal/series/interfaces/bus"
)

type requestRecord struct {
	Name      string `json:"nombre,omitempty"`
	Mode      string `json:"mode"`
	Fecha     *int64 `json:"fecha,omitempty"`
	Hora      *int64 `json:"hora,omitempty"`
	DeltaTime string `json:"deltatime,omitempty"`
}

func main() {
	transport := flag.String("transport", getenvDefault("TRANSPORT", "mqtt"), "transport (mqtt|kafka)")
	broker := flag.String("broker", getenvDefault("MQTT_BROKER_URL", "tcp://localhost:1883"), "MQTT broker url")
	brokers := flag.String("kafka-brokers", getenvDefault("KAFKA_BROKERS", "localhost:9092"), "Kafka brokers (comma separated)")
	name := flag.String("series", "", "series name")
	mode := flag.String("mode", series.TokenDiff, "ADD|DIFF|FECHA|MES|TABLA")
	delta := flag.String("delta", "60", "offset in minutes; signed for FECHA")
	at := flag.String("at", "", "reference time for FECHA (RFC3339)")
	month := flag.Int("month", int(time.Now().Month()), "month for MES")
	timeout := flag.Duration("timeout", 10*time.Second, "time to wait for results")
	flag.Parse()

	payload, err := buildPayload(*name, *mode, *delta, *at, *month)
	if err != nil {
		log.Fatalf("invalid request: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	var bus messaging.Bus
	switch *transport {
	case "mqtt":
		bus, err = mqttbus.Dial(ctx, mqttbus.Config{BrokerURL: *broker, ClientID: fmt.Sprintf("series-request-%d", os.Getpid())}, logger)
	case "kafka":
		bus, err = kafkabus.New(kafkabus.Config{Brokers: strings.Split(*brokers, ","), GroupID: fmt.Sprintf("series-request-%d", os.Getpid()), StartLatest: true}, logger)
	default:
		err = fmt.Errorf("unsupported transport %q", *transport)
	}
	if err != nil {
		log.Fatalf("transport error: %v", err)
	}
	defer bus.Close()

	topics := seriesbus.DefaultTopics()
	expected := expectedTopics(strings.ToUpper(*mode), topics)

	var wg sync.WaitGroup
	wg.Add(len(expected))
	for _, topic := range expected {
		var once sync.Once
		if err := bus.Subscribe(ctx, topic, func(_ context.Context, msg messaging.Message) error {
			fmt.Printf("%s %s\n", msg.Topic, msg.Payload)
			once.Do(wg.Done)
			return nil
		}); err != nil {
			log.Fatalf("subscribe %s: %v", topic, err)
		}
	}

	if err := bus.Publish(ctx, topics.Request, payload); err != nil {
		log.Fatalf("publish: %v", err)
	}
	logger.Printf("sent %s", payload)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Fatalf("no result within %s", *timeout)
	}
}

func buildPayload(name, mode, delta, at string, month int) ([]byte, error) {
	rec := requestRecord{Name: name, Mode: strings.ToUpper(mode)}
	switch rec.Mode {
	case series.TokenTables:
		rec.Name = ""
	case series.TokenAdd, series.TokenDiff:
		rec.DeltaTime = delta
	case series.TokenMonth:
		m := int64(month)
		rec.Fecha = &m
	case series.TokenNearest:
		ref := time.Now()
		if at != "" {
			parsed, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return nil, err
			}
			ref = parsed
		}
		// The dispatcher adds its hour correction back to hora.
		fecha := ref.UnixMilli()
		hora := ref.Add(-seriesbus.DefaultHourCorrection).UnixMilli()
		rec.Fecha, rec.Hora, rec.DeltaTime = &fecha, &hora, delta
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	return json.Marshal(rec)
}

func expectedTopics(mode string, topics seriesbus.Topics) []string {
	switch mode {
	case series.TokenTables:
		return []string{topics.Tables}
	case series.TokenMonth:
		return []string{topics.Month}
	default:
		return []string{topics.Power, topics.Energy}
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

package bus

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"energy-series/internal/messaging"
	"energy-series/internal/series/application"
	series "energy-series/internal/series/domain"
	"energy-series/internal/series/infrastructure/memory"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

var day = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*application.QueryService, *memory.Store) {
	t.Helper()
	clock := fixedClock{now: day.Add(48 * time.Hour)}
	store := memory.NewStore(memory.WithClock(clock))
	store.Append("S",
		series.Sample{At: day, Power: 10, Energy: 3_600_000},
		series.Sample{At: day.Add(time.Minute), Power: 20, Energy: 7_200_000},
	)
	store.Append("feb",
		series.Sample{At: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), Power: 1, Energy: 3_600_000},
		series.Sample{At: time.Date(2024, time.February, 29, 23, 0, 0, 0, time.UTC), Power: 1, Energy: 1_800_000},
		series.Sample{At: time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC), Power: 1, Energy: 3_600_000},
	)
	resolver, err := application.NewResolver(store, application.WithClock(clock), application.WithLocation(time.UTC))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	service, err := application.NewQueryService(resolver, store)
	if err != nil {
		t.Fatalf("new query service: %v", err)
	}
	return service, store
}

func newTestDispatcher(t *testing.T, publisher messaging.Publisher) *Dispatcher {
	t.Helper()
	engine, _ := newTestEngine(t)
	dispatcher, err := NewDispatcher(engine, publisher,
		WithLocation(time.UTC),
		WithLogger(log.New(io.Discard, "", 0)),
		WithRequestTimeout(5*time.Second),
	)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return dispatcher
}

func TestDispatcher_WindowPublishesPowerAndEnergy(t *testing.T) {
	recorder := messaging.NewRecorder(nil)
	dispatcher := newTestDispatcher(t, recorder)
	topics := DefaultTopics()

	if err := dispatcher.Handle(context.Background(), []byte(`{"nombre":"S","mode":"ADD","deltatime":"2"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	power := recorder.ByTopic(topics.Power)
	energy := recorder.ByTopic(topics.Energy)
	if len(power) != 1 || len(energy) != 1 {
		t.Fatalf("expected one publish per channel, got %d/%d", len(power), len(energy))
	}
	if got, want := string(power[0]), `[{"x":"2024-01-01 00:00:00","y":10},{"x":"2024-01-01 00:01:00","y":20}]`; got != want {
		t.Fatalf("power payload = %s, want %s", got, want)
	}
	if got, want := string(energy[0]), `[{"x":"2024-01-01 00:00:00","y":1},{"x":"2024-01-01 00:01:00","y":3}]`; got != want {
		t.Fatalf("energy payload = %s, want %s", got, want)
	}
	if msgs := recorder.Messages(); msgs[0].Topic != topics.Power || msgs[1].Topic != topics.Energy {
		t.Fatalf("unexpected publish order: %s, %s", msgs[0].Topic, msgs[1].Topic)
	}
}

func TestDispatcher_MonthPublishesTotalOnly(t *testing.T) {
	recorder := messaging.NewRecorder(nil)
	dispatcher := newTestDispatcher(t, recorder)

	if err := dispatcher.Handle(context.Background(), []byte(`{"nombre":"feb","mode":"MES","fecha":2}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	msgs := recorder.Messages()
	if len(msgs) != 1 || msgs[0].Topic != DefaultTopics().Month {
		t.Fatalf("expected a single month publish, got %+v", msgs)
	}
	if string(msgs[0].Payload) != "1.5" {
		t.Fatalf("total = %s, want 1.5", msgs[0].Payload)
	}
}

func TestDispatcher_TablesListing(t *testing.T) {
	recorder := messaging.NewRecorder(nil)
	dispatcher := newTestDispatcher(t, recorder)

	if err := dispatcher.Handle(context.Background(), []byte(`{"mode":"TABLA"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	tables := recorder.ByTopic(DefaultTopics().Tables)
	if len(tables) != 1 || string(tables[0]) != `["S","feb"]` {
		t.Fatalf("unexpected tables payload: %q", tables)
	}
}

func TestDispatcher_FailuresPublishNothing(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		class   string
	}{
		{name: "invalid mode", payload: `{"nombre":"S","mode":"SEMANA"}`, class: ClassInvalidMode},
		{name: "malformed", payload: `{"nombre":"S","mode":"ADD"}`, class: ClassMalformed},
		{name: "bad series", payload: `{"nombre":"S;drop","mode":"ADD","deltatime":1}`, class: ClassMalformed},
		{name: "unknown series", payload: `{"nombre":"missing","mode":"DIFF","deltatime":1}`, class: ClassStoreUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := messaging.NewRecorder(nil)
			dispatcher := newTestDispatcher(t, recorder)
			err := dispatcher.Handle(context.Background(), []byte(tc.payload))
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := Classify(err); got != tc.class {
				t.Fatalf("class = %s, want %s (err %v)", got, tc.class, err)
			}
			if msgs := recorder.Messages(); len(msgs) != 0 {
				t.Fatalf("expected no publishes, got %d", len(msgs))
			}
		})
	}
}

func TestDispatcher_PublishFailureIsClassified(t *testing.T) {
	dispatcher := newTestDispatcher(t, messaging.NewRecorder(errors.New("broker down")))
	err := dispatcher.Handle(context.Background(), []byte(`{"nombre":"S","mode":"DIFF","deltatime":5}`))
	if Classify(err) != ClassPublish {
		t.Fatalf("expected publish class, got %s (%v)", Classify(err), err)
	}
}

type topicFailPublisher struct {
	*messaging.Recorder
	failTopic string
}

func (p topicFailPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if topic == p.failTopic {
		return errors.New("broker down")
	}
	return p.Recorder.Publish(ctx, topic, payload)
}

func TestDispatcher_EnergyPublishFailureIsPartial(t *testing.T) {
	recorder := messaging.NewRecorder(nil)
	publisher := topicFailPublisher{Recorder: recorder, failTopic: DefaultTopics().Energy}
	dispatcher := newTestDispatcher(t, publisher)

	err := dispatcher.Handle(context.Background(), []byte(`{"nombre":"S","mode":"ADD","deltatime":"2"}`))
	if err == nil {
		t.Fatalf("expected error")
	}
	if Classify(err) != ClassPartialPublish {
		t.Fatalf("expected partial publish class, got %s (%v)", Classify(err), err)
	}
	if got := len(recorder.ByTopic(DefaultTopics().Power)); got != 1 {
		t.Fatalf("expected power payload before the failure, got %d", got)
	}
	if got := len(recorder.ByTopic(DefaultTopics().Energy)); got != 0 {
		t.Fatalf("expected no energy payload, got %d", got)
	}
}

func TestDispatcher_HandleMessageWaitsForSlot(t *testing.T) {
	recorder := messaging.NewRecorder(nil)
	engine, _ := newTestEngine(t)
	dispatcher, err := NewDispatcher(engine, recorder,
		WithMaxConcurrent(1),
		WithLogger(log.New(io.Discard, "", 0)),
	)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if err := dispatcher.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	msg := messaging.Message{Topic: DefaultTopics().Request, Payload: []byte(`{"mode":"TABLA"}`)}
	if err := dispatcher.HandleMessage(ctx, msg); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while slots are busy, got %v", err)
	}
	dispatcher.sem.Release(1)

	if err := dispatcher.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := dispatcher.Close(closeCtx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(recorder.ByTopic(DefaultTopics().Tables)); got != 1 {
		t.Fatalf("expected one listing after the slot freed, got %d", got)
	}
}

func TestDispatcher_SubscribeAndClose(t *testing.T) {
	recorder := messaging.NewRecorder(nil)
	dispatcher := newTestDispatcher(t, recorder)
	bus := messaging.NewInMemoryBus()
	ctx := context.Background()

	if err := dispatcher.Subscribe(ctx, bus); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := bus.Publish(ctx, DefaultTopics().Request, []byte(`{"mode":"TABLA"}`)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := dispatcher.Close(closeCtx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(recorder.ByTopic(DefaultTopics().Tables)); got != 5 {
		t.Fatalf("expected 5 listings, got %d", got)
	}
	if err := bus.Publish(ctx, DefaultTopics().Request, []byte(`{"mode":"TABLA"}`)); !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("expected ErrDispatcherClosed, got %v", err)
	}
}

func TestNewDispatcher_Validation(t *testing.T) {
	engine, _ := newTestEngine(t)
	if _, err := NewDispatcher(nil, messaging.NewRecorder(nil)); err == nil {
		t.Fatalf("expected error for nil engine")
	}
	if _, err := NewDispatcher(engine, nil); err == nil {
		t.Fatalf("expected error for nil publisher")
	}
	topics := DefaultTopics()
	topics.Month = ""
	if _, err := NewDispatcher(engine, messaging.NewRecorder(nil), WithTopics(topics)); err == nil {
		t.Fatalf("expected error for empty topic")
	}
}

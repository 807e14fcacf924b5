package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"energy-series/internal/messaging"
	"energy-series/internal/observability/metrics"
	"energy-series/internal/series/application"
	series "energy-series/internal/series/domain"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxConcurrent  = 8
)

// Error classes used in logs and metric labels.
const (
	ClassInvalidMode      = "invalid_mode"
	ClassMalformed        = "malformed_request"
	ClassStoreUnavailable = "store_unavailable"
	ClassTimeout          = "timeout"
	ClassPublish          = "publish_failed"
	ClassPartialPublish   = "partial_publish"
	ClassInternal         = "internal"
)

// ErrDispatcherClosed is returned for messages that arrive after Close.
var ErrDispatcherClosed = errors.New("series dispatcher: closed")

// Topics names the logical channels of the dispatcher.
type Topics struct {
	Request string `yaml:"request"`
	Power   string `yaml:"power"`
	Energy  string `yaml:"energy"`
	Month   string `yaml:"month"`
	Tables  string `yaml:"tables"`
}

// DefaultTopics returns the topic names used by the deployed dashboards.
func DefaultTopics() Topics {
	return Topics{
		Request: "capstone_energia/parametrosGraficas",
		Power:   "capstone_energia/datosPotencia",
		Energy:  "capstone_energia/datosEnergia",
		Month:   "capstone_energia/consumoEnergia",
		Tables:  "capstone_energia/nombreTablas",
	}
}

// Validate ensures every topic is set.
func (t Topics) Validate() error {
	for name, topic := range map[string]string{
		"request": t.Request,
		"power":   t.Power,
		"energy":  t.Energy,
		"month":   t.Month,
		"tables":  t.Tables,
	} {
		if topic == "" {
			return fmt.Errorf("series dispatcher: empty %s topic", name)
		}
	}
	return nil
}

// Engine is the query surface the dispatcher drives.
type Engine interface {
	Window(ctx context.Context, req series.WindowRequest) (application.WindowResult, error)
	MonthTotal(ctx context.Context, seriesName string, month time.Month) (application.MonthResult, error)
	ListSeries(ctx context.Context) ([]string, error)
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithTopics overrides the default topics.
func WithTopics(topics Topics) Option {
	return func(d *Dispatcher) {
		d.topics = topics
	}
}

// WithRequestTimeout sets the per-request deadline.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithMaxConcurrent bounds the number of requests processed at once.
func WithMaxConcurrent(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxConcurrent = n
		}
	}
}

// WithLocation sets the zone used to interpret inbound timestamps.
func WithLocation(loc *time.Location) Option {
	return func(d *Dispatcher) {
		if loc != nil {
			d.decoder.Location = loc
		}
	}
}

// WithHourCorrection sets the shift applied to the inbound time of day.
func WithHourCorrection(correction time.Duration) Option {
	return func(d *Dispatcher) {
		d.decoder.HourCorrection = correction
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Dispatcher consumes request records from the bus, runs them through the
// engine and publishes the results.
type Dispatcher struct {
	engine    Engine
	publisher messaging.Publisher
	decoder   Decoder
	topics    Topics
	timeout   time.Duration
	logger    *log.Logger

	maxConcurrent int
	sem           *semaphore.Weighted

	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(engine Engine, publisher messaging.Publisher, opts ...Option) (*Dispatcher, error) {
	if engine == nil {
		return nil, errors.New("series dispatcher: nil engine")
	}
	if publisher == nil {
		return nil, errors.New("series dispatcher: nil publisher")
	}
	d := &Dispatcher{
		engine:        engine,
		publisher:     publisher,
		decoder:       Decoder{Location: time.Local, HourCorrection: DefaultHourCorrection},
		topics:        DefaultTopics(),
		timeout:       defaultRequestTimeout,
		logger:        log.Default(),
		maxConcurrent: defaultMaxConcurrent,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	if err := d.topics.Validate(); err != nil {
		return nil, err
	}
	d.sem = semaphore.NewWeighted(int64(d.maxConcurrent))
	return d, nil
}

// Topics returns the configured topics.
func (d *Dispatcher) Topics() Topics {
	return d.topics
}

// Subscribe attaches the dispatcher to the request topic of bus.
func (d *Dispatcher) Subscribe(ctx context.Context, bus messaging.Bus) error {
	if bus == nil {
		return errors.New("series dispatcher: nil bus")
	}
	return bus.Subscribe(ctx, d.topics.Request, d.HandleMessage)
}

// HandleMessage waits for a processing slot, then handles msg in the
// background. While every slot is busy the transport callback blocks.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg messaging.Message) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.running.Add(1)
	d.mu.Unlock()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.running.Done()
		d.logger.Printf("series dispatcher: dropped request topic=%s: %v", msg.Topic, err)
		return fmt.Errorf("series dispatcher: no slot: %w", err)
	}

	payload := append([]byte(nil), msg.Payload...)
	go func() {
		defer d.running.Done()
		defer d.sem.Release(1)
		_ = d.Handle(ctx, payload)
	}()
	return nil
}

// Handle processes one payload synchronously. Decode, store and aggregation
// errors publish nothing. A window result is two messages; when the energy
// publish fails after power went out the error is a partial publish.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte) error {
	id := uuid.NewString()
	start := time.Now()
	done := metrics.RequestStarted()
	defer done()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := d.decoder.Decode(payload)
	if err != nil {
		return d.fail(id, req.Mode, "", start, err)
	}

	var summary string
	switch {
	case req.Tables:
		summary, err = d.publishTables(ctx)
	case req.Window.Kind == series.KindMonth:
		summary, err = d.publishMonth(ctx, req.Window)
	default:
		summary, err = d.publishWindow(ctx, req.Window)
	}
	if err != nil {
		return d.fail(id, req.Mode, req.Window.Series, start, err)
	}

	elapsed := time.Since(start)
	metrics.ObserveRequest(req.Mode, metrics.ResultSuccess, elapsed)
	d.logger.Printf("series_request id=%s mode=%s series=%s %s duration_ms=%d",
		id, req.Mode, req.Window.Series, summary, elapsed.Milliseconds())
	return nil
}

// Close stops accepting messages and waits for in-flight requests or ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.running.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) publishTables(ctx context.Context) (string, error) {
	names, err := d.engine.ListSeries(ctx)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(names)
	if err != nil {
		return "", err
	}
	if err := d.publish(ctx, "tables", d.topics.Tables, payload); err != nil {
		return "", err
	}
	return fmt.Sprintf("tables=%d", len(names)), nil
}

func (d *Dispatcher) publishMonth(ctx context.Context, req series.WindowRequest) (string, error) {
	result, err := d.engine.MonthTotal(ctx, req.Series, req.Month)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(result.TotalWh)
	if err != nil {
		return "", err
	}
	if err := d.publish(ctx, "month", d.topics.Month, payload); err != nil {
		return "", err
	}
	return fmt.Sprintf("window=%s samples=%d total_wh=%g",
		formatWindow(result.Resolution.Window), result.Samples, result.TotalWh), nil
}

func (d *Dispatcher) publishWindow(ctx context.Context, req series.WindowRequest) (string, error) {
	result, err := d.engine.Window(ctx, req)
	if err != nil {
		return "", err
	}
	power, err := series.EncodePoints(result.Output.Power)
	if err != nil {
		return "", err
	}
	energy, err := series.EncodePoints(result.Output.Energy)
	if err != nil {
		return "", err
	}
	if err := d.publish(ctx, "power", d.topics.Power, power); err != nil {
		return "", err
	}
	if err := d.publish(ctx, "energy", d.topics.Energy, energy); err != nil {
		return "", &partialPublishError{published: d.topics.Power, err: err}
	}
	return fmt.Sprintf("window=%s direction=%s samples=%d",
		formatWindow(result.Resolution.Window), result.Resolution.Direction, len(result.Samples)), nil
}

func (d *Dispatcher) publish(ctx context.Context, channel, topic string, payload []byte) error {
	if err := d.publisher.Publish(ctx, topic, payload); err != nil {
		metrics.IncPublish(channel, metrics.ResultError)
		return &publishError{topic: topic, err: err}
	}
	metrics.IncPublish(channel, metrics.ResultSuccess)
	return nil
}

func (d *Dispatcher) fail(id, mode, seriesName string, start time.Time, err error) error {
	class := Classify(err)
	metrics.ObserveRequest(mode, class, time.Since(start))
	d.logger.Printf("series_request id=%s mode=%s series=%s class=%s error: %v", id, mode, seriesName, class, err)
	return err
}

// Classify maps an error to its class label.
func Classify(err error) string {
	var pubErr *publishError
	var partialErr *partialPublishError
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.As(err, &partialErr):
		return ClassPartialPublish
	case errors.Is(err, series.ErrInvalidMode):
		return ClassInvalidMode
	case errors.Is(err, series.ErrMalformedRequest),
		errors.Is(err, series.ErrInvalidSeries),
		errors.Is(err, series.ErrInvalidMonth):
		return ClassMalformed
	case errors.As(err, &pubErr):
		return ClassPublish
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	case errors.Is(err, series.ErrStoreUnavailable):
		return ClassStoreUnavailable
	default:
		return ClassInternal
	}
}

type publishError struct {
	topic string
	err   error
}

func (e *publishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.topic, e.err)
}

func (e *publishError) Unwrap() error {
	return e.err
}

// partialPublishError reports a failure after some output already went out.
type partialPublishError struct {
	published string
	err       error
}

func (e *partialPublishError) Error() string {
	return fmt.Sprintf("partial publish (sent %s): %v", e.published, e.err)
}

func (e *partialPublishError) Unwrap() error {
	return e.err
}

func formatWindow(w series.Window) string {
	return "[" + series.FormatTimestamp(w.Start) + "," + series.FormatTimestamp(w.End) + "]"
}

// Package messaging implements the event bus that distributes domain
// events to subscribers. It provides an in-memory bus for single-instance
// deployments and a Redis Pub/Sub bus for distributed ones.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/challengehub/challenge-hub/internal/domain/shared"
)

var (
	// ErrBusClosed is returned when operations are attempted on a closed bus.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = errors.New("handler cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// BusMetrics holds the Prometheus collectors for event bus activity.
type BusMetrics struct {
	published       *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
}

// NewBusMetrics creates and registers the bus collectors. Pass a dedicated
// registry in tests to avoid duplicate registration.
func NewBusMetrics(reg prometheus.Registerer) *BusMetrics {
	m := &BusMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_published_total",
			Help: "Events published, by event type.",
		}, []string{"event_type"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventbus_handler_failures_total",
			Help: "Handler invocations that returned an error, by event type.",
		}, []string{"event_type"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventbus_handler_duration_seconds",
			Help:    "Handler execution time, by event type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	if reg != nil {
		reg.MustRegister(m.published, m.handlerFailures, m.handlerDuration)
	}
	return m
}

func (m *BusMetrics) recordPublish(t shared.EventType) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(string(t)).Inc()
}

func (m *BusMetrics) recordHandler(t shared.EventType, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.handlerDuration.WithLabelValues(string(t)).Observe(d.Seconds())
	if err != nil {
		m.handlerFailures.WithLabelValues(string(t)).Inc()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryBus dispatches events to handlers within the same process.
// Suitable for single-instance deployments and tests.
type InMemoryBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	asyncMode   bool
	workerPool  chan struct{}
	log         *logrus.Entry
	metrics     *BusMetrics
	closed      bool
	wg          sync.WaitGroup
}

// InMemoryBusConfig configures an InMemoryBus.
type InMemoryBusConfig struct {
	// AsyncMode runs handlers on a bounded worker pool instead of inline.
	AsyncMode bool

	// WorkerPoolSize bounds concurrent handler executions in async mode.
	WorkerPoolSize int

	// Log is the structured logger.
	Log *logrus.Entry

	// Metrics is optional; nil disables collection.
	Metrics *BusMetrics
}

// NewInMemoryBus creates an in-memory event bus.
func NewInMemoryBus(config InMemoryBusConfig) *InMemoryBus {
	if config.Log == nil {
		config.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	return &InMemoryBus{
		handlers:   make(map[shared.EventType][]shared.EventHandler),
		asyncMode:  config.AsyncMode,
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		log:        config.Log,
		metrics:    config.Metrics,
	}
}

// Subscribe registers a handler for one event type.
func (b *InMemoryBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// SubscribeAll registers a handler for every event type.
func (b *InMemoryBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	return nil
}

// Publish delivers an event to every matching handler. Handler errors are
// recorded and logged, never returned: delivery failures must not roll back
// the state change that produced the event.
func (b *InMemoryBus) Publish(ctx context.Context, event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	handlers := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	b.mu.RUnlock()

	b.metrics.recordPublish(event.EventType())

	if len(handlers) == 0 {
		return nil
	}

	if b.asyncMode {
		for _, handler := range handlers {
			b.executeAsync(event, handler)
		}
		return nil
	}

	for _, handler := range handlers {
		if err := b.execute(ctx, event, handler); err != nil {
			b.log.WithError(err).WithField("event_type", event.EventType()).Error("event handler failed")
		}
	}
	return nil
}

// executeAsync runs a handler on the worker pool. Async handlers get a
// fresh context: the publisher's request context may already be done by
// the time the handler runs. Handlers queued before Close still run:
// Close stops new publishes and waits for the pool to drain.
func (b *InMemoryBus) executeAsync(event shared.Event, handler shared.EventHandler) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		b.workerPool <- struct{}{}
		defer func() { <-b.workerPool }()

		if err := b.execute(context.Background(), event, handler); err != nil {
			b.log.WithError(err).WithField("event_type", event.EventType()).Error("async event handler failed")
		}
	}()
}

func (b *InMemoryBus) execute(ctx context.Context, event shared.Event, handler shared.EventHandler) error {
	start := time.Now()
	err := handler(ctx, event)
	b.metrics.recordHandler(event.EventType(), time.Since(start), err)
	return err
}

// Close stops accepting events and waits for every queued handler,
// including those still waiting for a worker slot, to finish.
func (b *InMemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// RedisBus fans events out across instances over Redis Pub/Sub. Each
// instance also runs a local in-memory bus; remote events are replayed
// through it, self-published ones are filtered by instance ID.
type RedisBus struct {
	client      *redis.Client
	local       *InMemoryBus
	channelName string
	instanceID  string
	log         *logrus.Entry
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
}

// RedisBusConfig configures a RedisBus.
type RedisBusConfig struct {
	// Client is the Redis client. Required.
	Client *redis.Client

	// ChannelName is the Pub/Sub channel for events.
	ChannelName string

	// InstanceID identifies this instance so it can skip its own messages.
	InstanceID string

	// Local configures the embedded in-memory bus.
	Local InMemoryBusConfig
}

// NewRedisBus creates a Redis-backed event bus and starts its subscriber.
func NewRedisBus(config RedisBusConfig) (*RedisBus, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.ChannelName == "" {
		config.ChannelName = "challenge-hub:events"
	}
	if config.InstanceID == "" {
		config.InstanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &RedisBus{
		client:      config.Client,
		local:       NewInMemoryBus(config.Local),
		channelName: config.ChannelName,
		instanceID:  config.InstanceID,
		log:         busLog(config.Local.Log),
		cancel:      cancel,
	}

	sub := config.Client.Subscribe(ctx, config.ChannelName)
	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		bus.subscriptionLoop(ctx, sub)
	}()

	return bus, nil
}

func busLog(log *logrus.Entry) *logrus.Entry {
	if log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return log
}

// Subscribe registers a handler for one event type on the local bus.
func (b *RedisBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.local.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler for every event type on the local bus.
func (b *RedisBus) SubscribeAll(handler shared.EventHandler) error {
	return b.local.SubscribeAll(handler)
}

// Publish sends the event to Redis and to local handlers. A Redis outage
// degrades to local-only delivery rather than failing the publish.
func (b *RedisBus) Publish(ctx context.Context, event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	b.mu.RUnlock()

	envelope := eventEnvelope{
		InstanceID:  b.instanceID,
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channelName, data).Err(); err != nil {
		b.log.WithError(err).Warn("redis publish failed, delivering locally only")
	}

	return b.local.Publish(ctx, event)
}

func (b *RedisBus) subscriptionLoop(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()
	messages := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			b.handleMessage(ctx, msg.Payload)
		}
	}
}

func (b *RedisBus) handleMessage(ctx context.Context, payload string) {
	var envelope eventEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		b.log.WithError(err).Error("malformed event envelope")
		return
	}
	if envelope.InstanceID == b.instanceID {
		return
	}

	event := &remoteEvent{
		eventType:   envelope.EventType,
		aggregateID: envelope.AggregateID,
		occurredAt:  envelope.OccurredAt,
		payload:     envelope.Payload,
	}
	if err := b.local.Publish(ctx, event); err != nil {
		b.log.WithError(err).Error("remote event dispatch failed")
	}
}

// Close stops the subscriber and shuts down the local bus.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return b.local.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// Wire format
// ─────────────────────────────────────────────────────────────────────────────

type eventEnvelope struct {
	InstanceID  string                 `json:"instance_id"`
	EventType   shared.EventType       `json:"event_type"`
	AggregateID string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
}

// remoteEvent is an event reconstructed from a Redis message. Only the
// envelope fields survive the round trip; handlers that need the concrete
// event struct must run on the publishing instance.
type remoteEvent struct {
	eventType   shared.EventType
	aggregateID string
	occurredAt  time.Time
	payload     map[string]interface{}
}

func (e *remoteEvent) EventType() shared.EventType     { return e.eventType }
func (e *remoteEvent) AggregateID() string             { return e.aggregateID }
func (e *remoteEvent) OccurredAt() time.Time           { return e.occurredAt }
func (e *remoteEvent) Payload() map[string]interface{} { return e.payload }

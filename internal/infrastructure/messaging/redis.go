package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alem-hub/student-tracker/internal/domain/shared"
	"github.com/alem-hub/student-tracker/pkg/circuitbreaker"
	"github.com/alem-hub/student-tracker/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// RedisConfig holds the connection settings of the event channel.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	Channel      string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns the Redis address in "host:port" format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewRedisClient creates a client and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("messaging: failed to connect to redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS PUBLISHER
// ══════════════════════════════════════════════════════════════════════════════

// RedisClient is the subset of the go-redis client used for publishing.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisPublisher sends each event as a JSON shared.EventEnvelope to one channel.
type RedisPublisher struct {
	client  RedisClient
	channel string
	log     *logger.Logger
	metrics *Metrics
	newID   func() string
	breaker *circuitbreaker.CircuitBreaker

	mu     sync.RWMutex
	closed bool
}

// RedisPublisherOption configures a RedisPublisher.
type RedisPublisherOption func(*RedisPublisher)

// WithPublisherLogger sets the logger.
func WithPublisherLogger(log *logger.Logger) RedisPublisherOption {
	return func(p *RedisPublisher) { p.log = log }
}

// WithIDGenerator overrides the envelope ID generator.
func WithIDGenerator(gen func() string) RedisPublisherOption {
	return func(p *RedisPublisher) { p.newID = gen }
}

// WithBreaker replaces the default circuit breaker around PUBLISH.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) RedisPublisherOption {
	return func(p *RedisPublisher) { p.breaker = cb }
}

// NewRedisPublisher creates a publisher on the given channel.
func NewRedisPublisher(client RedisClient, channel string, opts ...RedisPublisherOption) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("messaging: redis client is required")
	}
	if channel == "" {
		return nil, errors.New("messaging: channel is required")
	}

	p := &RedisPublisher{
		client:  client,
		channel: channel,
		log:     logger.Nop(),
		metrics: NewMetrics(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(logger.Component("redis_publisher"))
	if p.breaker == nil {
		p.breaker = circuitbreaker.Publisher(func(name string, from, to circuitbreaker.State) {
			p.log.Warn("publisher circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	}
	return p, nil
}

// Publish implements shared.EventPublisher.
func (p *RedisPublisher) Publish(ctx context.Context, event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	envelope, err := shared.NewEventEnvelope(p.newID(), event)
	if err != nil {
		p.metrics.RecordPublish(event.EventType(), false)
		return fmt.Errorf("messaging: marshal payload: %w", err)
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		p.metrics.RecordPublish(event.EventType(), false)
		return fmt.Errorf("messaging: marshal envelope: %w", err)
	}

	err = p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.client.Publish(ctx, p.channel, data).Err()
	})
	if err != nil {
		p.metrics.RecordPublish(event.EventType(), false)
		return fmt.Errorf("messaging: publish %s: %w", event.EventType(), err)
	}

	p.metrics.RecordPublish(event.EventType(), true)
	p.log.Debug("event published",
		logger.String("event_type", string(event.EventType())),
		logger.String("event_id", envelope.ID),
		logger.RollNumber(event.AggregateID()),
	)
	return nil
}

// Metrics returns the publisher counters.
func (p *RedisPublisher) Metrics() *Metrics {
	return p.metrics
}

// Close closes the underlying client. Safe to call more than once.
func (p *RedisPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.client.Close()
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS SUBSCRIBER
// ══════════════════════════════════════════════════════════════════════════════

// EnvelopeHandler receives decoded envelopes.
type EnvelopeHandler func(shared.EventEnvelope)

// RedisSubscriber listens on the event channel.
type RedisSubscriber struct {
	client  *redis.Client
	channel string
	log     *logger.Logger
}

// NewRedisSubscriber creates a subscriber on the given channel.
func NewRedisSubscriber(client *redis.Client, channel string, log *logger.Logger) *RedisSubscriber {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisSubscriber{
		client:  client,
		channel: channel,
		log:     log.With(logger.Component("redis_subscriber")),
	}
}

// Run delivers every envelope on the channel to handler until ctx is cancelled.
// Undecodable messages are logged and skipped.
func (s *RedisSubscriber) Run(ctx context.Context, handler EnvelopeHandler) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// Wait for the subscription confirmation so errors surface early.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("messaging: subscribe %s: %w", s.channel, err)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			envelope, err := DecodeEnvelope([]byte(msg.Payload))
			if err != nil {
				s.log.Warn("failed to decode event", logger.Err(err))
				continue
			}
			handler(envelope)
		}
	}
}

// DecodeEnvelope parses a message published by RedisPublisher.
func DecodeEnvelope(data []byte) (shared.EventEnvelope, error) {
	var envelope shared.EventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return shared.EventEnvelope{}, fmt.Errorf("messaging: unmarshal envelope: %w", err)
	}
	if envelope.Type == "" {
		return shared.EventEnvelope{}, errors.New("messaging: envelope has no type")
	}
	return envelope, nil
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the subset of *amqp.Channel used by AMQPPublisher.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes persistent JSON messages on the default exchange,
// routed to a durable queue named after the event type.
type AMQPPublisher struct {
	conn   *amqp.Connection
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	ch       channel
	declared map[string]bool
}

// DialAMQP connects to the broker and opens a channel.
func DialAMQP(url string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	p := newAMQPPublisher(ch, logger)
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch channel, logger *slog.Logger) *AMQPPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{
		ch:       ch,
		logger:   logger,
		now:      time.Now,
		declared: make(map[string]bool),
	}
}

// Publish wraps data in an Envelope and publishes it.
func (p *AMQPPublisher) Publish(ctx context.Context, eventType string, data any) error {
	env, err := NewEnvelope(eventType, data, p.now())
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[eventType] {
		if _, err := p.ch.QueueDeclare(
			eventType, // name
			true,      // durable
			false,     // autoDelete
			false,     // exclusive
			false,     // noWait
			nil,       // args
		); err != nil {
			return fmt.Errorf("rabbitmq queue declare %s: %w", eventType, err)
		}
		p.declared[eventType] = true
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Type:         eventType,
		Timestamp:    env.OccurredAt,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", eventType, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", eventType, err)
	}

	p.logger.Debug("event published",
		slog.String("event_id", env.ID),
		slog.String("event_type", eventType),
	)
	return nil
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Package rabbitmq publishes items to a RabbitMQ queue.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/epi-data-etl/internal/domain"
	"github.com/couchcryptid/storm-data-shared/retry"
	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends one persistent JSON message per item to a durable queue.
// It implements pipeline.Sink.
type Publisher struct {
	conn   *amqp.Connection
	ch     channel
	queue  string
	logger *slog.Logger
	sent   int
}

// Connection retry policy for Dial.
const (
	dialAttempts   = 5
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Dial connects to the broker, retrying with backoff, and declares queue.
func Dial(ctx context.Context, url, queue string, logger *slog.Logger) (*Publisher, error) {
	conn, err := connect(ctx, url, logger)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	p := newPublisher(ch, queue, logger)
	p.conn = conn
	return p, nil
}

func connect(ctx context.Context, url string, logger *slog.Logger) (*amqp.Connection, error) {
	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt == dialAttempts {
			break
		}
		logger.Warn("rabbitmq not reachable, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", dialAttempts, lastErr)
}

func newPublisher(ch channel, queue string, logger *slog.Logger) *Publisher {
	return &Publisher{ch: ch, queue: queue, logger: logger}
}

// NewIdentifier returns a class-scoped UUID identifier.
func (p *Publisher) NewIdentifier(className string) string {
	return domain.NewIdentifier(className)
}

// Store publishes item to the queue through the default exchange.
func (p *Publisher) Store(ctx context.Context, item domain.Item) error {
	msg, err := toPublishing(item)
	if err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", item.Identifier, err)
	}
	p.sent++
	return nil
}

// Commit logs the number of published messages; publishing is unbuffered.
func (p *Publisher) Commit(_ context.Context) error {
	p.logger.Info("amqp publishing complete", "queue", p.queue, "messages", p.sent)
	return nil
}

func (p *Publisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func toPublishing(item domain.Item) (amqp.Publishing, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("serialize item %s: %w", item.Identifier, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    item.Identifier,
		Type:         item.ClassName,
		Body:         body,
	}, nil
}

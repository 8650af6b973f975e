package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/epi-data-etl/internal/config"
	"github.com/couchcryptid/epi-data-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes items to a Kafka topic as JSON, one message per item,
// keyed by identifier. It implements pipeline.Sink.
type Writer struct {
	writer    messageWriter
	batchSize int
	pending   []kafkago.Message
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return newWriter(w, cfg.BatchSize, logger)
}

func newWriter(w messageWriter, batchSize int, logger *slog.Logger) *Writer {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Writer{writer: w, batchSize: batchSize, logger: logger}
}

// NewIdentifier returns a class-scoped UUID identifier.
func (w *Writer) NewIdentifier(className string) string {
	return domain.NewIdentifier(className)
}

// Store queues item and writes the queue once it reaches the batch size.
func (w *Writer) Store(ctx context.Context, item domain.Item) error {
	msg, err := serializeToMessage(item)
	if err != nil {
		return err
	}
	w.pending = append(w.pending, msg)
	if len(w.pending) >= w.batchSize {
		return w.flush(ctx)
	}
	return nil
}

// Commit writes any queued messages.
func (w *Writer) Commit(ctx context.Context) error {
	return w.flush(ctx)
}

func (w *Writer) flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, w.pending...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(w.pending), err)
	}
	w.logger.Debug("kafka batch written", "messages", len(w.pending))
	w.pending = w.pending[:0]
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an item into a Kafka message.
func serializeToMessage(item domain.Item) (kafkago.Message, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize item %s: %w", item.Identifier, err)
	}
	return kafkago.Message{
		Key:   []byte(item.Identifier),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "class", Value: []byte(item.ClassName)},
		},
	}, nil
}

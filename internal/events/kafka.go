package events

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by order id, so every
// event of one order lands on the same partition.
type KafkaPublisher struct {
	w MessageWriter
}

// NewKafkaWriter returns a writer for topic using hash partitioning.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// NewKafkaPublisher wraps w.
func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

// Publish writes the batch in one call.
func (p *KafkaPublisher) Publish(ctx context.Context, batch []Event) error {
	if len(batch) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(batch))
	for i, e := range batch {
		msgs[i] = kafka.Message{
			Key:   []byte(strconv.FormatInt(e.OrderID, 10)),
			Value: e.Payload,
			Time:  e.CreatedAt,
			Headers: []kafka.Header{
				{Key: "event-id", Value: []byte(e.EventID.String())},
				{Key: "event-kind", Value: []byte(e.Kind)},
			},
		}
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrap(err, "write messages")
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// LogPublisher logs events instead of delivering them. It is used when no
// brokers are configured so the outbox still drains.
type LogPublisher struct{}

// Publish logs every event at info level.
func (LogPublisher) Publish(ctx context.Context, batch []Event) error {
	lg := zctx.From(ctx)
	for _, e := range batch {
		lg.Info("Order event",
			zap.String("kind", e.Kind),
			zap.Int64("order_id", e.OrderID),
			zap.Stringer("event_id", e.EventID),
			zap.ByteString("payload", e.Payload),
		)
	}
	return nil
}

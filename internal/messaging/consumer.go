package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/glassworks-checkout/internal/domain"
)

var consumerTracer = otel.Tracer("messaging/consumer")

// EventHandler applies one payment event. A returned error is retried.
type EventHandler func(ctx context.Context, ev domain.PaymentEvent) error

type Consumer struct {
	reader  *kafka.Reader
	topic   string
	groupID string
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

type ConsumerOption func(*Consumer, *kafka.ReaderConfig)

func WithStartOffset(offset int64) ConsumerOption {
	return func(_ *Consumer, cfg *kafka.ReaderConfig) {
		cfg.StartOffset = offset
	}
}

// WithRetries sets how many times a failing event is retried before the consumer gives up
// and returns the error.
func WithRetries(n int, backoff time.Duration) ConsumerOption {
	return func(c *Consumer, _ *kafka.ReaderConfig) {
		c.retries = n
		c.backoff = backoff
	}
}

func NewConsumer(brokers []string, topic, groupID string, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	}

	c := &Consumer{
		topic:   topic,
		groupID: groupID,
		retries: 3,
		backoff: time.Second,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c, &cfg)
	}
	c.reader = kafka.NewReader(cfg)

	return c
}

// Consume applies events until ctx ends. Messages that do not decode are committed and
// skipped; handler errors are retried and then returned without committing.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if err := c.processMessage(ctx, msg, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, handler EventHandler) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, headerCarrier{msg: &msg})

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
		),
	)
	defer span.End()

	var ev domain.PaymentEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		span.RecordError(err)
		c.logger.Error("dropping undecodable payment event", "error", err, "offset", msg.Offset, "event_type", header(&msg, eventTypeHeader))
		return nil
	}

	err := retry(spanCtx, c.retries, c.backoff, func() error { return handler(spanCtx, ev) })
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("apply event %s: %w", ev.EventID, err)
	}

	return nil
}

func retry(ctx context.Context, retries int, backoff time.Duration, fn func() error) error {
	err := fn()
	for attempt := 1; err != nil && attempt <= retries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempt)):
		}
		err = fn()
	}
	return err
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

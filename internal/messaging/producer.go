package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopfront/ledger/internal/domain"
)

var producerTracer = otel.Tracer("messaging/producer")

// Producer publishes ledger events to the shopfront event stream,
// keyed by entity id so each entity's transitions stay ordered.
type Producer struct {
	writer *kafka.Writer
	topic  string
	source string
}

// NewProducer opens a writer for topic. The source names the emitting
// service inside each envelope.
func NewProducer(brokers []string, topic, source string) *Producer {
	return &Producer{
		topic:  topic,
		source: source,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           100 * time.Millisecond,
		},
	}
}

// PublishEvent wraps the payload in a fresh envelope and publishes it.
func (p *Producer) PublishEvent(ctx context.Context, key, eventType string, payload any) error {
	env, err := domain.NewEnvelope(eventType, p.source, payload)
	if err != nil {
		return err
	}
	return p.PublishEnvelope(ctx, key, env)
}

// PublishEnvelope serializes and sends a single event envelope.
func (p *Producer) PublishEnvelope(ctx context.Context, key string, env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	ctx, span := producerTracer.Start(ctx, "send "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingKafkaMessageKey(key),
		),
	)
	defer span.End()

	span.SetAttributes(semconv.MessagingMessageConversationID(env.EventID))

	otel.GetTextMapPropagator().Inject(ctx, NewMessageCarrier(&msg))

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

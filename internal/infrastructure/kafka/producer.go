package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"walletfeed/internal/domain"
	"walletfeed/internal/infrastructure/telemetry"
	"walletfeed/internal/streaming"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTopic = "walletfeed-activity"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 500 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return newProducer(writer, cfg.Topic), nil
}

func newProducer(writer messageWriter, topic string) *Producer {
	if strings.TrimSpace(topic) == "" {
		topic = defaultTopic
	}
	return &Producer{writer: writer, topic: topic, now: time.Now}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishActivity writes one message per item, keyed by wallet so a wallet's
// items stay ordered within a partition.
func (p *Producer) PublishActivity(ctx context.Context, wallet string, items []domain.ActivityItem) error {
	if len(items) == 0 {
		return nil
	}
	tracer := otel.Tracer("walletfeed/kafka")
	ctx, batch := tracer.Start(ctx, "exporter.publish_activity", trace.WithSpanKind(trace.SpanKindProducer))
	defer batch.End()
	batch.SetAttributes(
		attribute.String("wallet", wallet),
		attribute.Int("message.count", len(items)),
		attribute.String("messaging.destination.name", p.topic),
	)

	exportedAt := p.now().UTC()
	messages := make([]kafka.Message, 0, len(items))
	for i := range items {
		item := items[i]
		payload, err := streaming.Encode(streaming.Message{
			ID:         uuid.NewString(),
			Type:       streaming.MessageTypeActivity,
			Wallet:     wallet,
			TraceID:    telemetry.TraceIDFromContext(ctx),
			ExportedAt: exportedAt,
			Item:       &item,
		})
		if err != nil {
			batch.RecordError(err)
			batch.SetStatus(codes.Error, err.Error())
			return err
		}
		messages = append(messages, kafka.Message{
			Topic:   p.topic,
			Key:     []byte(wallet),
			Value:   payload,
			Headers: telemetry.InjectKafkaHeaders(ctx, make([]kafka.Header, 0, 2)),
		})
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		batch.RecordError(err)
		batch.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

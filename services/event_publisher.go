package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
	aws_pkg "github.com/Maddyahamco00/Nigeria-bece-sub000/pkg/aws"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher fans payment transitions out to downstream consumers
// (reporting, gazette export). Publishing never affects the payment outcome.
type EventPublisher interface {
	Publish(ctx context.Context, event models.PaymentEvent) error
	Close() error
}

// SNSEventPublisher publishes PaymentEvent JSON to one topic with the event
// type as a filterable attribute.
type SNSEventPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSEventPublisher(client aws_pkg.SNSPublisher, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicArn: topicArn}
}

func (p *SNSEventPublisher) Publish(ctx context.Context, event models.PaymentEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}
	return p.client.Publish(ctx, p.topicArn, b, map[string]string{"event_type": event.Type})
}

func (p *SNSEventPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventPublisher keys messages by reference so every event for one
// payment lands on the same partition.
type KafkaEventPublisher struct {
	writer messageWriter
}

func NewKafkaEventPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaEventPublisher {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("kafka payment event producer initialized",
		zap.String("topic", topic),
		zap.Strings("brokers", brokers),
	)
	return &KafkaEventPublisher{writer: w}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event models.PaymentEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.Reference),
		Value: b,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write payment event: %w", err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

// NoopEventPublisher is used when EVENT_BUS=none.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, models.PaymentEvent) error { return nil }
func (NoopEventPublisher) Close() error                                       { return nil }

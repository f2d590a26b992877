package outbox

import (
	"context"

	"github.com/activity-point/api-go/models"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes every event to one topic, keyed by aggregate so
// events of the same user or activity stay ordered.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			Async:        false,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events []models.OutboxEvent) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.AggregateID),
			Value: []byte(ev.Payload),
			Time:  ev.CreatedAt.UTC(),
			Headers: []kafka.Header{
				{Key: "event-id", Value: []byte(ev.ID)},
				{Key: "event-type", Value: []byte(ev.EventType)},
			},
		})
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Package kafka publishes ledger events to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"totalx/internal/events"
	"totalx/internal/log"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	topic  string
	logger *log.Logger
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}, topic)
}

func newPublisher(w messageWriter, topic string) *Publisher {
	return &Publisher{writer: w, topic: topic, logger: log.WithComponent(log.ComponentKafka)}
}

// Publish writes e keyed by its store key, so events of one store stay in
// order on a single partition.
func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	data, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := e.StoreKey
	if key == "" {
		key = string(e.Kind)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(e.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}

	p.logger.DebugContext(ctx, "Published ledger event",
		log.FieldEventID, e.ID,
		log.FieldEventKind, string(e.Kind),
		"topic", p.topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

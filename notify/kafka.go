package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ruteri/document-registry/interfaces"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher produces one record per event to a single topic. Records
// are keyed by fingerprint so all events of a document land in the same
// partition, in order.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	log    *slog.Logger
}

// NewKafkaPublisher connects to the given seed brokers.
func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("no kafka topic configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	log.Info("Kafka publisher configured", "brokers", brokers, "topic", topic)
	return &KafkaPublisher{client: client, topic: topic, log: log}, nil
}

// Publish synchronously produces events, returning the first failure.
func (p *KafkaPublisher) Publish(ctx context.Context, events []interfaces.Event) error {
	records := make([]*kgo.Record, 0, len(events))
	for _, ev := range events {
		msg, payload, err := encodeMessage(ev)
		if err != nil {
			return err
		}
		records = append(records, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(msg.Fingerprint),
			Value: payload,
			Headers: []kgo.RecordHeader{
				{Key: "kind", Value: []byte(msg.Kind)},
			},
		})
	}

	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce to %s failed: %w", p.topic, err)
	}
	return nil
}

// Name implements interfaces.EventPublisher.
func (p *KafkaPublisher) Name() string {
	return "kafka:" + p.topic
}

// Ping checks broker connectivity.
func (p *KafkaPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes and closes the producer.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}

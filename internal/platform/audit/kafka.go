package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer is the subset of *kgo.Client the sink uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaSink publishes events to a topic keyed by actor ID so one actor's
// events stay ordered within a partition. It is write-only.
type KafkaSink struct {
	producer Producer
	topic    string
}

// NewKafkaSink wraps an existing producer.
func NewKafkaSink(p Producer, topic string) (*KafkaSink, error) {
	if p == nil {
		return nil, errors.New("kafka sink: producer is required")
	}
	if topic == "" {
		return nil, errors.New("kafka sink: topic is required")
	}
	return &KafkaSink{producer: p, topic: topic}, nil
}

// DialKafka connects a franz-go client to brokers.
func DialKafka(ctx context.Context, brokers []string, topic string) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka sink: at least one broker is required")
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := cl.Ping(ctx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("ping kafka: %w", err)
	}
	return cl, nil
}

func (k *KafkaSink) Append(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	rec := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(ev.ActorID),
		Value: raw,
		Headers: []kgo.RecordHeader{
			{Key: "audit-id", Value: []byte(ev.ID.String())},
			{Key: "resource", Value: []byte(ev.ResourceName)},
		},
	}
	if err := k.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

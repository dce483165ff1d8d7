package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes envelopes to a single topic. The writer is async for
// throughput; delivery errors surface through the completion callback log.
type KafkaPublisher struct {
	writer   *kafka.Writer
	producer string
}

// NewKafkaPublisher constructs a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic, producer string, onError func(error)) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
	}
	if onError != nil {
		w.Completion = func(messages []kafka.Message, err error) {
			if err != nil {
				onError(err)
			}
		}
	}
	return &KafkaPublisher{writer: w, producer: producer}
}

// Publish seals the event and hands it to the async writer.
func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	env, err := NewEnvelope(p.producer, evt)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Key),
		Value: value,
		Time:  time.Now(),
	})
}

// Close flushes pending messages and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

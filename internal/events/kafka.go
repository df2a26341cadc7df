package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/reactivities/reactivities/internal/model"
)

// KafkaProducer lazily manages writers per topic.
type KafkaProducer struct {
	brokers []string
	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{
		brokers: brokers,
		writers: make(map[string]*kafka.Writer),
	}
}

// WriteMessages writes messages to the given topic, creating a writer if necessary.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	writer := p.writerForTopic(topic)
	return writer.WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writerForTopic(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	}
	p.writers[topic] = writer
	return writer
}

// Close releases all writers.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}

// MessageWriter is the subset of KafkaProducer used by KafkaForwarder.
type MessageWriter interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

// KafkaForwarder forwards persisted events to a Kafka topic, keyed by
// activity id so one activity's events stay ordered within a partition.
type KafkaForwarder struct {
	writer MessageWriter
	topic  string
}

// NewKafkaForwarder creates a KafkaForwarder.
func NewKafkaForwarder(writer MessageWriter, topic string) *KafkaForwarder {
	return &KafkaForwarder{writer: writer, topic: topic}
}

// Forward writes one message per event.
func (f *KafkaForwarder) Forward(ctx context.Context, batch []*model.ActivityEvent) error {
	if len(batch) == 0 {
		return nil
	}

	msgs, err := toKafkaMessages(batch)
	if err != nil {
		return err
	}

	if err := f.writer.WriteMessages(ctx, f.topic, msgs...); err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(msgs), f.topic, err)
	}
	return nil
}

func toKafkaMessages(batch []*model.ActivityEvent) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(batch))
	for _, event := range batch {
		value, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("marshal event %s: %w", event.EventID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.ActivityID),
			Value: value,
			Time:  event.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.Type)},
				{Key: "event_id", Value: []byte(event.EventID)},
			},
		})
	}
	return msgs, nil
}

package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/resqlabs/resq/internal/models"
)

// KafkaConfig contains configurable parameters for the Kafka publisher.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses (host:port).
	Brokers []string

	// Topic is the topic all dispatch events are written to.
	Topic string

	// MaxAttempts is how many times a publish retries on transient
	// error. Defaults to 3 if <= 0.
	MaxAttempts int

	// WriteTimeout is the per-attempt timeout. Defaults to 10s if zero.
	WriteTimeout time.Duration
}

// KafkaPublisher writes dispatch events to a single topic, keyed by
// entity id so one entity's events land on one partition in order.
// Sector scoping travels inside the envelope; Kafka consumers filter
// on it the way socket clients filter on rooms.
type KafkaPublisher struct {
	writer      *kafka.Writer
	maxAttempts int
}

type kafkaEnvelope struct {
	Event   string      `json:"event"`
	Sector  string      `json:"sector,omitempty"`
	Payload interface{} `json:"payload"`
	Ts      time.Time   `json:"ts"`
}

func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		// Key-hash balancer keeps messages with the same key on the
		// same partition, which preserves per-entity ordering.
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})

	return &KafkaPublisher{writer: w, maxAttempts: cfg.MaxAttempts}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, ev models.Event) error {
	return p.publish(ctx, "", key, ev)
}

func (p *KafkaPublisher) PublishSector(ctx context.Context, sector, key string, ev models.Event) error {
	return p.publish(ctx, sector, key, ev)
}

func (p *KafkaPublisher) publish(ctx context.Context, sector, key string, ev models.Event) error {
	value, err := json.Marshal(kafkaEnvelope{
		Event:   ev.Name,
		Sector:  sector,
		Payload: ev.Payload,
		Ts:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		msg := kafka.Message{
			Key:   []byte(key),
			Value: value,
			Time:  time.Now().UTC(),
		}
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.writer.WriteMessages(attemptCtx, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(backoff)
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	return fmt.Errorf("publish failed after %d attempts: %w", p.maxAttempts, lastErr)
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/pulse/pkg/metrics"
)

const (
	defaultMaxAttempts  = 3
	defaultWriteTimeout = 10 * time.Second
	retryBackoff        = 100 * time.Millisecond
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures a KafkaPublisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string

	// MaxAttempts defaults to 3.
	MaxAttempts int

	// WriteTimeout defaults to 10s.
	WriteTimeout time.Duration
}

// KafkaPublisher writes HealthChanged events as JSON, keyed by project id so
// one project's events stay ordered within a partition.
type KafkaPublisher struct {
	writer      messageWriter
	maxAttempts int
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher builds a publisher over a kafka-go Writer.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic required")
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
	})
	return newKafkaPublisher(w, cfg.MaxAttempts), nil
}

func newKafkaPublisher(w messageWriter, maxAttempts int) *KafkaPublisher {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &KafkaPublisher{writer: w, maxAttempts: maxAttempts}
}

// Publish writes e, retrying transient failures with linear backoff.
func (p *KafkaPublisher) Publish(ctx context.Context, e HealthChanged) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.ProjectID),
		Value: value,
		Time:  e.ComputedAt,
	}

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if lastErr = p.writer.WriteMessages(ctx, msg); lastErr == nil {
			metrics.RecordEventPublished()
			return nil
		}
		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			metrics.RecordEventPublishError()
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	metrics.RecordEventPublishError()
	return fmt.Errorf("kafka: publish after %d attempts: %w", p.maxAttempts, lastErr)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

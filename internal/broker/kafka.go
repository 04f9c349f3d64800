// Package broker builds the kafka-go writers the ledger publishes through.
package broker

import (
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// WriterOption adjusts a writer before it is handed out.
type WriterOption func(*kafka.Writer)

// NewKafkaWriter returns a synchronous writer keyed by message key, so one user's or
// one job's messages land on the same partition in order.
func NewKafkaWriter(brokers []string, topic string, opts ...WriterOption) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("kafka: no topic configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  10,
		WriteTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(writer)
	}

	return writer, nil
}

// Async makes WriteMessages return as soon as the message is queued. Delivery
// failures are only visible in the log.
func Async(log *zap.Logger) WriterOption {
	return func(w *kafka.Writer) {
		w.Async = true
		w.MaxAttempts = 3
		w.BatchTimeout = 50 * time.Millisecond
		topic := w.Topic
		w.Completion = func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn("failed to deliver messages",
					zap.String("topic", topic),
					zap.Int("count", len(messages)),
					zap.Error(err),
				)
			}
		}
	}
}

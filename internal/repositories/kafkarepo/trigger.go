package kafkarepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hyip-ledger/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type TriggerRepository struct {
	writer *kafka.Writer
}

func NewTriggerRepository(writer *kafka.Writer) *TriggerRepository {
	return &TriggerRepository{
		writer: writer,
	}
}

// SendTrigger publishes a periodic job request; the worker consumes it.
func (r *TriggerRepository) SendTrigger(ctx context.Context, job string, cycle int64, at time.Time) (string, error) {
	msg := models.TriggerMessage{
		ID:    uuid.New().String(),
		Job:   job,
		Cycle: cycle,
		At:    at.UTC(),
	}

	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal trigger message: %w", err)
	}

	// Keyed by job so repeated triggers for one job land on one partition in order
	err = r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job),
		Value: msgBytes,
	})
	if err != nil {
		return "", fmt.Errorf("failed to write trigger to kafka: %w", err)
	}

	return msg.ID, nil
}

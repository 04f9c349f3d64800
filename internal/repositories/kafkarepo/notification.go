package kafkarepo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"hyip-ledger/internal/models"

	"github.com/segmentio/kafka-go"
)

type NotificationRepository struct {
	writer *kafka.Writer
}

func NewNotificationRepository(writer *kafka.Writer) *NotificationRepository {
	return &NotificationRepository{
		writer: writer,
	}
}

// Notify publishes a notification request for the dispatcher to render and deliver.
func (r *NotificationRepository) Notify(ctx context.Context, userID int64, template string, vars map[string]string) error {
	msgBytes, err := json.Marshal(models.NotificationMessage{
		UserID:    userID,
		Template:  template,
		Variables: vars,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	// Keyed by user so one user's notifications stay ordered
	err = r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(userID, 10)),
		Value: msgBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to write notification to kafka: %w", err)
	}

	return nil
}

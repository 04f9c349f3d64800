package worker

import (
	"context"
	"encoding/json"
	"time"

	"hyip-ledger/internal/models"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// runWorker feeds one claim into its batch. An offset is marked only once the batch
// that held its message has run, so triggers read before a crash are read again.
func (m *PartitionManager) runWorker(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim, batch *BatchProcessor) {
	ctx := session.Context()
	ticker := time.NewTicker(m.cfg.Worker.ProcessingInterval)
	defer ticker.Stop()

	var last *sarama.ConsumerMessage
	mark := func() {
		if last != nil {
			session.MarkMessage(last, "")
			last = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			// Consumed triggers still run, on a context that outlives the session.
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			batch.ProcessRemaining(drainCtx)
			cancel()
			mark()
			return

		case msg, ok := <-claim.Messages():
			if !ok {
				batch.ProcessRemaining(ctx)
				mark()
				return
			}
			last = msg
			var trigger models.TriggerMessage
			if err := json.Unmarshal(msg.Value, &trigger); err != nil {
				batch.log.Warn("failed to unmarshal trigger", zap.Int64("offset", msg.Offset), zap.Error(err))
				continue
			}
			batch.AddMessage(trigger)

		case <-ticker.C:
			batch.ProcessBatch(ctx)
			mark()
		}
	}
}

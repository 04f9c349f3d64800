package worker

import (
	"context"
	"errors"
	"fmt"

	"hyip-ledger/internal/config"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// PartitionManager is the consumer group handler for the trigger topic. The group
// hands it one claim per assigned partition and each claim gets its own batch.
type PartitionManager struct {
	cfg    *config.Config
	runner TriggerRunner
	log    *zap.Logger
}

func NewPartitionManager(cfg *config.Config, runner TriggerRunner, log *zap.Logger) *PartitionManager {
	return &PartitionManager{
		cfg:    cfg,
		runner: runner,
		log:    log,
	}
}

// Start joins the consumer group and blocks until ctx is canceled and every claimed
// partition has drained its batch.
func (m *PartitionManager) Start(ctx context.Context) error {
	group, err := sarama.NewConsumerGroup(m.cfg.Kafka.Brokers, m.cfg.Kafka.ConsumerGroup, m.cfg.Kafka.GetSaramaConfig())
	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer group: %w", err)
	}
	defer group.Close()

	return m.Consume(ctx, group)
}

// Consume runs group sessions until ctx is canceled. Each rebalance ends a session;
// the loop joins the next one.
func (m *PartitionManager) Consume(ctx context.Context, group sarama.ConsumerGroup) error {
	m.log.Info("starting trigger workers",
		zap.String("topic", m.cfg.Kafka.TriggerTopic),
		zap.String("group", m.cfg.Kafka.ConsumerGroup),
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-group.Errors():
				if !ok {
					return
				}
				m.log.Error("kafka error", zap.Error(err))
			}
		}
	}()

	topics := []string{m.cfg.Kafka.TriggerTopic}
	for {
		if err := group.Consume(ctx, topics, m); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				break
			}
			return fmt.Errorf("consumer group session failed: %w", err)
		}
		if ctx.Err() != nil {
			break
		}
	}

	m.log.Info("all partition workers stopped")
	return nil
}

func (m *PartitionManager) Setup(session sarama.ConsumerGroupSession) error {
	m.log.Info("joined trigger group",
		zap.String("member", session.MemberID()),
		zap.Int32("generation", session.GenerationID()),
		zap.Any("claims", session.Claims()),
	)
	return nil
}

func (m *PartitionManager) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (m *PartitionManager) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log := m.log.With(zap.Int32("partition", claim.Partition()))
	m.runWorker(session, claim, NewBatchProcessor(m.runner, log))
	return nil
}

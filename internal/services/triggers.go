package services

import (
	"context"
	"fmt"
	"time"

	"hyip-ledger/internal/metrics"
	"hyip-ledger/internal/models"

	"go.uber.org/zap"
)

// TriggerService maps periodic job requests onto the idempotent batch operations.
type TriggerService struct {
	investments *InvestmentService
	staking     *StakingService
	metrics     *metrics.Recorder
	log         *zap.Logger
}

func NewTriggerService(investments *InvestmentService, staking *StakingService, rec *metrics.Recorder, log *zap.Logger) *TriggerService {
	return &TriggerService{
		investments: investments,
		staking:     staking,
		metrics:     rec,
		log:         log,
	}
}

// Run executes one trigger. An accrual trigger without a cycle uses the unix time of
// At, which keeps cycles increasing between runs.
func (s *TriggerService) Run(ctx context.Context, msg models.TriggerMessage) (BatchResult, error) {
	at := msg.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	start := time.Now()
	var (
		result BatchResult
		err    error
	)
	switch msg.Job {
	case models.JobAccrual:
		cycle := msg.Cycle
		if cycle <= 0 {
			cycle = at.Unix()
		}
		result, err = s.investments.RunAccrual(ctx, cycle, at)
	case models.JobSchedule:
		result, err = s.investments.RunSchedules(ctx, at)
	case models.JobStakingMaturity:
		result, err = s.staking.RunMaturity(ctx, at)
	default:
		return BatchResult{Job: msg.Job}, fmt.Errorf("job %q: %w", msg.Job, models.ErrNotFound)
	}
	s.metrics.TriggerRun(msg.Job, time.Since(start), err)

	s.log.Info("trigger processed",
		zap.String("trigger_id", msg.ID),
		zap.String("job", msg.Job),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Error(err),
	)
	return result, err
}

package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"hyip-ledger/internal/models"
	"hyip-ledger/internal/services"

	"go.uber.org/zap"
)

type TriggerRunner interface {
	Run(ctx context.Context, msg models.TriggerMessage) (services.BatchResult, error)
}

// Schedules fire before accrual so an investment bought this tick is not missed.
var jobOrder = map[string]int{
	models.JobSchedule:        0,
	models.JobAccrual:         1,
	models.JobStakingMaturity: 2,
}

// BatchProcessor collapses the triggers received between ticks to one run per job.
type BatchProcessor struct {
	runner        TriggerRunner
	log           *zap.Logger
	pending       map[string]models.TriggerMessage
	received      int
	mutex         sync.Mutex
	lastProcessed time.Time
}

func NewBatchProcessor(runner TriggerRunner, log *zap.Logger) *BatchProcessor {
	return &BatchProcessor{
		runner:        runner,
		log:           log,
		pending:       make(map[string]models.TriggerMessage),
		lastProcessed: time.Now(),
	}
}

// AddMessage keeps the latest trigger per job. Later At wins, then the higher cycle.
func (bp *BatchProcessor) AddMessage(msg models.TriggerMessage) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	bp.received++
	current, ok := bp.pending[msg.Job]
	if !ok || newer(msg, current) {
		bp.pending[msg.Job] = msg
	}
}

func newer(a, b models.TriggerMessage) bool {
	if !a.At.Equal(b.At) {
		return a.At.After(b.At)
	}
	return a.Cycle > b.Cycle
}

// ProcessBatch runs the pending triggers and returns their results in run order.
// A failing job is logged and does not stop the others.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context) []services.BatchResult {
	bp.mutex.Lock()
	if len(bp.pending) == 0 {
		bp.mutex.Unlock()
		return nil
	}
	batch := make([]models.TriggerMessage, 0, len(bp.pending))
	for _, msg := range bp.pending {
		batch = append(batch, msg)
	}
	received := bp.received
	bp.pending = make(map[string]models.TriggerMessage)
	bp.received = 0
	bp.mutex.Unlock()

	sort.Slice(batch, func(i, j int) bool {
		oi, iKnown := jobOrder[batch[i].Job]
		oj, jKnown := jobOrder[batch[j].Job]
		if iKnown != jKnown {
			return iKnown
		}
		if oi != oj {
			return oi < oj
		}
		return batch[i].Job < batch[j].Job
	})

	bp.log.Info("processing trigger batch", zap.Int("received", received), zap.Int("jobs", len(batch)))

	results := make([]services.BatchResult, 0, len(batch))
	for _, msg := range batch {
		result, err := bp.runner.Run(ctx, msg)
		if err != nil {
			bp.log.Error("trigger failed",
				zap.String("trigger_id", msg.ID),
				zap.String("job", msg.Job),
				zap.Error(err),
			)
		}
		result.Job = msg.Job
		results = append(results, result)
	}

	bp.mutex.Lock()
	bp.lastProcessed = time.Now()
	bp.mutex.Unlock()

	return results
}

// ProcessRemaining flushes what is left before shutdown.
func (bp *BatchProcessor) ProcessRemaining(ctx context.Context) {
	bp.mutex.Lock()
	n := len(bp.pending)
	bp.mutex.Unlock()

	if n > 0 {
		bp.log.Info("processing remaining triggers before shutdown", zap.Int("jobs", n))
		bp.ProcessBatch(ctx)
	}
}

func (bp *BatchProcessor) Pending() int {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()
	return len(bp.pending)
}

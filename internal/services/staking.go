package services

import (
	"context"
	"fmt"
	"time"

	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type StakingService struct {
	store    repositories.Store
	wallets  *WalletService
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
	workers  int
}

func NewStakingService(store repositories.Store, wallets *WalletService, notifier Notifier, log *zap.Logger, now func() time.Time, workers int) *StakingService {
	return &StakingService{
		store:    store,
		wallets:  wallets,
		notifier: notifier,
		log:      log,
		now:      now,
		workers:  workers,
	}
}

type StakeRequest struct {
	UserID     int64             `json:"-"`
	StakingID  int64             `json:"stakingId" validate:"required,gt=0"`
	Amount     decimal.Decimal   `json:"amount"`
	WalletKind models.WalletKind `json:"wallet" validate:"required,oneof=deposit interest"`
}

// Stake locks the full principal until maturity. Interest is fixed at creation.
func (s *StakingService) Stake(ctx context.Context, req StakeRequest) (*models.StakingInvestment, error) {
	plan, err := s.store.GetStakingPlan(ctx, req.StakingID)
	if err != nil {
		return nil, fmt.Errorf("staking plan %d: %w", req.StakingID, err)
	}
	if !plan.Active {
		return nil, fmt.Errorf("staking plan %d: %w", plan.ID, models.ErrPlanInactive)
	}
	if !req.Amount.IsPositive() || req.Amount.LessThan(plan.MinAmount) || req.Amount.GreaterThan(plan.MaxAmount) {
		return nil, fmt.Errorf("%w: %s is outside [%s, %s]", models.ErrInvalidAmount, req.Amount, plan.MinAmount, plan.MaxAmount)
	}

	now := s.now().UTC()
	stake := &models.StakingInvestment{
		UserID:        req.UserID,
		StakingID:     plan.ID,
		InvestAmount:  req.Amount,
		Interest:      models.Percent(req.Amount, plan.InterestPercent),
		EndAt:         now.AddDate(0, 0, plan.Days),
		Status:        models.StakingActive,
		ReferenceCode: uuid.New().String(),
		CreatedAt:     now,
	}
	err = s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		if _, err := s.wallets.Debit(ctx, tx, models.Movement{
			UserID:    req.UserID,
			Kind:      req.WalletKind,
			Amount:    req.Amount,
			Category:  models.CategoryStakingInvest,
			Reference: stake.ReferenceCode,
			Details:   fmt.Sprintf("Staked for %d days", plan.Days),
		}); err != nil {
			return err
		}
		return tx.InsertStake(ctx, stake)
	})
	if err != nil {
		return nil, err
	}
	return stake, nil
}

// RunMaturity returns principal plus interest for every stake that ended by now.
func (s *StakingService) RunMaturity(ctx context.Context, now time.Time) (BatchResult, error) {
	ids, err := s.store.MaturedStakeIDs(ctx, now)
	if err != nil {
		return BatchResult{Job: models.JobStakingMaturity}, fmt.Errorf("failed to list matured stakes: %w", err)
	}

	return runBatch(ctx, models.JobStakingMaturity, ids, s.workers, s.log, func(ctx context.Context, id int64) (bool, error) {
		return s.mature(ctx, id, now)
	})
}

func (s *StakingService) mature(ctx context.Context, stakeID int64, now time.Time) (bool, error) {
	var stake *models.StakingInvestment
	matured := false
	err := s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		matured = false

		var err error
		stake, err = tx.LockStake(ctx, stakeID)
		if err != nil {
			return fmt.Errorf("failed to lock stake: %w", err)
		}
		if stake.Status != models.StakingActive || stake.EndAt.After(now) {
			return nil
		}

		if _, err := s.wallets.Credit(ctx, tx, models.Movement{
			UserID:    stake.UserID,
			Kind:      models.WalletInterest,
			Amount:    stake.InvestAmount.Add(stake.Interest),
			Category:  models.CategoryStakingReturn,
			Reference: stake.ReferenceCode,
			Details:   fmt.Sprintf("Staking %d matured", stake.ID),
		}); err != nil {
			return err
		}
		stake.Status = models.StakingMatured
		matured = true
		return tx.UpdateStake(ctx, stake)
	})
	if err != nil {
		return false, err
	}

	if matured {
		notify(ctx, s.log, s.notifier, stake.UserID, models.TemplateStakingMatured, map[string]string{
			"invest_amount": stake.InvestAmount.String(),
			"interest":      stake.Interest.String(),
			"reference":     stake.ReferenceCode,
		})
	}
	return matured, nil
}

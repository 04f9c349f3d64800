package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PoolService struct {
	store    repositories.Store
	wallets  *WalletService
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewPoolService(store repositories.Store, wallets *WalletService, notifier Notifier, log *zap.Logger, now func() time.Time) *PoolService {
	return &PoolService{
		store:    store,
		wallets:  wallets,
		notifier: notifier,
		log:      log,
		now:      now,
	}
}

type PoolInvestRequest struct {
	UserID     int64             `json:"-"`
	PoolID     int64             `json:"-"`
	Amount     decimal.Decimal   `json:"amount"`
	WalletKind models.WalletKind `json:"wallet" validate:"required,oneof=deposit interest"`
}

// Invest adds to the user's stake in a pool. The pool row is locked before the wallet
// so capacity checks and the debit see the same state.
func (s *PoolService) Invest(ctx context.Context, req PoolInvestRequest) (*models.PoolInvestment, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrInvalidAmount)
	}

	var pi *models.PoolInvestment
	err := s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		pool, err := tx.LockPool(ctx, req.PoolID)
		if err != nil {
			return fmt.Errorf("pool %d: %w", req.PoolID, err)
		}
		now := s.now().UTC()
		if !pool.Open(now) {
			return fmt.Errorf("pool %d: %w", pool.ID, models.ErrPoolClosed)
		}
		if req.Amount.GreaterThan(pool.Available()) {
			return fmt.Errorf("%w: %s left in pool %d", models.ErrPoolOverLimit, pool.Available(), pool.ID)
		}

		if _, err := s.wallets.Debit(ctx, tx, models.Movement{
			UserID:    req.UserID,
			Kind:      req.WalletKind,
			Amount:    req.Amount,
			Category:  models.CategoryPoolInvest,
			Reference: uuid.New().String(),
			Details:   fmt.Sprintf("Invested in pool %s", pool.Name),
		}); err != nil {
			return err
		}

		pool.InvestedAmount = pool.InvestedAmount.Add(req.Amount)
		if err := tx.UpdatePool(ctx, pool); err != nil {
			return fmt.Errorf("failed to update pool: %w", err)
		}

		pi, err = tx.LockPoolInvestment(ctx, pool.ID, req.UserID)
		if errors.Is(err, models.ErrNotFound) {
			pi = &models.PoolInvestment{
				PoolID:       pool.ID,
				UserID:       req.UserID,
				InvestAmount: decimal.Zero,
				Status:       models.PoolInvestmentRunning,
			}
		} else if err != nil {
			return fmt.Errorf("failed to lock pool investment: %w", err)
		}
		pi.InvestAmount = pi.InvestAmount.Add(req.Amount)
		pi.UpdatedAt = now
		return tx.SavePoolInvestment(ctx, pi)
	})
	if err != nil {
		return nil, err
	}
	return pi, nil
}

// Dispatch pays every stake of a finished pool its principal plus ratePercent interest
// into the interest wallet. A pool is dispatched at most once.
func (s *PoolService) Dispatch(ctx context.Context, poolID int64, ratePercent decimal.Decimal) ([]models.PoolInvestment, error) {
	if ratePercent.IsNegative() {
		return nil, fmt.Errorf("%w: negative rate", models.ErrInvalidAmount)
	}

	var paid []models.PoolInvestment
	err := s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		paid = nil

		pool, err := tx.LockPool(ctx, poolID)
		if err != nil {
			return fmt.Errorf("pool %d: %w", poolID, err)
		}
		if pool.ShareInterest {
			return fmt.Errorf("%w: pool %d already dispatched", models.ErrInvalidState, poolID)
		}
		now := s.now().UTC()
		if now.Before(pool.EndDate) {
			return fmt.Errorf("%w: pool %d runs until %s", models.ErrInvalidState, poolID, pool.EndDate.Format(time.RFC3339))
		}

		// Sorted by user ID, so wallet locks follow the global order.
		stakes, err := tx.ListPoolInvestments(ctx, poolID)
		if err != nil {
			return fmt.Errorf("failed to list pool investments: %w", err)
		}
		reference := uuid.New().String()
		for i := range stakes {
			pi := &stakes[i]
			if pi.Status != models.PoolInvestmentRunning {
				continue
			}
			payout := pi.InvestAmount.Add(models.Percent(pi.InvestAmount, ratePercent))
			if _, err := s.wallets.Credit(ctx, tx, models.Movement{
				UserID:    pi.UserID,
				Kind:      models.WalletInterest,
				Amount:    payout,
				Category:  models.CategoryPoolReturn,
				Reference: reference,
				Details:   fmt.Sprintf("Pool %s returned %s%%", pool.Name, ratePercent),
			}); err != nil {
				return err
			}
			pi.Status = models.PoolInvestmentCompleted
			pi.UpdatedAt = now
			if err := tx.SavePoolInvestment(ctx, pi); err != nil {
				return fmt.Errorf("failed to update pool investment: %w", err)
			}
			paid = append(paid, *pi)
		}

		pool.ShareInterest = true
		return tx.UpdatePool(ctx, pool)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("pool dispatched", zap.Int64("pool_id", poolID), zap.Int("investors", len(paid)))
	for _, pi := range paid {
		notify(ctx, s.log, s.notifier, pi.UserID, models.TemplatePoolDispatched, map[string]string{
			"invest_amount": pi.InvestAmount.String(),
			"rate":          ratePercent.String(),
		})
	}
	return paid, nil
}

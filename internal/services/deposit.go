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

type DepositService struct {
	store     repositories.Store
	wallets   *WalletService
	referrals *ReferralService
	notifier  Notifier
	log       *zap.Logger
	now       func() time.Time
}

func NewDepositService(store repositories.Store, wallets *WalletService, referrals *ReferralService, notifier Notifier, log *zap.Logger, now func() time.Time) *DepositService {
	return &DepositService{
		store:     store,
		wallets:   wallets,
		referrals: referrals,
		notifier:  notifier,
		log:       log,
		now:       now,
	}
}

type DepositRequest struct {
	UserID    int64           `json:"-"`
	GatewayID int64           `json:"gatewayId" validate:"required,gt=0"`
	Amount    decimal.Decimal `json:"amount"`
}

// Initiate records a draft deposit with the amount payable through the gateway.
func (s *DepositService) Initiate(ctx context.Context, req DepositRequest) (*models.Deposit, error) {
	gateway, err := s.store.GetDepositGateway(ctx, req.GatewayID)
	if err != nil {
		return nil, fmt.Errorf("deposit gateway %d: %w", req.GatewayID, err)
	}
	if !gateway.Active {
		return nil, fmt.Errorf("deposit gateway %d is disabled: %w", req.GatewayID, models.ErrNotFound)
	}
	if !req.Amount.IsPositive() || req.Amount.LessThan(gateway.MinLimit) || req.Amount.GreaterThan(gateway.MaxLimit) {
		return nil, fmt.Errorf("%w: %s is outside [%s, %s]", models.ErrInvalidAmount, req.Amount, gateway.MinLimit, gateway.MaxLimit)
	}

	charge := gateway.FixedCharge.Add(models.Percent(req.Amount, gateway.PercentCharge))
	now := s.now().UTC()
	d := &models.Deposit{
		UserID:        req.UserID,
		GatewayID:     gateway.ID,
		MethodCode:    gateway.Code,
		Amount:        req.Amount,
		Currency:      gateway.Currency,
		Rate:          gateway.Rate,
		Charge:        charge,
		FinalAmount:   req.Amount.Add(charge).Mul(gateway.Rate).Round(models.AmountPrecision),
		Status:        models.DepositDraft,
		ReferenceCode: uuid.New().String(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		return tx.InsertDeposit(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// MarkPending records that the user submitted a manual gateway payment for review.
func (s *DepositService) MarkPending(ctx context.Context, userID, depositID int64) (*models.Deposit, error) {
	var d *models.Deposit
	err := s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		d, err = s.lockForTransition(ctx, tx, depositID, models.DepositPending)
		if err != nil {
			return err
		}
		if d.UserID != userID {
			return fmt.Errorf("deposit %d: %w", depositID, models.ErrNotFound)
		}
		d.Status = models.DepositPending
		d.UpdatedAt = s.now().UTC()
		return tx.UpdateDeposit(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateUserData approves a draft or pending deposit and credits the deposit wallet.
// On a deposit that is already approved or rejected it does nothing and returns it
// unchanged, so a repeated gateway callback never credits twice.
func (s *DepositService) UpdateUserData(ctx context.Context, depositID int64) (*models.Deposit, error) {
	var (
		d        *models.Deposit
		credited bool
	)
	err := s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		credited = false

		var err error
		d, err = tx.LockDeposit(ctx, depositID)
		if err != nil {
			return fmt.Errorf("deposit %d: %w", depositID, err)
		}
		if !d.Status.CanTransition(models.DepositApproved) {
			return nil
		}

		if _, err := s.wallets.Credit(ctx, tx, models.Movement{
			UserID:    d.UserID,
			Kind:      models.WalletDeposit,
			Amount:    d.Amount,
			Charge:    d.Charge,
			Category:  models.CategoryDeposit,
			Reference: d.ReferenceCode,
			Details:   fmt.Sprintf("Deposit via %s", d.MethodCode),
		}); err != nil {
			return err
		}

		d.Status = models.DepositApproved
		d.UpdatedAt = s.now().UTC()
		credited = true
		return tx.UpdateDeposit(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	if !credited {
		return d, nil
	}

	s.log.Info("deposit approved",
		zap.Int64("user_id", d.UserID),
		zap.String("amount", d.Amount.String()),
		zap.String("reference", d.ReferenceCode),
	)
	if _, err := s.referrals.Distribute(ctx, d.UserID, d.Amount, models.CommissionDeposit); err != nil {
		s.log.Warn("deposit commission incomplete", zap.Int64("deposit_id", d.ID), zap.Error(err))
	}
	notify(ctx, s.log, s.notifier, d.UserID, models.TemplateDepositComplete, depositVars(d))
	return d, nil
}

// Reject closes a pending deposit. Nothing was credited, so nothing is reversed.
func (s *DepositService) Reject(ctx context.Context, depositID int64, message string) (*models.Deposit, error) {
	var d *models.Deposit
	err := s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		d, err = s.lockForTransition(ctx, tx, depositID, models.DepositRejected)
		if err != nil {
			return err
		}
		d.Status = models.DepositRejected
		d.AdminFeedback = message
		d.UpdatedAt = s.now().UTC()
		return tx.UpdateDeposit(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	notify(ctx, s.log, s.notifier, d.UserID, models.TemplateDepositReject, depositVars(d))
	return d, nil
}

func (s *DepositService) lockForTransition(ctx context.Context, tx repositories.Tx, depositID int64, to models.DepositStatus) (*models.Deposit, error) {
	d, err := tx.LockDeposit(ctx, depositID)
	if err != nil {
		return nil, fmt.Errorf("deposit %d: %w", depositID, err)
	}
	if !d.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: deposit %d is %s, cannot become %s", models.ErrInvalidState, depositID, d.Status, to)
	}
	return d, nil
}

func depositVars(d *models.Deposit) map[string]string {
	return map[string]string{
		"amount":    d.Amount.String(),
		"charge":    d.Charge.String(),
		"method":    d.MethodCode,
		"reference": d.ReferenceCode,
		"feedback":  d.AdminFeedback,
	}
}

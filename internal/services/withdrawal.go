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

type WithdrawalService struct {
	store    repositories.Store
	wallets  *WalletService
	holidays *HolidayPolicy
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewWithdrawalService(store repositories.Store, wallets *WalletService, holidays *HolidayPolicy, notifier Notifier, log *zap.Logger, now func() time.Time) *WithdrawalService {
	return &WithdrawalService{
		store:    store,
		wallets:  wallets,
		holidays: holidays,
		notifier: notifier,
		log:      log,
		now:      now,
	}
}

type WithdrawalRequest struct {
	UserID   int64           `json:"-"`
	MethodID int64           `json:"methodId" validate:"required,gt=0"`
	Amount   decimal.Decimal `json:"amount"`
}

// Request creates a draft withdrawal. No balance is touched until Submit.
func (s *WithdrawalService) Request(ctx context.Context, req WithdrawalRequest) (*models.Withdrawal, error) {
	method, err := s.store.GetWithdrawMethod(ctx, req.MethodID)
	if err != nil {
		return nil, fmt.Errorf("withdraw method %d: %w", req.MethodID, err)
	}
	if !method.Active {
		return nil, fmt.Errorf("withdraw method %d is disabled: %w", req.MethodID, models.ErrNotFound)
	}
	if !method.InLimits(req.Amount) {
		return nil, fmt.Errorf("%w: %s is outside [%s, %s]", models.ErrInvalidAmount, req.Amount, method.MinLimit, method.MaxLimit)
	}

	charge := method.Charge(req.Amount)
	afterCharge := req.Amount.Sub(charge)
	if !afterCharge.IsPositive() {
		return nil, fmt.Errorf("%w: charge %s consumes the whole amount", models.ErrInvalidAmount, charge)
	}

	if err := s.checkBalance(ctx, req.UserID, req.Amount); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	w := &models.Withdrawal{
		UserID:        req.UserID,
		MethodID:      method.ID,
		Amount:        req.Amount,
		Currency:      method.Currency,
		Rate:          method.Rate,
		Charge:        charge,
		AfterCharge:   afterCharge,
		FinalAmount:   afterCharge.Mul(method.Rate).Round(models.AmountPrecision),
		Status:        models.WithdrawalDraft,
		ReferenceCode: uuid.New().String(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		return tx.InsertWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *WithdrawalService) checkBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	balance := decimal.Zero
	wallet, err := s.store.GetWallet(ctx, userID, models.WalletInterest)
	switch {
	case err == nil:
		balance = wallet.Balance
	case !errors.Is(err, models.ErrNotFound):
		return err
	}
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: interest wallet holds %s, %s requested", models.ErrInsufficientBalance, balance, amount)
	}
	return nil
}

// Submit debits the interest wallet and moves a draft to pending.
func (s *WithdrawalService) Submit(ctx context.Context, userID, withdrawalID int64, formData string) (*models.Withdrawal, error) {
	if err := s.holidays.Check(s.now()); err != nil {
		return nil, err
	}

	var w *models.Withdrawal
	err := s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		w, err = s.lockForTransition(ctx, tx, withdrawalID, models.WithdrawalPending)
		if err != nil {
			return err
		}
		if w.UserID != userID {
			return fmt.Errorf("withdrawal %d: %w", withdrawalID, models.ErrNotFound)
		}

		if _, err := s.wallets.Debit(ctx, tx, models.Movement{
			UserID:    w.UserID,
			Kind:      models.WalletInterest,
			Amount:    w.Amount,
			Charge:    w.Charge,
			Category:  models.CategoryWithdraw,
			Reference: w.ReferenceCode,
			Details:   fmt.Sprintf("Withdraw %s %s", w.FinalAmount, w.Currency),
		}); err != nil {
			return err
		}

		w.Status = models.WithdrawalPending
		w.FormData = formData
		w.UpdatedAt = s.now().UTC()
		return tx.UpdateWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	notify(ctx, s.log, s.notifier, w.UserID, models.TemplateWithdrawRequest, withdrawalVars(w))
	return w, nil
}

// Approve finalizes a pending withdrawal; the funds already left the wallet at Submit.
func (s *WithdrawalService) Approve(ctx context.Context, withdrawalID int64, feedback string) (*models.Withdrawal, error) {
	if err := s.holidays.Check(s.now()); err != nil {
		return nil, err
	}

	var w *models.Withdrawal
	err := s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		w, err = s.lockForTransition(ctx, tx, withdrawalID, models.WithdrawalApproved)
		if err != nil {
			return err
		}
		w.Status = models.WithdrawalApproved
		w.AdminFeedback = feedback
		w.UpdatedAt = s.now().UTC()
		return tx.UpdateWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	notify(ctx, s.log, s.notifier, w.UserID, models.TemplateWithdrawApprove, withdrawalVars(w))
	return w, nil
}

// Reject refunds a pending withdrawal with a new credit entry.
func (s *WithdrawalService) Reject(ctx context.Context, withdrawalID int64, reason string) (*models.Withdrawal, error) {
	var w *models.Withdrawal
	err := s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		w, err = s.lockForTransition(ctx, tx, withdrawalID, models.WithdrawalRejected)
		if err != nil {
			return err
		}

		if _, err := s.wallets.Credit(ctx, tx, models.Movement{
			UserID:    w.UserID,
			Kind:      models.WalletInterest,
			Amount:    w.Amount,
			Category:  models.CategoryWithdrawReject,
			Reference: w.ReferenceCode,
			Details:   fmt.Sprintf("Withdrawal %d rejected", w.ID),
		}); err != nil {
			return err
		}

		w.Status = models.WithdrawalRejected
		w.AdminFeedback = reason
		w.UpdatedAt = s.now().UTC()
		return tx.UpdateWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("withdrawal rejected", zap.Int64("user_id", w.UserID), zap.String("reference", w.ReferenceCode))
	notify(ctx, s.log, s.notifier, w.UserID, models.TemplateWithdrawReject, withdrawalVars(w))
	return w, nil
}

func (s *WithdrawalService) lockForTransition(ctx context.Context, tx repositories.Tx, withdrawalID int64, to models.WithdrawalStatus) (*models.Withdrawal, error) {
	w, err := tx.LockWithdrawal(ctx, withdrawalID)
	if err != nil {
		return nil, fmt.Errorf("withdrawal %d: %w", withdrawalID, err)
	}
	if !w.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: withdrawal %d is %s, cannot become %s", models.ErrInvalidState, withdrawalID, w.Status, to)
	}
	return w, nil
}

func withdrawalVars(w *models.Withdrawal) map[string]string {
	return map[string]string{
		"amount":       w.Amount.String(),
		"charge":       w.Charge.String(),
		"final_amount": w.FinalAmount.String(),
		"currency":     w.Currency,
		"reference":    w.ReferenceCode,
		"feedback":     w.AdminFeedback,
	}
}

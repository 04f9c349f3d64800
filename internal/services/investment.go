package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hyip-ledger/internal/metrics"
	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type InvestmentService struct {
	store     repositories.Store
	wallets   *WalletService
	catalog   *Catalog
	referrals *ReferralService
	holidays  *HolidayPolicy
	notifier  Notifier
	metrics   *metrics.Recorder
	log       *zap.Logger
	now       func() time.Time
	workers   int
}

func NewInvestmentService(
	store repositories.Store,
	wallets *WalletService,
	catalog *Catalog,
	referrals *ReferralService,
	holidays *HolidayPolicy,
	notifier Notifier,
	rec *metrics.Recorder,
	log *zap.Logger,
	now func() time.Time,
	workers int,
) *InvestmentService {
	return &InvestmentService{
		store:     store,
		wallets:   wallets,
		catalog:   catalog,
		referrals: referrals,
		holidays:  holidays,
		notifier:  notifier,
		metrics:   rec,
		log:       log,
		now:       now,
		workers:   workers,
	}
}

// CreatePlan stores a plan after checking its configuration rules.
func (s *InvestmentService) CreatePlan(ctx context.Context, plan models.Plan) (*models.Plan, error) {
	if plan.Status == "" {
		plan.Status = models.PlanActive
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	err := s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		return tx.InsertPlan(ctx, &plan)
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// validatePurchase applies the purchase rules that do not depend on the balance, in order.
func validatePurchase(plan models.Plan, req models.PurchaseRequest) error {
	if plan.Status != models.PlanActive {
		return fmt.Errorf("plan %d: %w", plan.ID, models.ErrPlanInactive)
	}
	if req.CompoundCycles > 0 {
		if !plan.CompoundInterest {
			return fmt.Errorf("plan %d: %w", plan.ID, models.ErrPlanNotCompoundable)
		}
		if plan.RepeatTime > 0 && req.CompoundCycles >= plan.RepeatTime {
			return fmt.Errorf("%w: %d compound cycles requested, plan repeats %d times",
				models.ErrPlanNotCompoundable, req.CompoundCycles, plan.RepeatTime)
		}
	}
	if !plan.AcceptsAmount(req.Amount) {
		return fmt.Errorf("%w: %s is outside the plan limits", models.ErrInvalidAmount, req.Amount)
	}
	if !req.WalletKind.Valid() {
		return fmt.Errorf("wallet kind %q: %w", req.WalletKind, models.ErrNotFound)
	}
	return nil
}

// Purchase debits the source wallet and opens an active investment. Nothing is
// written when any check fails.
func (s *InvestmentService) Purchase(ctx context.Context, req models.PurchaseRequest) (*models.Investment, error) {
	if req.Schedule {
		return nil, fmt.Errorf("%w: scheduled purchases go through Schedule", models.ErrInvalidState)
	}

	plan, err := s.catalog.Plan(ctx, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("plan %d: %w", req.PlanID, err)
	}
	if err := validatePurchase(plan, req); err != nil {
		return nil, err
	}

	var inv *models.Investment
	err = s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		inv, err = s.purchaseTx(ctx, tx, plan, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterPurchase(ctx, inv)
	return inv, nil
}

func (s *InvestmentService) purchaseTx(ctx context.Context, tx repositories.Tx, plan models.Plan, req models.PurchaseRequest) (*models.Investment, error) {
	now := s.now().UTC()
	reference := uuid.New().String()

	if _, err := s.wallets.Debit(ctx, tx, models.Movement{
		UserID:    req.UserID,
		Kind:      req.WalletKind,
		Amount:    req.Amount,
		Category:  models.CategoryInvest,
		Reference: reference,
		Details:   fmt.Sprintf("Invested on %s", plan.Name),
	}); err != nil {
		return nil, err
	}

	interest := plan.CycleInterest(req.Amount)
	period := plan.RepeatTime
	shouldPay := interest.Mul(decimal.NewFromInt(int64(period)))
	if plan.Lifetime {
		period = models.LifetimePeriod
		shouldPay = decimal.Zero
	}

	inv := &models.Investment{
		UserID:                  req.UserID,
		PlanID:                  plan.ID,
		WalletKind:              req.WalletKind,
		Amount:                  req.Amount,
		InterestType:            plan.InterestType,
		InterestRate:            plan.InterestRate,
		Interest:                interest,
		Status:                  models.InvestmentActive,
		Period:                  period,
		ShouldPay:               shouldPay,
		Paid:                    decimal.Zero,
		CapitalBack:             plan.CapitalBack,
		HoldCapital:             plan.HoldCapital,
		CapitalHeld:             decimal.Zero,
		CompoundCyclesRemaining: req.CompoundCycles,
		TermHours:               plan.TermHours,
		NextAccrualAt:           s.holidays.NextWorkingDay(now.Add(plan.Term())),
		ReferenceCode:           reference,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := tx.InsertInvestment(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to insert investment: %w", err)
	}

	if err := tx.AddTotalInvest(ctx, req.UserID, req.Amount); err != nil {
		return nil, fmt.Errorf("failed to update invest counters: %w", err)
	}
	uplines, err := ancestors(ctx, tx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load referrer chain: %w", err)
	}
	if len(uplines) > 0 {
		if err := tx.AddTeamInvest(ctx, uplines, req.Amount); err != nil {
			return nil, fmt.Errorf("failed to update team counters: %w", err)
		}
	}
	return inv, nil
}

func (s *InvestmentService) afterPurchase(ctx context.Context, inv *models.Investment) {
	s.log.Info("investment created",
		zap.Int64("investment_id", inv.ID),
		zap.Int64("user_id", inv.UserID),
		zap.Int64("plan_id", inv.PlanID),
		zap.String("amount", inv.Amount.String()),
		zap.String("reference", inv.ReferenceCode),
	)
	if _, err := s.referrals.Distribute(ctx, inv.UserID, inv.Amount, models.CommissionInvest); err != nil {
		s.log.Warn("invest commission incomplete", zap.Int64("investment_id", inv.ID), zap.Error(err))
	}
	notify(ctx, s.log, s.notifier, inv.UserID, models.TemplateInvestCreated, map[string]string{
		"amount":    inv.Amount.String(),
		"interest":  inv.Interest.String(),
		"reference": inv.ReferenceCode,
	})
}

// AccrualResult describes what one accrual call did.
type AccrualResult struct {
	Paid     bool
	Payout   decimal.Decimal
	Closed   bool
	Compound bool
}

// Accrue pays one cycle of an investment. It is a no-op when the investment is not
// active, was already paid for cycle, or is not yet due at now.
func (s *InvestmentService) Accrue(ctx context.Context, investmentID, cycle int64, now time.Time) (*AccrualResult, error) {
	var (
		result AccrualResult
		inv    *models.Investment
	)
	err := s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		result = AccrualResult{}

		var err error
		inv, err = tx.LockInvestment(ctx, investmentID)
		if err != nil {
			return fmt.Errorf("failed to lock investment: %w", err)
		}
		if !inv.Due(cycle, now) {
			return nil
		}
		return s.accrueTx(ctx, tx, inv, cycle, now, &result)
	})
	if err != nil {
		return nil, err
	}
	if !result.Paid {
		return &result, nil
	}

	s.metrics.AccrualPayout(result.Payout)
	if _, err := s.referrals.Distribute(ctx, inv.UserID, result.Payout, models.CommissionInvestReturn); err != nil {
		s.log.Warn("return commission incomplete", zap.Int64("investment_id", inv.ID), zap.Error(err))
	}
	if result.Closed {
		notify(ctx, s.log, s.notifier, inv.UserID, models.TemplateInvestCompleted, map[string]string{
			"amount":    inv.Amount.String(),
			"paid":      inv.Paid.String(),
			"reference": inv.ReferenceCode,
		})
	}
	return &result, nil
}

func (s *InvestmentService) accrueTx(ctx context.Context, tx repositories.Tx, inv *models.Investment, cycle int64, now time.Time, result *AccrualResult) error {
	payout := inv.Interest
	if payout.IsPositive() {
		if _, err := s.wallets.Credit(ctx, tx, models.Movement{
			UserID:    inv.UserID,
			Kind:      models.WalletInterest,
			Amount:    payout,
			Category:  models.CategoryInterest,
			Reference: inv.ReferenceCode,
			Details:   fmt.Sprintf("Interest for investment %d", inv.ID),
		}); err != nil {
			return err
		}
		inv.Paid = inv.Paid.Add(payout)
	}
	result.Paid = true
	result.Payout = payout

	if !inv.Lifetime() {
		inv.Period--
	}

	switch {
	case !inv.Lifetime() && inv.Period <= 0:
		inv.Status = models.InvestmentClosed
		result.Closed = true
		if inv.CapitalBack {
			if inv.HoldCapital {
				inv.CapitalHeld = inv.Amount
			} else if _, err := s.wallets.Credit(ctx, tx, models.Movement{
				UserID:    inv.UserID,
				Kind:      models.WalletInterest,
				Amount:    inv.Amount,
				Category:  models.CategoryCapitalReturn,
				Reference: inv.ReferenceCode,
				Details:   fmt.Sprintf("Capital returned for investment %d", inv.ID),
			}); err != nil {
				return err
			}
		}

	case inv.CompoundCyclesRemaining > 0 && payout.IsPositive():
		if _, err := s.wallets.Debit(ctx, tx, models.Movement{
			UserID:    inv.UserID,
			Kind:      models.WalletInterest,
			Amount:    payout,
			Category:  models.CategoryInvestCompound,
			Reference: inv.ReferenceCode,
			Details:   fmt.Sprintf("Interest compounded into investment %d", inv.ID),
		}); err != nil {
			return err
		}
		inv.Amount = inv.Amount.Add(payout)
		inv.Interest = models.CycleInterest(inv.InterestType, inv.InterestRate, inv.Amount)
		inv.CompoundCyclesUsed++
		inv.CompoundCyclesRemaining--
		result.Compound = true
	}

	if !inv.Lifetime() {
		inv.ShouldPay = inv.Paid.Add(inv.Interest.Mul(decimal.NewFromInt(int64(inv.Period))))
	}
	inv.LastCycle = cycle
	inv.NextAccrualAt = s.holidays.NextWorkingDay(inv.NextAccrualAt.Add(time.Duration(inv.TermHours) * time.Hour))
	inv.UpdatedAt = now

	if err := tx.UpdateInvestment(ctx, inv); err != nil {
		return fmt.Errorf("failed to update investment: %w", err)
	}
	return nil
}

// RunAccrual pays every investment due for cycle at now. Re-running it for the same
// cycle pays nothing twice.
func (s *InvestmentService) RunAccrual(ctx context.Context, cycle int64, now time.Time) (BatchResult, error) {
	ids, err := s.store.DueInvestmentIDs(ctx, cycle, now)
	if err != nil {
		return BatchResult{Job: models.JobAccrual}, fmt.Errorf("failed to list due investments: %w", err)
	}

	return runBatch(ctx, models.JobAccrual, ids, s.workers, s.log, func(ctx context.Context, id int64) (bool, error) {
		res, err := s.Accrue(ctx, id, cycle, now)
		if err != nil {
			return false, err
		}
		return res.Paid, nil
	})
}

// ReleaseCapital pays out principal retained by a hold-capital plan, once.
func (s *InvestmentService) ReleaseCapital(ctx context.Context, userID, investmentID int64) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		inv, err := tx.LockInvestment(ctx, investmentID)
		if err != nil {
			return fmt.Errorf("failed to lock investment: %w", err)
		}
		if inv.UserID != userID {
			return fmt.Errorf("investment %d: %w", investmentID, models.ErrNotFound)
		}
		if inv.Status != models.InvestmentClosed || !inv.CapitalHeld.IsPositive() {
			return fmt.Errorf("%w: investment %d holds no capital", models.ErrInvalidState, investmentID)
		}

		entry, err = s.wallets.Credit(ctx, tx, models.Movement{
			UserID:    userID,
			Kind:      models.WalletInterest,
			Amount:    inv.CapitalHeld,
			Category:  models.CategoryCapitalReturn,
			Reference: inv.ReferenceCode,
			Details:   fmt.Sprintf("Held capital released for investment %d", inv.ID),
		})
		if err != nil {
			return err
		}

		inv.CapitalHeld = decimal.Zero
		inv.UpdatedAt = s.now().UTC()
		return tx.UpdateInvestment(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Schedule stores a purchase to be executed later. The balance is not checked or
// touched until the schedule runs.
func (s *InvestmentService) Schedule(ctx context.Context, req models.PurchaseRequest) (*models.ScheduledInvestment, error) {
	plan, err := s.catalog.Plan(ctx, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("plan %d: %w", req.PlanID, err)
	}
	if err := validatePurchase(plan, req); err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, req.UserID); err != nil {
		return nil, fmt.Errorf("user %d: %w", req.UserID, err)
	}

	times := req.ScheduleTimes
	if times <= 0 {
		times = 1
	}
	interval := req.IntervalHours
	if interval <= 0 {
		interval = plan.TermHours
	}
	now := s.now().UTC()

	sched := &models.ScheduledInvestment{
		UserID:         req.UserID,
		PlanID:         plan.ID,
		WalletKind:     req.WalletKind,
		Amount:         req.Amount,
		CompoundCycles: req.CompoundCycles,
		Times:          times,
		RemainingTimes: times,
		IntervalHours:  interval,
		NextRunAt:      now.Add(time.Duration(interval) * time.Hour),
		Status:         models.ScheduleActive,
		CreatedAt:      now,
	}
	err = s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		return tx.InsertSchedule(ctx, sched)
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// RunSchedules executes every schedule due at now through the purchase path.
func (s *InvestmentService) RunSchedules(ctx context.Context, now time.Time) (BatchResult, error) {
	ids, err := s.store.DueScheduleIDs(ctx, now)
	if err != nil {
		return BatchResult{Job: models.JobSchedule}, fmt.Errorf("failed to list due schedules: %w", err)
	}

	return runBatch(ctx, models.JobSchedule, ids, s.workers, s.log, func(ctx context.Context, id int64) (bool, error) {
		return s.materialize(ctx, id, now)
	})
}

// materialize runs one due schedule. A purchase that fails its checks (plan, limits,
// user, balance) is recorded on the schedule and does not consume a run; either way
// next_run_at moves forward, so running it again for the same instant does nothing.
// Errors after the debit are returned and leave the schedule untouched.
func (s *InvestmentService) materialize(ctx context.Context, scheduleID int64, now time.Time) (bool, error) {
	var (
		inv *models.Investment
		ran bool
	)
	err := s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		inv, ran = nil, false

		sched, err := tx.LockSchedule(ctx, scheduleID)
		if err != nil {
			return fmt.Errorf("failed to lock schedule: %w", err)
		}
		if sched.Status != models.ScheduleActive || sched.NextRunAt.After(now) {
			return nil
		}
		ran = true

		req := models.PurchaseRequest{
			UserID:         sched.UserID,
			PlanID:         sched.PlanID,
			Amount:         sched.Amount,
			WalletKind:     sched.WalletKind,
			CompoundCycles: sched.CompoundCycles,
		}
		plan, err := s.catalog.Plan(ctx, sched.PlanID)
		if err == nil {
			err = validatePurchase(plan, req)
		}
		if err == nil {
			if _, err = tx.GetUser(ctx, req.UserID); err != nil {
				err = fmt.Errorf("user %d: %w", req.UserID, err)
			}
		}
		if err == nil {
			inv, err = s.purchaseTx(ctx, tx, plan, req)
			// A short balance is the only failure raised before purchaseTx writes.
			// Anything later rolls the whole unit back, schedule included.
			if err != nil && !errors.Is(err, models.ErrInsufficientBalance) {
				return err
			}
		}

		switch {
		case err == nil:
			sched.RemainingTimes--
			sched.LastError = ""
			if sched.RemainingTimes <= 0 {
				sched.Status = models.ScheduleCompleted
			}
		case models.IsValidation(err) || errors.Is(err, models.ErrNotFound):
			inv = nil
			sched.LastError = err.Error()
		default:
			return err
		}

		sched.NextRunAt = now.Add(time.Duration(sched.IntervalHours) * time.Hour)
		return tx.UpdateSchedule(ctx, sched)
	})
	if err != nil {
		return false, err
	}

	if inv != nil {
		s.afterPurchase(ctx, inv)
	}
	return ran, nil
}

package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type InterestType string

const (
	InterestFixed   InterestType = "fixed"
	InterestPercent InterestType = "percent"
)

type PlanStatus string

const (
	PlanActive   PlanStatus = "active"
	PlanInactive PlanStatus = "inactive"
)

type Plan struct {
	ID               int64           `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	Minimum          decimal.Decimal `db:"minimum" json:"minimum"`
	Maximum          decimal.Decimal `db:"maximum" json:"maximum"`
	FixedAmount      decimal.Decimal `db:"fixed_amount" json:"fixedAmount"` // zero means range mode
	InterestRate     decimal.Decimal `db:"interest_rate" json:"interestRate"`
	InterestType     InterestType    `db:"interest_type" json:"interestType"`
	TermHours        int             `db:"term_hours" json:"termHours"`
	RepeatTime       int             `db:"repeat_time" json:"repeatTime"` // payout cycles, 0 = unbounded
	CapitalBack      bool            `db:"capital_back" json:"capitalBack"`
	Lifetime         bool            `db:"lifetime" json:"lifetime"`
	CompoundInterest bool            `db:"compound_interest" json:"compoundInterest"`
	HoldCapital      bool            `db:"hold_capital" json:"holdCapital"`
	Status           PlanStatus      `db:"status" json:"status"`
}

// Validate checks the configuration rules every stored plan must satisfy.
func (p Plan) Validate() error {
	if p.InterestType != InterestFixed && p.InterestType != InterestPercent {
		return fmt.Errorf("%w: unknown interest type %q", ErrInvalidPlan, p.InterestType)
	}
	if p.InterestRate.IsNegative() {
		return fmt.Errorf("%w: negative interest rate", ErrInvalidPlan)
	}
	if p.TermHours <= 0 {
		return fmt.Errorf("%w: term must be positive", ErrInvalidPlan)
	}
	if !p.Lifetime && p.RepeatTime <= 0 {
		return fmt.Errorf("%w: repeat time required unless lifetime", ErrInvalidPlan)
	}
	if p.FixedAmount.IsZero() && (p.Minimum.IsNegative() || p.Maximum.LessThan(p.Minimum)) {
		return fmt.Errorf("%w: bad amount range", ErrInvalidPlan)
	}
	if p.CompoundInterest {
		if !p.CapitalBack && !p.Lifetime {
			return fmt.Errorf("%w: compounding requires capital back or lifetime", ErrInvalidPlan)
		}
		if p.InterestType == InterestFixed {
			return fmt.Errorf("%w: fixed interest cannot compound", ErrInvalidPlan)
		}
	}
	return nil
}

// AcceptsAmount reports whether amount satisfies the plan limits.
func (p Plan) AcceptsAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	if p.FixedAmount.IsPositive() {
		return amount.Equal(p.FixedAmount)
	}
	return amount.GreaterThanOrEqual(p.Minimum) && amount.LessThanOrEqual(p.Maximum)
}

// CycleInterest is the payout of one accrual cycle for the given principal.
func (p Plan) CycleInterest(amount decimal.Decimal) decimal.Decimal {
	return CycleInterest(p.InterestType, p.InterestRate, amount)
}

func CycleInterest(t InterestType, rate, amount decimal.Decimal) decimal.Decimal {
	if t == InterestFixed {
		return rate
	}
	return Percent(amount, rate)
}

func (p Plan) Term() time.Duration {
	return time.Duration(p.TermHours) * time.Hour
}

type InvestmentStatus string

const (
	InvestmentScheduled InvestmentStatus = "scheduled"
	InvestmentActive    InvestmentStatus = "active"
	InvestmentClosed    InvestmentStatus = "closed"
)

// LifetimePeriod marks an investment that never runs out of cycles.
const LifetimePeriod = -1

type Investment struct {
	ID                      int64            `db:"id" json:"id"`
	UserID                  int64            `db:"user_id" json:"userId"`
	PlanID                  int64            `db:"plan_id" json:"planId"`
	WalletKind              WalletKind       `db:"wallet_kind" json:"walletKind"`
	Amount                  decimal.Decimal  `db:"amount" json:"amount"`
	InterestType            InterestType     `db:"interest_type" json:"interestType"`
	InterestRate            decimal.Decimal  `db:"interest_rate" json:"interestRate"`
	Interest                decimal.Decimal  `db:"interest" json:"interest"`
	Status                  InvestmentStatus `db:"status" json:"status"`
	Period                  int              `db:"period" json:"period"`
	ShouldPay               decimal.Decimal  `db:"should_pay" json:"shouldPay"` // zero for lifetime
	Paid                    decimal.Decimal  `db:"paid" json:"paid"`
	CapitalBack             bool             `db:"capital_back" json:"capitalBack"`
	HoldCapital             bool             `db:"hold_capital" json:"holdCapital"`
	CapitalHeld             decimal.Decimal  `db:"capital_held" json:"capitalHeld"`
	CompoundCyclesUsed      int              `db:"compound_cycles_used" json:"compoundCyclesUsed"`
	CompoundCyclesRemaining int              `db:"compound_cycles_remaining" json:"compoundCyclesRemaining"`
	TermHours               int              `db:"term_hours" json:"termHours"`
	LastCycle               int64            `db:"last_cycle" json:"lastCycle"`
	NextAccrualAt           time.Time        `db:"next_accrual_at" json:"nextAccrualAt"`
	ReferenceCode           string           `db:"reference_code" json:"referenceCode"`
	CreatedAt               time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt               time.Time        `db:"updated_at" json:"updatedAt"`
}

func (i Investment) Lifetime() bool {
	return i.Period == LifetimePeriod
}

// Due reports whether the investment should accrue for cycle at now.
func (i Investment) Due(cycle int64, now time.Time) bool {
	return i.Status == InvestmentActive && i.LastCycle < cycle && !i.NextAccrualAt.After(now)
}

type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "active"
	ScheduleCompleted ScheduleStatus = "completed"
)

// ScheduledInvestment is a purchase persisted for later execution; nothing is debited until it runs.
type ScheduledInvestment struct {
	ID             int64           `db:"id" json:"id"`
	UserID         int64           `db:"user_id" json:"userId"`
	PlanID         int64           `db:"plan_id" json:"planId"`
	WalletKind     WalletKind      `db:"wallet_kind" json:"walletKind"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	CompoundCycles int             `db:"compound_cycles" json:"compoundCycles"`
	Times          int             `db:"times" json:"times"`
	RemainingTimes int             `db:"remaining_times" json:"remainingTimes"`
	IntervalHours  int             `db:"interval_hours" json:"intervalHours"`
	NextRunAt      time.Time       `db:"next_run_at" json:"nextRunAt"`
	Status         ScheduleStatus  `db:"status" json:"status"`
	LastError      string          `db:"last_error" json:"lastError,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}

type PurchaseRequest struct {
	UserID         int64           `json:"-"`
	PlanID         int64           `json:"planId" validate:"required,gt=0"`
	Amount         decimal.Decimal `json:"amount"`
	WalletKind     WalletKind      `json:"wallet" validate:"required,oneof=deposit interest"`
	CompoundCycles int             `json:"compoundCycles" validate:"gte=0"`
	Schedule       bool            `json:"schedule"`
	ScheduleTimes  int             `json:"scheduleTimes" validate:"gte=0"`
	IntervalHours  int             `json:"intervalHours" validate:"gte=0"`
}

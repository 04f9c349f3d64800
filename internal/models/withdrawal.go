package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus keeps the stored integer codes: draft 0, approved 1, pending 2, rejected 3.
type WithdrawalStatus int

const (
	WithdrawalDraft    WithdrawalStatus = 0
	WithdrawalApproved WithdrawalStatus = 1
	WithdrawalPending  WithdrawalStatus = 2
	WithdrawalRejected WithdrawalStatus = 3
)

func (s WithdrawalStatus) String() string {
	switch s {
	case WithdrawalDraft:
		return "draft"
	case WithdrawalApproved:
		return "approved"
	case WithdrawalPending:
		return "pending"
	case WithdrawalRejected:
		return "rejected"
	}
	return "unknown"
}

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalDraft:   {WithdrawalPending},
	WithdrawalPending: {WithdrawalApproved, WithdrawalRejected},
}

func (s WithdrawalStatus) CanTransition(to WithdrawalStatus) bool {
	for _, next := range withdrawalTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type WithdrawMethod struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Currency      string          `db:"currency" json:"currency"`
	MinLimit      decimal.Decimal `db:"min_limit" json:"minLimit"`
	MaxLimit      decimal.Decimal `db:"max_limit" json:"maxLimit"`
	FixedCharge   decimal.Decimal `db:"fixed_charge" json:"fixedCharge"`
	PercentCharge decimal.Decimal `db:"percent_charge" json:"percentCharge"`
	Rate          decimal.Decimal `db:"rate" json:"rate"`
	Active        bool            `db:"active" json:"active"`
}

// Charge is fixed_charge + amount*percent_charge/100.
func (m WithdrawMethod) Charge(amount decimal.Decimal) decimal.Decimal {
	return m.FixedCharge.Add(Percent(amount, m.PercentCharge))
}

func (m WithdrawMethod) InLimits(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.GreaterThanOrEqual(m.MinLimit) && amount.LessThanOrEqual(m.MaxLimit)
}

type Withdrawal struct {
	ID            int64            `db:"id" json:"id"`
	UserID        int64            `db:"user_id" json:"userId"`
	MethodID      int64            `db:"method_id" json:"methodId"`
	Amount        decimal.Decimal  `db:"amount" json:"amount"`
	Currency      string           `db:"currency" json:"currency"`
	Rate          decimal.Decimal  `db:"rate" json:"rate"`
	Charge        decimal.Decimal  `db:"charge" json:"charge"`
	AfterCharge   decimal.Decimal  `db:"after_charge" json:"afterCharge"`
	FinalAmount   decimal.Decimal  `db:"final_amount" json:"finalAmount"`
	Status        WithdrawalStatus `db:"status" json:"status"`
	FormData      string           `db:"form_data" json:"formData,omitempty"`
	AdminFeedback string           `db:"admin_feedback" json:"adminFeedback,omitempty"`
	ReferenceCode string           `db:"reference_code" json:"referenceCode"`
	CreatedAt     time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositStatus keeps the stored integer codes: draft 0, approved 1, pending 2, rejected 3.
type DepositStatus int

const (
	DepositDraft    DepositStatus = 0
	DepositApproved DepositStatus = 1
	DepositPending  DepositStatus = 2
	DepositRejected DepositStatus = 3
)

func (s DepositStatus) String() string {
	switch s {
	case DepositDraft:
		return "draft"
	case DepositApproved:
		return "approved"
	case DepositPending:
		return "pending"
	case DepositRejected:
		return "rejected"
	}
	return "unknown"
}

var depositTransitions = map[DepositStatus][]DepositStatus{
	DepositDraft:   {DepositPending, DepositApproved},
	DepositPending: {DepositApproved, DepositRejected},
}

func (s DepositStatus) CanTransition(to DepositStatus) bool {
	for _, next := range depositTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type DepositGateway struct {
	ID            int64           `db:"id" json:"id"`
	Code          string          `db:"code" json:"code"`
	Currency      string          `db:"currency" json:"currency"`
	MinLimit      decimal.Decimal `db:"min_limit" json:"minLimit"`
	MaxLimit      decimal.Decimal `db:"max_limit" json:"maxLimit"`
	FixedCharge   decimal.Decimal `db:"fixed_charge" json:"fixedCharge"`
	PercentCharge decimal.Decimal `db:"percent_charge" json:"percentCharge"`
	Rate          decimal.Decimal `db:"rate" json:"rate"`
	Active        bool            `db:"active" json:"active"`
}

type Deposit struct {
	ID            int64           `db:"id" json:"id"`
	UserID        int64           `db:"user_id" json:"userId"`
	GatewayID     int64           `db:"gateway_id" json:"gatewayId"`
	MethodCode    string          `db:"method_code" json:"methodCode"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Currency      string          `db:"currency" json:"currency"`
	Rate          decimal.Decimal `db:"rate" json:"rate"`
	Charge        decimal.Decimal `db:"charge" json:"charge"`
	FinalAmount   decimal.Decimal `db:"final_amount" json:"finalAmount"` // payable in gateway currency
	Status        DepositStatus   `db:"status" json:"status"`
	AdminFeedback string          `db:"admin_feedback" json:"adminFeedback,omitempty"`
	ReferenceCode string          `db:"reference_code" json:"referenceCode"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

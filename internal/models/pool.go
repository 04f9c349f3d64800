package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Pool struct {
	ID             int64           `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Capacity       decimal.Decimal `db:"capacity" json:"capacity"`
	InvestedAmount decimal.Decimal `db:"invested_amount" json:"investedAmount"`
	StartDate      time.Time       `db:"start_date" json:"startDate"`
	EndDate        time.Time       `db:"end_date" json:"endDate"`
	InterestRange  string          `db:"interest_range" json:"interestRange"`
	ShareInterest  bool            `db:"share_interest" json:"shareInterest"` // interest dispatched
}

// Open reports whether investments are still accepted: the window closes at StartDate.
func (p Pool) Open(now time.Time) bool {
	return now.Before(p.StartDate)
}

func (p Pool) Available() decimal.Decimal {
	return p.Capacity.Sub(p.InvestedAmount)
}

type PoolInvestmentStatus string

const (
	PoolInvestmentRunning   PoolInvestmentStatus = "running"
	PoolInvestmentCompleted PoolInvestmentStatus = "completed"
)

// PoolInvestment is one user's aggregate stake in a pool.
type PoolInvestment struct {
	PoolID       int64                `db:"pool_id" json:"poolId"`
	UserID       int64                `db:"user_id" json:"userId"`
	InvestAmount decimal.Decimal      `db:"invest_amount" json:"investAmount"`
	Status       PoolInvestmentStatus `db:"status" json:"status"`
	UpdatedAt    time.Time            `db:"updated_at" json:"updatedAt"`
}

type StakingPlan struct {
	ID              int64           `db:"id" json:"id"`
	Days            int             `db:"days" json:"days"`
	InterestPercent decimal.Decimal `db:"interest_percent" json:"interestPercent"`
	MinAmount       decimal.Decimal `db:"min_amount" json:"minAmount"`
	MaxAmount       decimal.Decimal `db:"max_amount" json:"maxAmount"`
	Active          bool            `db:"active" json:"active"`
}

type StakingStatus string

const (
	StakingActive  StakingStatus = "active"
	StakingMatured StakingStatus = "matured"
)

type StakingInvestment struct {
	ID            int64           `db:"id" json:"id"`
	UserID        int64           `db:"user_id" json:"userId"`
	StakingID     int64           `db:"staking_id" json:"stakingId"`
	InvestAmount  decimal.Decimal `db:"invest_amount" json:"investAmount"`
	Interest      decimal.Decimal `db:"interest" json:"interest"`
	EndAt         time.Time       `db:"end_at" json:"endAt"`
	Status        StakingStatus   `db:"status" json:"status"`
	ReferenceCode string          `db:"reference_code" json:"referenceCode"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

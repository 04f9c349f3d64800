package models

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

// User carries the counters the ledger core maintains; identity lives elsewhere.
type User struct {
	ID           int64           `db:"id" json:"id"`
	ReferrerID   sql.NullInt64   `db:"referrer_id" json:"-"`
	TotalInvest  decimal.Decimal `db:"total_invest" json:"totalInvest"`
	TeamInvest   decimal.Decimal `db:"team_invest" json:"teamInvest"`
	RankingLevel int             `db:"ranking_level" json:"rankingLevel"`
}

type CommissionType string

const (
	CommissionDeposit      CommissionType = "deposit"
	CommissionInvest       CommissionType = "invest"
	CommissionInvestReturn CommissionType = "invest_return"
)

type ReferralRule struct {
	Level          int             `db:"level" json:"level"`
	Percent        decimal.Decimal `db:"percent" json:"percent"`
	CommissionType CommissionType  `db:"commission_type" json:"commissionType"`
}

type UserRanking struct {
	Level             int             `db:"level" json:"level"`
	Name              string          `db:"name" json:"name"`
	MinimumInvest     decimal.Decimal `db:"minimum_invest" json:"minimumInvest"`
	MinReferralInvest decimal.Decimal `db:"min_referral_invest" json:"minReferralInvest"`
	MinReferral       int             `db:"min_referral" json:"minReferral"`
	Bonus             decimal.Decimal `db:"bonus" json:"bonus"`
}

// RankingCounters are the stored totals a tier is derived from.
type RankingCounters struct {
	TotalInvest     decimal.Decimal `json:"totalInvest"`
	TeamInvest      decimal.Decimal `json:"teamInvest"`
	ActiveReferrals int             `json:"activeReferrals"`
}

func (r UserRanking) SatisfiedBy(c RankingCounters) bool {
	return c.TotalInvest.GreaterThanOrEqual(r.MinimumInvest) &&
		c.TeamInvest.GreaterThanOrEqual(r.MinReferralInvest) &&
		c.ActiveReferrals >= r.MinReferral
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WalletKind string

const (
	WalletDeposit  WalletKind = "deposit"
	WalletInterest WalletKind = "interest"
)

func (k WalletKind) Valid() bool {
	return k == WalletDeposit || k == WalletInterest
}

type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Ledger entry categories
const (
	CategoryDeposit            = "deposit"
	CategoryInvest             = "invest"
	CategoryInvestCompound     = "invest_compound"
	CategoryInterest           = "interest"
	CategoryCapitalReturn      = "capital_return"
	CategoryWithdraw           = "withdraw"
	CategoryWithdrawReject     = "withdraw_reject"
	CategoryPoolInvest         = "pool_invest"
	CategoryPoolReturn         = "pool_return"
	CategoryStakingInvest      = "staking_invest"
	CategoryStakingReturn      = "staking_return"
	CategoryBalanceTransfer    = "balance_transfer"
	CategoryReferralCommission = "referral_commission"
	CategoryRankingBonus       = "ranking_bonus"
	CategoryBalanceAdd         = "balance_add"
	CategoryBalanceSubtract    = "balance_subtract"
)

// Database model
type Wallet struct {
	UserID    int64           `db:"user_id" json:"userId"`
	Kind      WalletKind      `db:"kind" json:"kind"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// LedgerEntry is immutable once written.
type LedgerEntry struct {
	ID            int64           `db:"id" json:"id"`
	UserID        int64           `db:"user_id" json:"userId"`
	WalletKind    WalletKind      `db:"wallet_kind" json:"walletKind"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Direction     Direction       `db:"direction" json:"direction"`
	PostBalance   decimal.Decimal `db:"post_balance" json:"postBalance"`
	Charge        decimal.Decimal `db:"charge" json:"charge"`
	Category      string          `db:"category" json:"category"`
	ReferenceCode string          `db:"reference_code" json:"referenceCode"`
	Details       string          `db:"details" json:"details"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// Signed returns the amount with the sign of its direction.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.Direction == DirectionDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// Movement describes one balance change requested from the wallet service.
type Movement struct {
	UserID    int64
	Kind      WalletKind
	Amount    decimal.Decimal
	Charge    decimal.Decimal
	Category  string
	Reference string
	Details   string
}

type WalletBalanceResponse struct {
	UserID  int64           `json:"userId"`
	Kind    WalletKind      `json:"kind"`
	Balance decimal.Decimal `json:"balance"`
}

var hundred = decimal.NewFromInt(100)

// Percent returns amount*percent/100 rounded to the ledger precision.
func Percent(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred).Round(AmountPrecision)
}

// AmountPrecision is the number of decimal places kept for money.
const AmountPrecision = 8

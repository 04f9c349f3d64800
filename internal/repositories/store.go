// Package repositories defines the storage contract shared by the postgres and in-memory stores.
package repositories

import (
	"context"
	"time"

	"hyip-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// Store exposes committed reads and opens transactions.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)

	GetWallet(ctx context.Context, userID int64, kind models.WalletKind) (*models.Wallet, error)
	ListWallets(ctx context.Context) ([]models.Wallet, error)
	ListEntries(ctx context.Context, userID int64, kind models.WalletKind) ([]models.LedgerEntry, error)

	GetUser(ctx context.Context, userID int64) (*models.User, error)
	CountActiveReferrals(ctx context.Context, userID int64) (int, error)

	GetPlan(ctx context.Context, planID int64) (*models.Plan, error)
	GetWithdrawMethod(ctx context.Context, methodID int64) (*models.WithdrawMethod, error)
	GetDepositGateway(ctx context.Context, gatewayID int64) (*models.DepositGateway, error)
	GetStakingPlan(ctx context.Context, stakingID int64) (*models.StakingPlan, error)
	GetPool(ctx context.Context, poolID int64) (*models.Pool, error)
	ListReferralRules(ctx context.Context, commissionType models.CommissionType) ([]models.ReferralRule, error)
	ListRankings(ctx context.Context) ([]models.UserRanking, error)

	GetInvestment(ctx context.Context, investmentID int64) (*models.Investment, error)
	GetWithdrawal(ctx context.Context, withdrawalID int64) (*models.Withdrawal, error)
	GetDeposit(ctx context.Context, depositID int64) (*models.Deposit, error)

	DueInvestmentIDs(ctx context.Context, cycle int64, now time.Time) ([]int64, error)
	DueScheduleIDs(ctx context.Context, now time.Time) ([]int64, error)
	MaturedStakeIDs(ctx context.Context, now time.Time) ([]int64, error)
}

// Tx is one atomic unit of work. Lock* methods hold the row until Commit or Rollback
// and return models.ErrBusy when the row is held by another transaction.
type Tx interface {
	Commit() error
	Rollback() error

	// LockWallet creates the wallet with a zero balance when it does not exist yet.
	LockWallet(ctx context.Context, userID int64, kind models.WalletKind) (*models.Wallet, error)
	UpdateWalletBalance(ctx context.Context, userID int64, kind models.WalletKind, balance decimal.Decimal) error
	// InsertLedgerEntry assigns entry.ID. Entries are never updated or deleted.
	InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	ListEntries(ctx context.Context, userID int64, kind models.WalletKind) ([]models.LedgerEntry, error)

	InsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	LockUser(ctx context.Context, userID int64) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	AddTotalInvest(ctx context.Context, userID int64, amount decimal.Decimal) error
	AddTeamInvest(ctx context.Context, userIDs []int64, amount decimal.Decimal) error

	InsertPlan(ctx context.Context, plan *models.Plan) error

	InsertInvestment(ctx context.Context, inv *models.Investment) error
	LockInvestment(ctx context.Context, investmentID int64) (*models.Investment, error)
	UpdateInvestment(ctx context.Context, inv *models.Investment) error

	InsertSchedule(ctx context.Context, s *models.ScheduledInvestment) error
	LockSchedule(ctx context.Context, scheduleID int64) (*models.ScheduledInvestment, error)
	UpdateSchedule(ctx context.Context, s *models.ScheduledInvestment) error

	InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error
	LockWithdrawal(ctx context.Context, withdrawalID int64) (*models.Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, w *models.Withdrawal) error

	InsertDeposit(ctx context.Context, d *models.Deposit) error
	LockDeposit(ctx context.Context, depositID int64) (*models.Deposit, error)
	UpdateDeposit(ctx context.Context, d *models.Deposit) error

	LockPool(ctx context.Context, poolID int64) (*models.Pool, error)
	UpdatePool(ctx context.Context, pool *models.Pool) error
	// LockPoolInvestment returns models.ErrNotFound when the user has no stake yet.
	LockPoolInvestment(ctx context.Context, poolID, userID int64) (*models.PoolInvestment, error)
	SavePoolInvestment(ctx context.Context, pi *models.PoolInvestment) error
	ListPoolInvestments(ctx context.Context, poolID int64) ([]models.PoolInvestment, error)

	InsertStake(ctx context.Context, s *models.StakingInvestment) error
	LockStake(ctx context.Context, stakeID int64) (*models.StakingInvestment, error)
	UpdateStake(ctx context.Context, s *models.StakingInvestment) error
}

package postgresrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	walletColumns     = `user_id, kind, balance, updated_at`
	entryColumns      = `id, user_id, wallet_kind, amount, direction, post_balance, charge, category, reference_code, details, created_at`
	userColumns       = `id, referrer_id, total_invest, team_invest, ranking_level`
	planColumns       = `id, name, minimum, maximum, fixed_amount, interest_rate, interest_type, term_hours, repeat_time, capital_back, lifetime, compound_interest, hold_capital, status`
	investmentColumns = `id, user_id, plan_id, wallet_kind, amount, interest_type, interest_rate, interest, status, period, should_pay, paid, capital_back, hold_capital, capital_held, compound_cycles_used, compound_cycles_remaining, term_hours, last_cycle, next_accrual_at, reference_code, created_at, updated_at`
	scheduleColumns   = `id, user_id, plan_id, wallet_kind, amount, compound_cycles, times, remaining_times, interval_hours, next_run_at, status, last_error, created_at`
	withdrawalColumns = `id, user_id, method_id, amount, currency, rate, charge, after_charge, final_amount, status, form_data, admin_feedback, reference_code, created_at, updated_at`
	depositColumns    = `id, user_id, gateway_id, method_code, amount, currency, rate, charge, final_amount, status, admin_feedback, reference_code, created_at, updated_at`
	poolColumns       = `id, name, capacity, invested_amount, start_date, end_date, interest_range, share_interest`
	poolInvestColumns = `pool_id, user_id, invest_amount, status, updated_at`
	stakeColumns      = `id, user_id, staking_id, invest_amount, interest, end_at, status, reference_code, created_at`
)

// Postgres error codes that mean another transaction holds the row.
const (
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// A row referring to a user or catalog entry that does not exist.
const codeForeignKeyViolation = "23503"

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

var _ repositories.Store = (*Store)(nil)

// BeginTx starts a transaction and returns a transactional repository
func (r *Store) BeginTx(ctx context.Context) (repositories.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, mapError(err, "begin transaction")
	}
	return NewTxRepo(tx), nil
}

func (r *Store) GetWallet(ctx context.Context, userID int64, kind models.WalletKind) (*models.Wallet, error) {
	var w models.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND kind = $2`
	if err := r.db.GetContext(ctx, &w, query, userID, kind); err != nil {
		return nil, mapError(err, "get wallet")
	}
	return &w, nil
}

func (r *Store) ListWallets(ctx context.Context) ([]models.Wallet, error) {
	var wallets []models.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets ORDER BY user_id, kind`
	if err := r.db.SelectContext(ctx, &wallets, query); err != nil {
		return nil, mapError(err, "list wallets")
	}
	return wallets, nil
}

func (r *Store) ListEntries(ctx context.Context, userID int64, kind models.WalletKind) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE user_id = $1 AND wallet_kind = $2 ORDER BY id ASC`
	if err := r.db.SelectContext(ctx, &entries, query, userID, kind); err != nil {
		return nil, mapError(err, "list ledger entries")
	}
	return entries, nil
}

func (r *Store) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var u models.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID); err != nil {
		return nil, mapError(err, "get user")
	}
	return &u, nil
}

func (r *Store) CountActiveReferrals(ctx context.Context, userID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE referrer_id = $1 AND total_invest > 0`
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, mapError(err, "count referrals")
	}
	return count, nil
}

func (r *Store) GetPlan(ctx context.Context, planID int64) (*models.Plan, error) {
	var p models.Plan
	if err := r.db.GetContext(ctx, &p, `SELECT `+planColumns+` FROM plans WHERE id = $1`, planID); err != nil {
		return nil, mapError(err, "get plan")
	}
	return &p, nil
}

func (r *Store) GetWithdrawMethod(ctx context.Context, methodID int64) (*models.WithdrawMethod, error) {
	var m models.WithdrawMethod
	query := `SELECT id, name, currency, min_limit, max_limit, fixed_charge, percent_charge, rate, active
		FROM withdraw_methods WHERE id = $1`
	if err := r.db.GetContext(ctx, &m, query, methodID); err != nil {
		return nil, mapError(err, "get withdraw method")
	}
	return &m, nil
}

func (r *Store) GetDepositGateway(ctx context.Context, gatewayID int64) (*models.DepositGateway, error) {
	var g models.DepositGateway
	query := `SELECT id, code, currency, min_limit, max_limit, fixed_charge, percent_charge, rate, active
		FROM deposit_gateways WHERE id = $1`
	if err := r.db.GetContext(ctx, &g, query, gatewayID); err != nil {
		return nil, mapError(err, "get deposit gateway")
	}
	return &g, nil
}

func (r *Store) GetStakingPlan(ctx context.Context, stakingID int64) (*models.StakingPlan, error) {
	var p models.StakingPlan
	query := `SELECT id, days, interest_percent, min_amount, max_amount, active FROM staking_plans WHERE id = $1`
	if err := r.db.GetContext(ctx, &p, query, stakingID); err != nil {
		return nil, mapError(err, "get staking plan")
	}
	return &p, nil
}

func (r *Store) GetPool(ctx context.Context, poolID int64) (*models.Pool, error) {
	var p models.Pool
	if err := r.db.GetContext(ctx, &p, `SELECT `+poolColumns+` FROM pools WHERE id = $1`, poolID); err != nil {
		return nil, mapError(err, "get pool")
	}
	return &p, nil
}

func (r *Store) ListReferralRules(ctx context.Context, commissionType models.CommissionType) ([]models.ReferralRule, error) {
	var rules []models.ReferralRule
	query := `SELECT level, percent, commission_type FROM referral_rules WHERE commission_type = $1 ORDER BY level ASC`
	if err := r.db.SelectContext(ctx, &rules, query, commissionType); err != nil {
		return nil, mapError(err, "list referral rules")
	}
	return rules, nil
}

func (r *Store) ListRankings(ctx context.Context) ([]models.UserRanking, error) {
	var rankings []models.UserRanking
	query := `SELECT level, name, minimum_invest, min_referral_invest, min_referral, bonus FROM user_rankings ORDER BY level ASC`
	if err := r.db.SelectContext(ctx, &rankings, query); err != nil {
		return nil, mapError(err, "list rankings")
	}
	return rankings, nil
}

func (r *Store) GetInvestment(ctx context.Context, investmentID int64) (*models.Investment, error) {
	var inv models.Investment
	if err := r.db.GetContext(ctx, &inv, `SELECT `+investmentColumns+` FROM investments WHERE id = $1`, investmentID); err != nil {
		return nil, mapError(err, "get investment")
	}
	return &inv, nil
}

func (r *Store) GetWithdrawal(ctx context.Context, withdrawalID int64) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.GetContext(ctx, &w, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, withdrawalID); err != nil {
		return nil, mapError(err, "get withdrawal")
	}
	return &w, nil
}

func (r *Store) GetDeposit(ctx context.Context, depositID int64) (*models.Deposit, error) {
	var d models.Deposit
	if err := r.db.GetContext(ctx, &d, `SELECT `+depositColumns+` FROM deposits WHERE id = $1`, depositID); err != nil {
		return nil, mapError(err, "get deposit")
	}
	return &d, nil
}

func (r *Store) DueInvestmentIDs(ctx context.Context, cycle int64, now time.Time) ([]int64, error) {
	var ids []int64
	query := `SELECT id FROM investments
		WHERE status = $1 AND last_cycle < $2 AND next_accrual_at <= $3
		ORDER BY id ASC`
	if err := r.db.SelectContext(ctx, &ids, query, models.InvestmentActive, cycle, now); err != nil {
		return nil, mapError(err, "list due investments")
	}
	return ids, nil
}

func (r *Store) DueScheduleIDs(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	query := `SELECT id FROM scheduled_investments WHERE status = $1 AND next_run_at <= $2 ORDER BY id ASC`
	if err := r.db.SelectContext(ctx, &ids, query, models.ScheduleActive, now); err != nil {
		return nil, mapError(err, "list due schedules")
	}
	return ids, nil
}

func (r *Store) MaturedStakeIDs(ctx context.Context, now time.Time) ([]int64, error) {
	var ids []int64
	query := `SELECT id FROM staking_investments WHERE status = $1 AND end_at <= $2 ORDER BY id ASC`
	if err := r.db.SelectContext(ctx, &ids, query, models.StakingActive, now); err != nil {
		return nil, mapError(err, "list matured stakes")
	}
	return ids, nil
}

// mapError translates driver errors into the models error taxonomy.
func mapError(err error, action string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", action, models.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%s: %w", action, models.ErrBusy)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %s: %w", action, pqErr.Constraint, models.ErrNotFound)
		}
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

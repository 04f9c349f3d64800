package postgresrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// TxRepo runs every statement inside one database transaction. Row locks use NOWAIT so a
// contended wallet surfaces as models.ErrBusy instead of queueing behind another request.
type TxRepo struct {
	tx *sqlx.Tx
}

func NewTxRepo(tx *sqlx.Tx) *TxRepo {
	return &TxRepo{tx: tx}
}

var _ repositories.Tx = (*TxRepo)(nil)

func (r *TxRepo) Commit() error {
	if err := r.tx.Commit(); err != nil {
		return mapError(err, "commit transaction")
	}
	return nil
}

func (r *TxRepo) Rollback() error {
	return r.tx.Rollback()
}

func (r *TxRepo) LockWallet(ctx context.Context, userID int64, kind models.WalletKind) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND kind = $2 FOR UPDATE NOWAIT`
	err := r.tx.GetContext(ctx, &wallet, query, userID, kind)
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, mapError(err, "lock wallet")
	}

	// First movement for this wallet: create it inside the same transaction.
	insert := `INSERT INTO wallets (user_id, kind, balance, updated_at) VALUES ($1, $2, 0, NOW())
		ON CONFLICT (user_id, kind) DO NOTHING`
	if _, err := r.tx.ExecContext(ctx, insert, userID, kind); err != nil {
		return nil, mapError(err, "create wallet")
	}
	if err := r.tx.GetContext(ctx, &wallet, query, userID, kind); err != nil {
		return nil, mapError(err, "lock wallet")
	}
	return &wallet, nil
}

func (r *TxRepo) UpdateWalletBalance(ctx context.Context, userID int64, kind models.WalletKind, balance decimal.Decimal) error {
	query := `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE user_id = $2 AND kind = $3`
	return r.execOne(ctx, "update wallet balance", query, balance, userID, kind)
}

func (r *TxRepo) InsertLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	query := `INSERT INTO ledger_entries
		(user_id, wallet_kind, amount, direction, post_balance, charge, category, reference_code, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	err := r.tx.QueryRowxContext(ctx, query,
		e.UserID, e.WalletKind, e.Amount, e.Direction, e.PostBalance, e.Charge,
		e.Category, e.ReferenceCode, e.Details, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return mapError(err, "insert ledger entry")
	}
	return nil
}

func (r *TxRepo) ListEntries(ctx context.Context, userID int64, kind models.WalletKind) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE user_id = $1 AND wallet_kind = $2 ORDER BY id ASC`
	if err := r.tx.SelectContext(ctx, &entries, query, userID, kind); err != nil {
		return nil, mapError(err, "list ledger entries")
	}
	return entries, nil
}

func (r *TxRepo) InsertUser(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.tx.ExecContext(ctx, query, u.ID, u.ReferrerID, u.TotalInvest, u.TeamInvest, u.RankingLevel); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("user %d: %w", u.ID, models.ErrInvalidState)
		}
		return mapError(err, "insert user")
	}
	return nil
}

func (r *TxRepo) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var u models.User
	if err := r.tx.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID); err != nil {
		return nil, mapError(err, "get user")
	}
	return &u, nil
}

func (r *TxRepo) LockUser(ctx context.Context, userID int64) (*models.User, error) {
	var u models.User
	if err := r.tx.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE NOWAIT`, userID); err != nil {
		return nil, mapError(err, "lock user")
	}
	return &u, nil
}

func (r *TxRepo) UpdateUser(ctx context.Context, u *models.User) error {
	query := `UPDATE users SET total_invest = $1, team_invest = $2, ranking_level = $3 WHERE id = $4`
	return r.execOne(ctx, "update user", query, u.TotalInvest, u.TeamInvest, u.RankingLevel, u.ID)
}

func (r *TxRepo) AddTotalInvest(ctx context.Context, userID int64, amount decimal.Decimal) error {
	return r.execOne(ctx, "add total invest", `UPDATE users SET total_invest = total_invest + $1 WHERE id = $2`, amount, userID)
}

func (r *TxRepo) AddTeamInvest(ctx context.Context, userIDs []int64, amount decimal.Decimal) error {
	if len(userIDs) == 0 {
		return nil
	}
	query := `UPDATE users SET team_invest = team_invest + $1 WHERE id = ANY($2)`
	if _, err := r.tx.ExecContext(ctx, query, amount, pq.Array(userIDs)); err != nil {
		return mapError(err, "add team invest")
	}
	return nil
}

func (r *TxRepo) InsertPlan(ctx context.Context, p *models.Plan) error {
	query := `INSERT INTO plans
		(name, minimum, maximum, fixed_amount, interest_rate, interest_type, term_hours, repeat_time,
		 capital_back, lifetime, compound_interest, hold_capital, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	err := r.tx.QueryRowxContext(ctx, query,
		p.Name, p.Minimum, p.Maximum, p.FixedAmount, p.InterestRate, p.InterestType, p.TermHours, p.RepeatTime,
		p.CapitalBack, p.Lifetime, p.CompoundInterest, p.HoldCapital, p.Status,
	).Scan(&p.ID)
	if err != nil {
		return mapError(err, "insert plan")
	}
	return nil
}

func (r *TxRepo) InsertInvestment(ctx context.Context, i *models.Investment) error {
	query := `INSERT INTO investments
		(user_id, plan_id, wallet_kind, amount, interest_type, interest_rate, interest, status, period, should_pay,
		 paid, capital_back, hold_capital, capital_held, compound_cycles_used, compound_cycles_remaining,
		 term_hours, last_cycle, next_accrual_at, reference_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id`
	err := r.tx.QueryRowxContext(ctx, query,
		i.UserID, i.PlanID, i.WalletKind, i.Amount, i.InterestType, i.InterestRate, i.Interest, i.Status, i.Period,
		i.ShouldPay, i.Paid, i.CapitalBack, i.HoldCapital, i.CapitalHeld, i.CompoundCyclesUsed,
		i.CompoundCyclesRemaining, i.TermHours, i.LastCycle, i.NextAccrualAt, i.ReferenceCode, i.CreatedAt, i.UpdatedAt,
	).Scan(&i.ID)
	if err != nil {
		return mapError(err, "insert investment")
	}
	return nil
}

func (r *TxRepo) LockInvestment(ctx context.Context, investmentID int64) (*models.Investment, error) {
	var inv models.Investment
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1 FOR UPDATE NOWAIT`
	if err := r.tx.GetContext(ctx, &inv, query, investmentID); err != nil {
		return nil, mapError(err, "lock investment")
	}
	return &inv, nil
}

func (r *TxRepo) UpdateInvestment(ctx context.Context, i *models.Investment) error {
	query := `UPDATE investments SET
		amount = $1, interest = $2, status = $3, period = $4, should_pay = $5, paid = $6, capital_held = $7,
		compound_cycles_used = $8, compound_cycles_remaining = $9, last_cycle = $10, next_accrual_at = $11,
		updated_at = $12
		WHERE id = $13`
	return r.execOne(ctx, "update investment", query,
		i.Amount, i.Interest, i.Status, i.Period, i.ShouldPay, i.Paid, i.CapitalHeld,
		i.CompoundCyclesUsed, i.CompoundCyclesRemaining, i.LastCycle, i.NextAccrualAt, i.UpdatedAt, i.ID,
	)
}

func (r *TxRepo) InsertSchedule(ctx context.Context, s *models.ScheduledInvestment) error {
	query := `INSERT INTO scheduled_investments
		(user_id, plan_id, wallet_kind, amount, compound_cycles, times, remaining_times, interval_hours,
		 next_run_at, status, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	err := r.tx.QueryRowxContext(ctx, query,
		s.UserID, s.PlanID, s.WalletKind, s.Amount, s.CompoundCycles, s.Times, s.RemainingTimes, s.IntervalHours,
		s.NextRunAt, s.Status, s.LastError, s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		return mapError(err, "insert schedule")
	}
	return nil
}

func (r *TxRepo) LockSchedule(ctx context.Context, scheduleID int64) (*models.ScheduledInvestment, error) {
	var s models.ScheduledInvestment
	query := `SELECT ` + scheduleColumns + ` FROM scheduled_investments WHERE id = $1 FOR UPDATE NOWAIT`
	if err := r.tx.GetContext(ctx, &s, query, scheduleID); err != nil {
		return nil, mapError(err, "lock schedule")
	}
	return &s, nil
}

func (r *TxRepo) UpdateSchedule(ctx context.Context, s *models.ScheduledInvestment) error {
	query := `UPDATE scheduled_investments SET remaining_times = $1, next_run_at = $2, status = $3, last_error = $4
		WHERE id = $5`
	return r.execOne(ctx, "update schedule", query, s.RemainingTimes, s.NextRunAt, s.Status, s.LastError, s.ID)
}

func (r *TxRepo) InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	query := `INSERT INTO withdrawals
		(user_id, method_id, amount, currency, rate, charge, after_charge, final_amount, status, form_data,
		 admin_feedback, reference_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`
	err := r.tx.QueryRowxContext(ctx, query,
		w.UserID, w.MethodID, w.Amount, w.Currency, w.Rate, w.Charge, w.AfterCharge, w.FinalAmount, w.Status,
		w.FormData, w.AdminFeedback, w.ReferenceCode, w.CreatedAt, w.UpdatedAt,
	).Scan(&w.ID)
	if err != nil {
		return mapError(err, "insert withdrawal")
	}
	return nil
}

func (r *TxRepo) LockWithdrawal(ctx context.Context, withdrawalID int64) (*models.Withdrawal, error) {
	var w models.Withdrawal
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1 FOR UPDATE NOWAIT`
	if err := r.tx.GetContext(ctx, &w, query, withdrawalID); err != nil {
		return nil, mapError(err, "lock withdrawal")
	}
	return &w, nil
}

func (r *TxRepo) UpdateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	query := `UPDATE withdrawals SET status = $1, form_data = $2, admin_feedback = $3, updated_at = $4 WHERE id = $5`
	return r.execOne(ctx, "update withdrawal", query, w.Status, w.FormData, w.AdminFeedback, w.UpdatedAt, w.ID)
}

func (r *TxRepo) InsertDeposit(ctx context.Context, d *models.Deposit) error {
	query := `INSERT INTO deposits
		(user_id, gateway_id, method_code, amount, currency, rate, charge, final_amount, status, admin_feedback,
		 reference_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	err := r.tx.QueryRowxContext(ctx, query,
		d.UserID, d.GatewayID, d.MethodCode, d.Amount, d.Currency, d.Rate, d.Charge, d.FinalAmount, d.Status,
		d.AdminFeedback, d.ReferenceCode, d.CreatedAt, d.UpdatedAt,
	).Scan(&d.ID)
	if err != nil {
		return mapError(err, "insert deposit")
	}
	return nil
}

func (r *TxRepo) LockDeposit(ctx context.Context, depositID int64) (*models.Deposit, error) {
	var d models.Deposit
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1 FOR UPDATE NOWAIT`
	if err := r.tx.GetContext(ctx, &d, query, depositID); err != nil {
		return nil, mapError(err, "lock deposit")
	}
	return &d, nil
}

func (r *TxRepo) UpdateDeposit(ctx context.Context, d *models.Deposit) error {
	query := `UPDATE deposits SET status = $1, admin_feedback = $2, updated_at = $3 WHERE id = $4`
	return r.execOne(ctx, "update deposit", query, d.Status, d.AdminFeedback, d.UpdatedAt, d.ID)
}

func (r *TxRepo) LockPool(ctx context.Context, poolID int64) (*models.Pool, error) {
	var p models.Pool
	query := `SELECT ` + poolColumns + ` FROM pools WHERE id = $1 FOR UPDATE NOWAIT`
	if err := r.tx.GetContext(ctx, &p, query, poolID); err != nil {
		return nil, mapError(err, "lock pool")
	}
	return &p, nil
}

func (r *TxRepo) UpdatePool(ctx context.Context, p *models.Pool) error {
	query := `UPDATE pools SET invested_amount = $1, share_interest = $2 WHERE id = $3`
	return r.execOne(ctx, "update pool", query, p.InvestedAmount, p.ShareInterest, p.ID)
}

func (r *TxRepo) LockPoolInvestment(ctx context.Context, poolID, userID int64) (*models.PoolInvestment, error) {
	var pi models.PoolInvestment
	query := `SELECT ` + poolInvestColumns + ` FROM pool_investments WHERE pool_id = $1 AND user_id = $2 FOR UPDATE NOWAIT`
	if err := r.tx.GetContext(ctx, &pi, query, poolID, userID); err != nil {
		return nil, mapError(err, "lock pool investment")
	}
	return &pi, nil
}

func (r *TxRepo) SavePoolInvestment(ctx context.Context, pi *models.PoolInvestment) error {
	query := `INSERT INTO pool_investments (` + poolInvestColumns + `) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (pool_id, user_id) DO UPDATE
		SET invest_amount = EXCLUDED.invest_amount, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	if _, err := r.tx.ExecContext(ctx, query, pi.PoolID, pi.UserID, pi.InvestAmount, pi.Status, pi.UpdatedAt); err != nil {
		return mapError(err, "save pool investment")
	}
	return nil
}

func (r *TxRepo) ListPoolInvestments(ctx context.Context, poolID int64) ([]models.PoolInvestment, error) {
	var pis []models.PoolInvestment
	query := `SELECT ` + poolInvestColumns + ` FROM pool_investments WHERE pool_id = $1 ORDER BY user_id ASC`
	if err := r.tx.SelectContext(ctx, &pis, query, poolID); err != nil {
		return nil, mapError(err, "list pool investments")
	}
	return pis, nil
}

func (r *TxRepo) InsertStake(ctx context.Context, s *models.StakingInvestment) error {
	query := `INSERT INTO staking_investments
		(user_id, staking_id, invest_amount, interest, end_at, status, reference_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := r.tx.QueryRowxContext(ctx, query,
		s.UserID, s.StakingID, s.InvestAmount, s.Interest, s.EndAt, s.Status, s.ReferenceCode, s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		return mapError(err, "insert stake")
	}
	return nil
}

func (r *TxRepo) LockStake(ctx context.Context, stakeID int64) (*models.StakingInvestment, error) {
	var s models.StakingInvestment
	query := `SELECT ` + stakeColumns + ` FROM staking_investments WHERE id = $1 FOR UPDATE NOWAIT`
	if err := r.tx.GetContext(ctx, &s, query, stakeID); err != nil {
		return nil, mapError(err, "lock stake")
	}
	return &s, nil
}

func (r *TxRepo) UpdateStake(ctx context.Context, s *models.StakingInvestment) error {
	return r.execOne(ctx, "update stake", `UPDATE staking_investments SET status = $1 WHERE id = $2`, s.Status, s.ID)
}

func (r *TxRepo) execOne(ctx context.Context, action, query string, args ...interface{}) error {
	result, err := r.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err, action)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", action, models.ErrNotFound)
	}
	return nil
}

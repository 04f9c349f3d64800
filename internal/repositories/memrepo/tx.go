package memrepo

import (
	"context"
	"errors"
	"time"

	"hyip-ledger/internal/models"

	"github.com/shopspring/decimal"
)

var errTxDone = errors.New("transaction has already been committed or rolled back")

type tx struct {
	store *Store
	work  *state
	done  bool
}

func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true

	t.store.mu.Lock()
	t.store.state = t.work
	t.store.mu.Unlock()
	<-t.store.sem
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	<-t.store.sem
	return nil
}

func (t *tx) LockWallet(ctx context.Context, userID int64, kind models.WalletKind) (*models.Wallet, error) {
	key := walletKey{userID, kind}
	w, ok := t.work.wallets[key]
	if !ok {
		if err := t.userExists(userID); err != nil {
			return nil, err
		}
		w = models.Wallet{UserID: userID, Kind: kind, Balance: decimal.Zero, UpdatedAt: time.Now()}
		t.work.wallets[key] = w
	}
	return &w, nil
}

func (t *tx) UpdateWalletBalance(ctx context.Context, userID int64, kind models.WalletKind, balance decimal.Decimal) error {
	key := walletKey{userID, kind}
	w, ok := t.work.wallets[key]
	if !ok {
		return models.ErrNotFound
	}
	w.Balance = balance
	w.UpdatedAt = time.Now()
	t.work.wallets[key] = w
	return nil
}

func (t *tx) InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	entry.ID = t.work.nextID()
	t.work.entries = append(t.work.entries, *entry)
	return nil
}

func (t *tx) ListEntries(ctx context.Context, userID int64, kind models.WalletKind) ([]models.LedgerEntry, error) {
	return filterEntries(t.work.entries, userID, kind), nil
}

func (t *tx) InsertUser(ctx context.Context, user *models.User) error {
	if user.ID == 0 {
		user.ID = t.work.nextID()
	}
	if _, exists := t.work.users[user.ID]; exists {
		return models.ErrInvalidState
	}
	t.work.users[user.ID] = *user
	return nil
}

func (t *tx) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return get(t.work.users, userID)
}

func (t *tx) LockUser(ctx context.Context, userID int64) (*models.User, error) {
	return get(t.work.users, userID)
}

func (t *tx) UpdateUser(ctx context.Context, user *models.User) error {
	return put(t.work.users, user.ID, *user)
}

func (t *tx) AddTotalInvest(ctx context.Context, userID int64, amount decimal.Decimal) error {
	u, ok := t.work.users[userID]
	if !ok {
		return models.ErrNotFound
	}
	u.TotalInvest = u.TotalInvest.Add(amount)
	t.work.users[userID] = u
	return nil
}

func (t *tx) AddTeamInvest(ctx context.Context, userIDs []int64, amount decimal.Decimal) error {
	for _, id := range userIDs {
		u, ok := t.work.users[id]
		if !ok {
			continue
		}
		u.TeamInvest = u.TeamInvest.Add(amount)
		t.work.users[id] = u
	}
	return nil
}

func (t *tx) InsertPlan(ctx context.Context, plan *models.Plan) error {
	plan.ID = t.work.nextID()
	t.work.plans[plan.ID] = *plan
	return nil
}

func (t *tx) InsertInvestment(ctx context.Context, inv *models.Investment) error {
	if err := t.userExists(inv.UserID); err != nil {
		return err
	}
	inv.ID = t.work.nextID()
	t.work.investments[inv.ID] = *inv
	return nil
}

func (t *tx) LockInvestment(ctx context.Context, investmentID int64) (*models.Investment, error) {
	return get(t.work.investments, investmentID)
}

func (t *tx) UpdateInvestment(ctx context.Context, inv *models.Investment) error {
	return put(t.work.investments, inv.ID, *inv)
}

func (t *tx) InsertSchedule(ctx context.Context, s *models.ScheduledInvestment) error {
	if err := t.userExists(s.UserID); err != nil {
		return err
	}
	s.ID = t.work.nextID()
	t.work.schedules[s.ID] = *s
	return nil
}

func (t *tx) LockSchedule(ctx context.Context, scheduleID int64) (*models.ScheduledInvestment, error) {
	return get(t.work.schedules, scheduleID)
}

func (t *tx) UpdateSchedule(ctx context.Context, s *models.ScheduledInvestment) error {
	return put(t.work.schedules, s.ID, *s)
}

func (t *tx) InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	if err := t.userExists(w.UserID); err != nil {
		return err
	}
	w.ID = t.work.nextID()
	t.work.withdrawals[w.ID] = *w
	return nil
}

func (t *tx) LockWithdrawal(ctx context.Context, withdrawalID int64) (*models.Withdrawal, error) {
	return get(t.work.withdrawals, withdrawalID)
}

func (t *tx) UpdateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	return put(t.work.withdrawals, w.ID, *w)
}

func (t *tx) InsertDeposit(ctx context.Context, d *models.Deposit) error {
	if err := t.userExists(d.UserID); err != nil {
		return err
	}
	d.ID = t.work.nextID()
	t.work.deposits[d.ID] = *d
	return nil
}

func (t *tx) LockDeposit(ctx context.Context, depositID int64) (*models.Deposit, error) {
	return get(t.work.deposits, depositID)
}

func (t *tx) UpdateDeposit(ctx context.Context, d *models.Deposit) error {
	return put(t.work.deposits, d.ID, *d)
}

func (t *tx) LockPool(ctx context.Context, poolID int64) (*models.Pool, error) {
	return get(t.work.pools, poolID)
}

func (t *tx) UpdatePool(ctx context.Context, pool *models.Pool) error {
	return put(t.work.pools, pool.ID, *pool)
}

func (t *tx) LockPoolInvestment(ctx context.Context, poolID, userID int64) (*models.PoolInvestment, error) {
	pi, ok := t.work.poolInvests[poolKey{poolID, userID}]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &pi, nil
}

func (t *tx) SavePoolInvestment(ctx context.Context, pi *models.PoolInvestment) error {
	if err := t.userExists(pi.UserID); err != nil {
		return err
	}
	t.work.poolInvests[poolKey{pi.PoolID, pi.UserID}] = *pi
	return nil
}

func (t *tx) ListPoolInvestments(ctx context.Context, poolID int64) ([]models.PoolInvestment, error) {
	var out []models.PoolInvestment
	for k, pi := range t.work.poolInvests {
		if k.poolID == poolID {
			out = append(out, pi)
		}
	}
	sortPoolInvestments(out)
	return out, nil
}

func (t *tx) InsertStake(ctx context.Context, s *models.StakingInvestment) error {
	if err := t.userExists(s.UserID); err != nil {
		return err
	}
	s.ID = t.work.nextID()
	t.work.stakes[s.ID] = *s
	return nil
}

func (t *tx) LockStake(ctx context.Context, stakeID int64) (*models.StakingInvestment, error) {
	return get(t.work.stakes, stakeID)
}

func (t *tx) UpdateStake(ctx context.Context, s *models.StakingInvestment) error {
	return put(t.work.stakes, s.ID, *s)
}

// userExists mirrors the users foreign key of the postgres schema.
func (t *tx) userExists(userID int64) error {
	if _, ok := t.work.users[userID]; !ok {
		return models.ErrNotFound
	}
	return nil
}

func put[T any](m map[int64]T, id int64, v T) error {
	if _, ok := m[id]; !ok {
		return models.ErrNotFound
	}
	m[id] = v
	return nil
}

// Package memrepo is an in-memory Store. Transactions are serialized: BeginTx waits for the
// previous transaction to finish, works on a private copy and swaps it in on Commit.
package memrepo

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories"
)

type walletKey struct {
	userID int64
	kind   models.WalletKind
}

type poolKey struct {
	poolID int64
	userID int64
}

type state struct {
	seq          int64
	wallets      map[walletKey]models.Wallet
	entries      []models.LedgerEntry
	users        map[int64]models.User
	plans        map[int64]models.Plan
	investments  map[int64]models.Investment
	schedules    map[int64]models.ScheduledInvestment
	withdrawals  map[int64]models.Withdrawal
	deposits     map[int64]models.Deposit
	methods      map[int64]models.WithdrawMethod
	gateways     map[int64]models.DepositGateway
	pools        map[int64]models.Pool
	poolInvests  map[poolKey]models.PoolInvestment
	stakingPlans map[int64]models.StakingPlan
	stakes       map[int64]models.StakingInvestment
	rules        []models.ReferralRule
	rankings     []models.UserRanking
}

func newState() *state {
	return &state{
		wallets:      make(map[walletKey]models.Wallet),
		users:        make(map[int64]models.User),
		plans:        make(map[int64]models.Plan),
		investments:  make(map[int64]models.Investment),
		schedules:    make(map[int64]models.ScheduledInvestment),
		withdrawals:  make(map[int64]models.Withdrawal),
		deposits:     make(map[int64]models.Deposit),
		methods:      make(map[int64]models.WithdrawMethod),
		gateways:     make(map[int64]models.DepositGateway),
		pools:        make(map[int64]models.Pool),
		poolInvests:  make(map[poolKey]models.PoolInvestment),
		stakingPlans: make(map[int64]models.StakingPlan),
		stakes:       make(map[int64]models.StakingInvestment),
	}
}

func (s *state) clone() *state {
	return &state{
		seq:          s.seq,
		wallets:      maps.Clone(s.wallets),
		entries:      s.entries[:len(s.entries):len(s.entries)],
		users:        maps.Clone(s.users),
		plans:        maps.Clone(s.plans),
		investments:  maps.Clone(s.investments),
		schedules:    maps.Clone(s.schedules),
		withdrawals:  maps.Clone(s.withdrawals),
		deposits:     maps.Clone(s.deposits),
		methods:      maps.Clone(s.methods),
		gateways:     maps.Clone(s.gateways),
		pools:        maps.Clone(s.pools),
		poolInvests:  maps.Clone(s.poolInvests),
		stakingPlans: maps.Clone(s.stakingPlans),
		stakes:       maps.Clone(s.stakes),
		rules:        s.rules,
		rankings:     s.rankings,
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// Store is safe for concurrent use.
type Store struct {
	sem   chan struct{}
	mu    sync.RWMutex
	state *state
}

func New() *Store {
	return &Store{
		sem:   make(chan struct{}, 1),
		state: newState(),
	}
}

var _ repositories.Store = (*Store)(nil)

func (s *Store) BeginTx(ctx context.Context) (repositories.Tx, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", models.ErrBusy, ctx.Err())
	}

	s.mu.RLock()
	work := s.state.clone()
	s.mu.RUnlock()

	return &tx{store: s, work: work}, nil
}

func (s *Store) read() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// write applies a seed mutation outside of any transaction.
func (s *Store) write(fn func(st *state)) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	fn(next)
	s.state = next
}

func (s *Store) GetWallet(ctx context.Context, userID int64, kind models.WalletKind) (*models.Wallet, error) {
	w, ok := s.read().wallets[walletKey{userID, kind}]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &w, nil
}

func (s *Store) ListWallets(ctx context.Context) ([]models.Wallet, error) {
	st := s.read()
	wallets := make([]models.Wallet, 0, len(st.wallets))
	for _, w := range st.wallets {
		wallets = append(wallets, w)
	}
	sort.Slice(wallets, func(i, j int) bool {
		if wallets[i].UserID != wallets[j].UserID {
			return wallets[i].UserID < wallets[j].UserID
		}
		return wallets[i].Kind < wallets[j].Kind
	})
	return wallets, nil
}

func (s *Store) ListEntries(ctx context.Context, userID int64, kind models.WalletKind) ([]models.LedgerEntry, error) {
	return filterEntries(s.read().entries, userID, kind), nil
}

func filterEntries(all []models.LedgerEntry, userID int64, kind models.WalletKind) []models.LedgerEntry {
	var entries []models.LedgerEntry
	for _, e := range all {
		if e.UserID == userID && e.WalletKind == kind {
			entries = append(entries, e)
		}
	}
	return entries
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return get(s.read().users, userID)
}

func (s *Store) CountActiveReferrals(ctx context.Context, userID int64) (int, error) {
	count := 0
	for _, u := range s.read().users {
		if u.ReferrerID.Valid && u.ReferrerID.Int64 == userID && u.TotalInvest.IsPositive() {
			count++
		}
	}
	return count, nil
}

func (s *Store) GetPlan(ctx context.Context, planID int64) (*models.Plan, error) {
	return get(s.read().plans, planID)
}

func (s *Store) GetWithdrawMethod(ctx context.Context, methodID int64) (*models.WithdrawMethod, error) {
	return get(s.read().methods, methodID)
}

func (s *Store) GetDepositGateway(ctx context.Context, gatewayID int64) (*models.DepositGateway, error) {
	return get(s.read().gateways, gatewayID)
}

func (s *Store) GetStakingPlan(ctx context.Context, stakingID int64) (*models.StakingPlan, error) {
	return get(s.read().stakingPlans, stakingID)
}

func (s *Store) GetPool(ctx context.Context, poolID int64) (*models.Pool, error) {
	return get(s.read().pools, poolID)
}

func (s *Store) ListReferralRules(ctx context.Context, commissionType models.CommissionType) ([]models.ReferralRule, error) {
	var rules []models.ReferralRule
	for _, r := range s.read().rules {
		if r.CommissionType == commissionType {
			rules = append(rules, r)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Level < rules[j].Level })
	return rules, nil
}

func (s *Store) ListRankings(ctx context.Context) ([]models.UserRanking, error) {
	rankings := append([]models.UserRanking(nil), s.read().rankings...)
	sort.Slice(rankings, func(i, j int) bool { return rankings[i].Level < rankings[j].Level })
	return rankings, nil
}

func (s *Store) GetInvestment(ctx context.Context, investmentID int64) (*models.Investment, error) {
	return get(s.read().investments, investmentID)
}

func (s *Store) GetWithdrawal(ctx context.Context, withdrawalID int64) (*models.Withdrawal, error) {
	return get(s.read().withdrawals, withdrawalID)
}

func (s *Store) GetDeposit(ctx context.Context, depositID int64) (*models.Deposit, error) {
	return get(s.read().deposits, depositID)
}

func (s *Store) DueInvestmentIDs(ctx context.Context, cycle int64, now time.Time) ([]int64, error) {
	return ids(s.read().investments, func(i models.Investment) bool { return i.Due(cycle, now) }), nil
}

func (s *Store) DueScheduleIDs(ctx context.Context, now time.Time) ([]int64, error) {
	return ids(s.read().schedules, func(sc models.ScheduledInvestment) bool {
		return sc.Status == models.ScheduleActive && !sc.NextRunAt.After(now)
	}), nil
}

func (s *Store) MaturedStakeIDs(ctx context.Context, now time.Time) ([]int64, error) {
	return ids(s.read().stakes, func(st models.StakingInvestment) bool {
		return st.Status == models.StakingActive && !st.EndAt.After(now)
	}), nil
}

// Entries returns every ledger entry in insertion order.
func (s *Store) Entries() []models.LedgerEntry {
	return append([]models.LedgerEntry(nil), s.read().entries...)
}

func get[T any](m map[int64]T, id int64) (*T, error) {
	v, ok := m[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &v, nil
}

func ids[T any](m map[int64]T, keep func(T) bool) []int64 {
	var out []int64
	for id, v := range m {
		if keep(v) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var _ repositories.Tx = (*tx)(nil)

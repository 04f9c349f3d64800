package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"hyip-ledger/internal/config"
	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories"
	"hyip-ledger/internal/repositories/memrepo"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday
var epoch = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type sentNotification struct {
	userID   int64
	template string
	vars     map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(ctx context.Context, userID int64, template string, vars map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{userID, template, vars})
	return nil
}

func (n *recordingNotifier) templates(userID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		if s.userID == userID {
			out = append(out, s.template)
		}
	}
	return out
}

type testEnv struct {
	*Services
	store    *memrepo.Store
	clock    *testClock
	notifier *recordingNotifier
}

type envOption func(*Deps)

func withHoliday(h config.HolidayConfig) envOption {
	return func(d *Deps) { d.Holiday = h }
}

func withLedger(l config.LedgerConfig) envOption {
	return func(d *Deps) { d.Ledger = l }
}

// withStore puts a wrapper between the services and the in-memory store.
func withStore(wrap func(*memrepo.Store) repositories.Store) envOption {
	return func(d *Deps) { d.Store = wrap(d.Store.(*memrepo.Store)) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	store := memrepo.New()
	clock := &testClock{now: epoch}
	notifier := &recordingNotifier{}
	deps := Deps{
		Store:    store,
		Notifier: notifier,
		Now:      clock.Now,
		Ledger: config.LedgerConfig{
			BusyRetries: 3,
			BusyBackoff: time.Millisecond,
		},
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testEnv{
		Services: New(deps),
		store:    store,
		clock:    clock,
		notifier: notifier,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

// user registers a counters row; referrer 0 means none.
func (e *testEnv) user(t *testing.T, id, referrer int64) {
	t.Helper()
	u := models.User{ID: id, TotalInvest: decimal.Zero, TeamInvest: decimal.Zero}
	if referrer != 0 {
		u.ReferrerID = sql.NullInt64{Int64: referrer, Valid: true}
	}
	e.store.PutUser(u)
}

// fund credits a wallet through the operator adjustment path so the ledger stays whole.
// A user that was never registered gets a bare counters row first.
func (e *testEnv) fund(t *testing.T, userID int64, kind models.WalletKind, amount string) {
	t.Helper()
	if _, err := e.store.GetUser(context.Background(), userID); errors.Is(err, models.ErrNotFound) {
		e.user(t, userID, 0)
	}
	_, err := e.Wallets.Adjust(context.Background(), AdjustRequest{
		UserID: userID,
		Kind:   kind,
		Amount: dec(amount),
		Add:    true,
		Remark: "test funding",
	})
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, userID int64, kind models.WalletKind) decimal.Decimal {
	t.Helper()
	res, err := e.Wallets.Balance(context.Background(), userID, kind)
	require.NoError(t, err)
	return res.Balance
}

func (e *testEnv) entries(t *testing.T, userID int64, kind models.WalletKind, category string) []models.LedgerEntry {
	t.Helper()
	all, err := e.store.ListEntries(context.Background(), userID, kind)
	require.NoError(t, err)
	var out []models.LedgerEntry
	for _, entry := range all {
		if category == "" || entry.Category == category {
			out = append(out, entry)
		}
	}
	return out
}

func (e *testEnv) assertReconciled(t *testing.T) {
	t.Helper()
	reports, err := e.Reconciler.CheckAll(context.Background())
	require.NoError(t, err)
	for _, r := range reports {
		assert.True(t, r.OK(), "wallet %d/%s out of balance", r.UserID, r.Kind)
	}
}

func (e *testEnv) schedule(t *testing.T, id int64) models.ScheduledInvestment {
	t.Helper()
	tx, err := e.store.BeginTx(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	s, err := tx.LockSchedule(context.Background(), id)
	require.NoError(t, err)
	return *s
}

func (e *testEnv) investment(t *testing.T, id int64) models.Investment {
	t.Helper()
	inv, err := e.store.GetInvestment(context.Background(), id)
	require.NoError(t, err)
	return *inv
}

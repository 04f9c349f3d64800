package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hyip-ledger/internal/config"
	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories"
	"hyip-ledger/internal/repositories/memrepo"
	"hyip-ledger/internal/repositories/redisrepo"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWalletService_DebitCredit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 1, models.WalletInterest, "100")

	tests := []struct {
		name     string
		movement models.Movement
		debit    bool
		wantErr  error
		balance  string
	}{
		{
			name:     "credit adds to balance",
			movement: models.Movement{UserID: 1, Kind: models.WalletInterest, Amount: dec("25.5"), Category: models.CategoryInterest},
			balance:  "125.5",
		},
		{
			name:     "debit to exactly zero",
			movement: models.Movement{UserID: 1, Kind: models.WalletInterest, Amount: dec("125.5"), Category: models.CategoryWithdraw},
			debit:    true,
			balance:  "0",
		},
		{
			name:     "debit beyond balance fails",
			movement: models.Movement{UserID: 1, Kind: models.WalletInterest, Amount: dec("0.00000001"), Category: models.CategoryWithdraw},
			debit:    true,
			wantErr:  models.ErrInsufficientBalance,
			balance:  "0",
		},
		{
			name:     "zero amount is invalid",
			movement: models.Movement{UserID: 1, Kind: models.WalletInterest, Amount: decimal.Zero, Category: models.CategoryInterest},
			wantErr:  models.ErrInvalidAmount,
			balance:  "0",
		},
		{
			name:     "negative amount is invalid",
			movement: models.Movement{UserID: 1, Kind: models.WalletInterest, Amount: dec("-5"), Category: models.CategoryInterest},
			wantErr:  models.ErrInvalidAmount,
			balance:  "0",
		},
		{
			name:     "unknown wallet kind",
			movement: models.Movement{UserID: 1, Kind: "bonus", Amount: dec("1"), Category: models.CategoryInterest},
			wantErr:  models.ErrNotFound,
			balance:  "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(env.entries(t, 1, models.WalletInterest, ""))

			err := env.Wallets.Atomic(ctx, func(tx repositories.Tx) error {
				apply := env.Wallets.Credit
				if tt.debit {
					apply = env.Wallets.Debit
				}
				entry, err := apply(ctx, tx, tt.movement)
				if err != nil {
					return err
				}
				assertDecimal(t, tt.balance, entry.PostBalance)
				return nil
			})

			after := len(env.entries(t, 1, models.WalletInterest, ""))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, after, "failed movement must not write an entry")
			} else {
				require.NoError(t, err)
				assert.Equal(t, before+1, after)
			}
			assertDecimal(t, tt.balance, env.balance(t, 1, models.WalletInterest))
		})
	}

	env.assertReconciled(t)
}

func TestWalletService_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 7, models.WalletInterest, "200")

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		failures  atomic.Int32
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := env.Wallets.Atomic(ctx, func(tx repositories.Tx) error {
				_, err := env.Wallets.Debit(ctx, tx, models.Movement{
					UserID:   7,
					Kind:     models.WalletInterest,
					Amount:   dec("150"),
					Category: models.CategoryWithdraw,
				})
				return err
			})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, models.ErrInsufficientBalance):
				failures.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(1), failures.Load())
	assertDecimal(t, "50", env.balance(t, 7, models.WalletInterest))
	env.assertReconciled(t)
}

func TestWalletService_ManyConcurrentDebitsExhaustExactly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 3, models.WalletDeposit, "1000")

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := env.Wallets.Atomic(ctx, func(tx repositories.Tx) error {
				_, err := env.Wallets.Debit(ctx, tx, models.Movement{
					UserID: 3, Kind: models.WalletDeposit, Amount: dec("100"), Category: models.CategoryInvest,
				})
				return err
			})
			if err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), successes.Load())
	assertDecimal(t, "0", env.balance(t, 3, models.WalletDeposit))
	env.assertReconciled(t)
}

// busyStore fails the first n transactions with models.ErrBusy.
type busyStore struct {
	*memrepo.Store
	remaining atomic.Int32
	attempts  atomic.Int32
}

func (s *busyStore) BeginTx(ctx context.Context) (repositories.Tx, error) {
	s.attempts.Add(1)
	if s.remaining.Add(-1) >= 0 {
		return nil, models.ErrBusy
	}
	return s.Store.BeginTx(ctx)
}

func TestWalletService_AtomicRetriesBusy(t *testing.T) {
	ctx := context.Background()
	cfg := config.LedgerConfig{BusyRetries: 4, BusyBackoff: time.Millisecond}

	t.Run("succeeds after transient contention", func(t *testing.T) {
		store := &busyStore{Store: memrepo.New()}
		store.PutUser(models.User{ID: 1})
		store.remaining.Store(2)
		wallets := NewWalletService(store, nil, nil, zap.NewNop(), cfg)

		err := wallets.Atomic(ctx, func(tx repositories.Tx) error {
			_, err := wallets.Credit(ctx, tx, models.Movement{UserID: 1, Kind: models.WalletDeposit, Amount: dec("10"), Category: models.CategoryDeposit})
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, int32(3), store.attempts.Load())
	})

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		store := &busyStore{Store: memrepo.New()}
		store.remaining.Store(100)
		wallets := NewWalletService(store, nil, nil, zap.NewNop(), cfg)

		err := wallets.Atomic(ctx, func(tx repositories.Tx) error { return nil })
		assert.ErrorIs(t, err, models.ErrBusy)
		assert.True(t, models.IsRetryable(err))
		assert.Equal(t, int32(4), store.attempts.Load())
	})

	t.Run("does not retry validation errors", func(t *testing.T) {
		store := &busyStore{Store: memrepo.New()}
		store.PutUser(models.User{ID: 1})
		wallets := NewWalletService(store, nil, nil, zap.NewNop(), cfg)

		err := wallets.Atomic(ctx, func(tx repositories.Tx) error {
			_, err := wallets.Debit(ctx, tx, models.Movement{UserID: 1, Kind: models.WalletDeposit, Amount: dec("10"), Category: models.CategoryInvest})
			return err
		})
		assert.ErrorIs(t, err, models.ErrInsufficientBalance)
		assert.Equal(t, int32(1), store.attempts.Load())
	})
}

type mapCache struct {
	mu       sync.Mutex
	balances map[walletKey]decimal.Decimal
	fills    int
	// blind makes GetBalance miss even when an entry exists.
	blind bool
}

func newMapCache() *mapCache {
	return &mapCache{balances: make(map[walletKey]decimal.Decimal)}
}

func (c *mapCache) SetBalance(ctx context.Context, userID int64, kind models.WalletKind, balance decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[walletKey{userID, kind}] = balance
	return nil
}

func (c *mapCache) GetBalance(ctx context.Context, userID int64, kind models.WalletKind) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.balances[walletKey{userID, kind}]
	if !ok || c.blind {
		return decimal.Zero, redisrepo.ErrBalanceNotFound
	}
	return b, nil
}

func (c *mapCache) FillBalance(ctx context.Context, userID int64, kind models.WalletKind, balance decimal.Decimal) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fills++
	if _, ok := c.balances[walletKey{userID, kind}]; ok {
		return false, nil
	}
	c.balances[walletKey{userID, kind}] = balance
	return true, nil
}

func (c *mapCache) snapshot(userID int64, kind models.WalletKind) (decimal.Decimal, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[walletKey{userID, kind}], c.fills
}

func TestWalletService_CacheFollowsCommits(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	store := memrepo.New()
	store.PutUser(models.User{ID: 5})
	wallets := NewWalletService(store, cache, nil, zap.NewNop(), config.LedgerConfig{})

	_, err := wallets.Adjust(ctx, AdjustRequest{UserID: 5, Kind: models.WalletDeposit, Amount: dec("40"), Add: true})
	require.NoError(t, err)

	cached, err := cache.GetBalance(ctx, 5, models.WalletDeposit)
	require.NoError(t, err)
	assertDecimal(t, "40", cached)

	// A rolled back unit leaves the cache alone.
	err = wallets.Atomic(ctx, func(tx repositories.Tx) error {
		if _, err := wallets.Credit(ctx, tx, models.Movement{UserID: 5, Kind: models.WalletDeposit, Amount: dec("1"), Category: models.CategoryDeposit}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)
	cached, err = cache.GetBalance(ctx, 5, models.WalletDeposit)
	require.NoError(t, err)
	assertDecimal(t, "40", cached)

	res, err := wallets.Balance(ctx, 5, models.WalletDeposit)
	require.NoError(t, err)
	assertDecimal(t, "40", res.Balance)
}

func TestWalletService_BalanceRefillKeepsNewerEntry(t *testing.T) {
	ctx := context.Background()
	store := memrepo.New()
	store.PutUser(models.User{ID: 5})
	cache := newMapCache()
	wallets := NewWalletService(store, cache, nil, zap.NewNop(), config.LedgerConfig{})

	_, err := wallets.Adjust(ctx, AdjustRequest{UserID: 5, Kind: models.WalletDeposit, Amount: dec("40"), Add: true})
	require.NoError(t, err)

	// A commit lands in the cache after this reader missed it.
	cache.blind = true
	require.NoError(t, cache.SetBalance(ctx, 5, models.WalletDeposit, dec("99")))

	res, err := wallets.Balance(ctx, 5, models.WalletDeposit)
	require.NoError(t, err)
	assertDecimal(t, "40", res.Balance)

	assert.Eventually(t, func() bool {
		_, fills := cache.snapshot(5, models.WalletDeposit)
		return fills == 1
	}, time.Second, 5*time.Millisecond)
	cached, _ := cache.snapshot(5, models.WalletDeposit)
	assertDecimal(t, "99", cached)
}

func TestWalletService_BalanceRefillsEmptyCache(t *testing.T) {
	ctx := context.Background()
	store := memrepo.New()
	store.PutUser(models.User{ID: 6})
	wallets := NewWalletService(store, nil, nil, zap.NewNop(), config.LedgerConfig{})
	_, err := wallets.Adjust(ctx, AdjustRequest{UserID: 6, Kind: models.WalletInterest, Amount: dec("12"), Add: true})
	require.NoError(t, err)

	cache := newMapCache()
	wallets = NewWalletService(store, cache, nil, zap.NewNop(), config.LedgerConfig{})
	_, err = wallets.Balance(ctx, 6, models.WalletInterest)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		b, _ := cache.snapshot(6, models.WalletInterest)
		return b.Equal(dec("12"))
	}, time.Second, 5*time.Millisecond)
}

func TestWalletService_BalanceOfUnknownWalletIsZero(t *testing.T) {
	env := newTestEnv(t)

	assertDecimal(t, "0", env.balance(t, 404, models.WalletDeposit))

	_, err := env.Wallets.Balance(context.Background(), 404, "savings")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestWalletService_Transfer(t *testing.T) {
	env := newTestEnv(t, withLedger(config.LedgerConfig{
		BusyRetries:           3,
		BusyBackoff:           time.Millisecond,
		TransferFixedCharge:   dec("1"),
		TransferPercentCharge: dec("2"),
	}))
	ctx := context.Background()
	env.user(t, 10, 0)
	env.user(t, 4, 0)
	env.fund(t, 10, models.WalletDeposit, "200")

	// Higher ID sends to lower ID, exercising the ordered locking path.
	res, err := env.Wallets.Transfer(ctx, TransferRequest{FromUserID: 10, ToUserID: 4, Kind: models.WalletDeposit, Amount: dec("100")})
	require.NoError(t, err)

	assertDecimal(t, "103", res.Debit.Amount)
	assertDecimal(t, "3", res.Debit.Charge)
	assertDecimal(t, "100", res.Credit.Amount)
	assert.Equal(t, res.Debit.ReferenceCode, res.Credit.ReferenceCode)
	assertDecimal(t, "97", env.balance(t, 10, models.WalletDeposit))
	assertDecimal(t, "100", env.balance(t, 4, models.WalletDeposit))

	_, err = env.Wallets.Transfer(ctx, TransferRequest{FromUserID: 10, ToUserID: 4, Kind: models.WalletDeposit, Amount: dec("95")})
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)

	_, err = env.Wallets.Transfer(ctx, TransferRequest{FromUserID: 10, ToUserID: 10, Kind: models.WalletDeposit, Amount: dec("1")})
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = env.Wallets.Transfer(ctx, TransferRequest{FromUserID: 10, ToUserID: 99, Kind: models.WalletDeposit, Amount: dec("1")})
	assert.ErrorIs(t, err, models.ErrNotFound)

	env.assertReconciled(t)
}

func TestWalletService_Adjust(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 2, 0)

	_, err := env.Wallets.Adjust(ctx, AdjustRequest{UserID: 3, Kind: models.WalletInterest, Amount: dec("30"), Add: true})
	assert.ErrorIs(t, err, models.ErrNotFound, "wallets belong to registered users")

	entry, err := env.Wallets.Adjust(ctx, AdjustRequest{UserID: 2, Kind: models.WalletInterest, Amount: dec("30"), Add: true, Remark: "bonus"})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryBalanceAdd, entry.Category)
	assert.Equal(t, "bonus", entry.Details)

	entry, err = env.Wallets.Adjust(ctx, AdjustRequest{UserID: 2, Kind: models.WalletInterest, Amount: dec("10")})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryBalanceSubtract, entry.Category)
	assert.Equal(t, models.DirectionDebit, entry.Direction)

	_, err = env.Wallets.Adjust(ctx, AdjustRequest{UserID: 2, Kind: models.WalletInterest, Amount: dec("21")})
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)

	assertDecimal(t, "20", env.balance(t, 2, models.WalletInterest))
}

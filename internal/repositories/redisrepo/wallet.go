package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hyip-ledger/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

const (
	defaultExpiration = 5 * time.Minute
)

var (
	ErrBalanceNotFound = errors.New("balance not found in cache")
)

// WalletRepository caches committed wallet balances. The ledger stays authoritative;
// cache entries are written only after a transaction commits.
type WalletRepository struct {
	client     *redis.Client
	prefix     string
	expiration time.Duration
}

func NewWalletRepository(client *redis.Client, expiration time.Duration) *WalletRepository {
	if expiration <= 0 {
		expiration = defaultExpiration
	}
	return &WalletRepository{
		client:     client,
		prefix:     "wallet:",
		expiration: expiration,
	}
}

func (r *WalletRepository) SetBalance(ctx context.Context, userID int64, kind models.WalletKind, balance decimal.Decimal) error {
	key := r.getBalanceKey(userID, kind)

	err := r.client.Set(ctx, key, balance.String(), r.expiration).Err()
	if err != nil {
		return fmt.Errorf("failed to set balance in redis: %w", err)
	}

	return nil
}

func (r *WalletRepository) GetBalance(ctx context.Context, userID int64, kind models.WalletKind) (decimal.Decimal, error) {
	key := r.getBalanceKey(userID, kind)

	balanceStr, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, ErrBalanceNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to get balance from redis: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance from redis: %w", err)
	}

	return balance, nil
}

// FillBalance stores a balance read outside any transaction. It never replaces an
// existing entry, so a commit that landed after the read keeps its value.
func (r *WalletRepository) FillBalance(ctx context.Context, userID int64, kind models.WalletKind, balance decimal.Decimal) (bool, error) {
	key := r.getBalanceKey(userID, kind)

	stored, err := r.client.SetNX(ctx, key, balance.String(), r.expiration).Result()
	if err != nil {
		return false, fmt.Errorf("failed to fill balance in redis: %w", err)
	}

	return stored, nil
}

func (r *WalletRepository) getBalanceKey(userID int64, kind models.WalletKind) string {
	return fmt.Sprintf("%s%d:%s:balance", r.prefix, userID, kind)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hyip-ledger/internal/config"
	"hyip-ledger/internal/metrics"
	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories"
	"hyip-ledger/internal/repositories/redisrepo"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultBusyRetries = 5
	defaultBusyBackoff = 20 * time.Millisecond
	maxBusyBackoff     = time.Second
)

// WalletService is the only writer of wallet balances and ledger entries.
type WalletService struct {
	store   repositories.Store
	cache   BalanceCache
	metrics *metrics.Recorder
	log     *zap.Logger

	retries       int
	backoff       time.Duration
	fixedCharge   decimal.Decimal
	percentCharge decimal.Decimal
}

func NewWalletService(store repositories.Store, cache BalanceCache, rec *metrics.Recorder, log *zap.Logger, cfg config.LedgerConfig) *WalletService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &WalletService{
		store:         store,
		cache:         cache,
		metrics:       rec,
		log:           log,
		retries:       cfg.BusyRetries,
		backoff:       cfg.BusyBackoff,
		fixedCharge:   cfg.TransferFixedCharge,
		percentCharge: cfg.TransferPercentCharge,
	}
	if s.retries <= 0 {
		s.retries = defaultBusyRetries
	}
	if s.backoff <= 0 {
		s.backoff = defaultBusyBackoff
	}
	return s
}

type walletKey struct {
	userID int64
	kind   models.WalletKind
}

// trackedTx remembers what a unit of work wrote so the cache and metrics can be
// updated once it commits.
type trackedTx struct {
	repositories.Tx
	balances map[walletKey]decimal.Decimal
	entries  []models.LedgerEntry
}

func (t *trackedTx) UpdateWalletBalance(ctx context.Context, userID int64, kind models.WalletKind, balance decimal.Decimal) error {
	if err := t.Tx.UpdateWalletBalance(ctx, userID, kind, balance); err != nil {
		return err
	}
	t.balances[walletKey{userID, kind}] = balance
	return nil
}

func (t *trackedTx) InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if err := t.Tx.InsertLedgerEntry(ctx, entry); err != nil {
		return err
	}
	t.entries = append(t.entries, *entry)
	return nil
}

// Atomic runs fn in one store transaction. A unit that fails with models.ErrBusy is
// rolled back and run again with exponential backoff, up to the configured attempts.
func (s *WalletService) Atomic(ctx context.Context, fn func(tx repositories.Tx) error) error {
	delay := s.backoff
	for attempt := 1; ; attempt++ {
		tracked, err := s.runOnce(ctx, fn)
		if err == nil {
			s.afterCommit(ctx, tracked)
			return nil
		}
		if !models.IsRetryable(err) || attempt >= s.retries {
			return err
		}

		s.metrics.BusyRetry()
		s.log.Debug("wallet busy, retrying", zap.Int("attempt", attempt), zap.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", models.ErrBusy, ctx.Err())
		}
		if delay *= 2; delay > maxBusyBackoff {
			delay = maxBusyBackoff
		}
	}
}

func (s *WalletService) runOnce(ctx context.Context, fn func(tx repositories.Tx) error) (*trackedTx, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	tracked := &trackedTx{Tx: tx, balances: make(map[walletKey]decimal.Decimal)}
	if err := fn(tracked); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return nil, fmt.Errorf("%w, rollback error: %v", err, rollbackErr)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return tracked, nil
}

func (s *WalletService) afterCommit(ctx context.Context, tracked *trackedTx) {
	for _, e := range tracked.entries {
		s.metrics.LedgerEntry(e.Category, string(e.Direction))
	}
	if s.cache == nil {
		return
	}
	for key, balance := range tracked.balances {
		if err := s.cache.SetBalance(ctx, key.userID, key.kind, balance); err != nil {
			s.log.Warn("failed to update balance cache",
				zap.Int64("user_id", key.userID),
				zap.String("wallet", string(key.kind)),
				zap.Error(err),
			)
		}
	}
}

// Debit removes m.Amount from the wallet inside tx. The balance never goes negative.
func (s *WalletService) Debit(ctx context.Context, tx repositories.Tx, m models.Movement) (*models.LedgerEntry, error) {
	return s.apply(ctx, tx, m, models.DirectionDebit)
}

// Credit adds m.Amount to the wallet inside tx.
func (s *WalletService) Credit(ctx context.Context, tx repositories.Tx, m models.Movement) (*models.LedgerEntry, error) {
	return s.apply(ctx, tx, m, models.DirectionCredit)
}

func (s *WalletService) apply(ctx context.Context, tx repositories.Tx, m models.Movement, dir models.Direction) (*models.LedgerEntry, error) {
	if !m.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s must be positive", models.ErrInvalidAmount, m.Amount)
	}
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("wallet kind %q: %w", m.Kind, models.ErrNotFound)
	}

	wallet, err := tx.LockWallet(ctx, m.UserID, m.Kind)
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	balance := wallet.Balance.Add(m.Amount)
	if dir == models.DirectionDebit {
		if wallet.Balance.LessThan(m.Amount) {
			return nil, fmt.Errorf("%w: %s wallet holds %s, %s requested",
				models.ErrInsufficientBalance, m.Kind, wallet.Balance, m.Amount)
		}
		balance = wallet.Balance.Sub(m.Amount)
	}

	if err := tx.UpdateWalletBalance(ctx, m.UserID, m.Kind, balance); err != nil {
		return nil, fmt.Errorf("failed to update wallet balance: %w", err)
	}

	entry := &models.LedgerEntry{
		UserID:        m.UserID,
		WalletKind:    m.Kind,
		Amount:        m.Amount,
		Direction:     dir,
		PostBalance:   balance,
		Charge:        m.Charge,
		Category:      m.Category,
		ReferenceCode: m.Reference,
		Details:       m.Details,
		CreatedAt:     time.Now().UTC(),
	}
	if err := tx.InsertLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return entry, nil
}

func (s *WalletService) Balance(ctx context.Context, userID int64, kind models.WalletKind) (*models.WalletBalanceResponse, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("wallet kind %q: %w", kind, models.ErrNotFound)
	}

	// Try to get balance from Redis cache first
	if s.cache != nil {
		balance, err := s.cache.GetBalance(ctx, userID, kind)
		if err == nil {
			return &models.WalletBalanceResponse{UserID: userID, Kind: kind, Balance: balance}, nil
		}
		if !errors.Is(err, redisrepo.ErrBalanceNotFound) {
			s.log.Warn("balance cache error (non-critical)", zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	balance := decimal.Zero
	wallet, err := s.store.GetWallet(ctx, userID, kind)
	switch {
	case err == nil:
		balance = wallet.Balance
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	// Refill asynchronously. The read may already be stale, so it only fills an empty slot.
	if s.cache != nil {
		go func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if _, err := s.cache.FillBalance(cacheCtx, userID, kind, balance); err != nil {
				s.log.Warn("failed to update balance cache", zap.Int64("user_id", userID), zap.Error(err))
			}
		}()
	}

	return &models.WalletBalanceResponse{UserID: userID, Kind: kind, Balance: balance}, nil
}

func (s *WalletService) Ledger(ctx context.Context, userID int64, kind models.WalletKind) ([]models.LedgerEntry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("wallet kind %q: %w", kind, models.ErrNotFound)
	}
	return s.store.ListEntries(ctx, userID, kind)
}

type TransferRequest struct {
	FromUserID int64
	ToUserID   int64
	Kind       models.WalletKind
	Amount     decimal.Decimal
}

type TransferResult struct {
	Debit  models.LedgerEntry `json:"debit"`
	Credit models.LedgerEntry `json:"credit"`
}

// Transfer moves Amount between two users' wallets of the same kind. The sender pays
// Amount plus the configured fee. Both wallets are locked in ascending user ID order.
func (s *WalletService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: transfer amount must be positive", models.ErrInvalidAmount)
	}
	if req.FromUserID == req.ToUserID {
		return nil, fmt.Errorf("%w: cannot transfer to yourself", models.ErrInvalidState)
	}
	if _, err := s.store.GetUser(ctx, req.ToUserID); err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}

	charge := s.fixedCharge.Add(models.Percent(req.Amount, s.percentCharge))
	reference := uuid.New().String()
	first, second := req.FromUserID, req.ToUserID
	if first > second {
		first, second = second, first
	}

	var result TransferResult
	err := s.Atomic(ctx, func(tx repositories.Tx) error {
		for _, id := range []int64{first, second} {
			if _, err := tx.LockWallet(ctx, id, req.Kind); err != nil {
				return fmt.Errorf("failed to lock wallet: %w", err)
			}
		}

		debit, err := s.Debit(ctx, tx, models.Movement{
			UserID:    req.FromUserID,
			Kind:      req.Kind,
			Amount:    req.Amount.Add(charge),
			Charge:    charge,
			Category:  models.CategoryBalanceTransfer,
			Reference: reference,
			Details:   fmt.Sprintf("Balance transferred to user %d", req.ToUserID),
		})
		if err != nil {
			return err
		}
		credit, err := s.Credit(ctx, tx, models.Movement{
			UserID:    req.ToUserID,
			Kind:      req.Kind,
			Amount:    req.Amount,
			Category:  models.CategoryBalanceTransfer,
			Reference: reference,
			Details:   fmt.Sprintf("Balance received from user %d", req.FromUserID),
		})
		if err != nil {
			return err
		}
		result = TransferResult{Debit: *debit, Credit: *credit}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("balance transferred",
		zap.Int64("from_user_id", req.FromUserID),
		zap.Int64("to_user_id", req.ToUserID),
		zap.String("amount", req.Amount.String()),
		zap.String("reference", reference),
	)
	return &result, nil
}

type AdjustRequest struct {
	UserID int64             `json:"userId" validate:"required,gt=0"`
	Kind   models.WalletKind `json:"wallet" validate:"required,oneof=deposit interest"`
	Amount decimal.Decimal   `json:"amount"`
	Add    bool              `json:"add"`
	Remark string            `json:"remark" validate:"max=255"`
}

// Adjust is the operator's manual balance correction.
func (s *WalletService) Adjust(ctx context.Context, req AdjustRequest) (*models.LedgerEntry, error) {
	m := models.Movement{
		UserID:    req.UserID,
		Kind:      req.Kind,
		Amount:    req.Amount,
		Category:  models.CategoryBalanceSubtract,
		Reference: uuid.New().String(),
		Details:   req.Remark,
	}
	apply := s.Debit
	if req.Add {
		m.Category = models.CategoryBalanceAdd
		apply = s.Credit
	}

	var entry *models.LedgerEntry
	err := s.Atomic(ctx, func(tx repositories.Tx) error {
		var err error
		entry, err = apply(ctx, tx, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

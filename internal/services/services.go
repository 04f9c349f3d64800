// Package services holds the ledger engines. Every balance change goes through
// WalletService; the other engines compose it inside WalletService.Atomic units.
package services

import (
	"context"
	"time"

	"hyip-ledger/internal/config"
	"hyip-ledger/internal/metrics"
	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceCache is a read-through projection of committed wallet balances.
// SetBalance is for values written by a commit; FillBalance is for values read
// outside a transaction and only lands when no entry exists.
type BalanceCache interface {
	SetBalance(ctx context.Context, userID int64, kind models.WalletKind, balance decimal.Decimal) error
	GetBalance(ctx context.Context, userID int64, kind models.WalletKind) (decimal.Decimal, error)
	FillBalance(ctx context.Context, userID int64, kind models.WalletKind, balance decimal.Decimal) (bool, error)
}

// Notifier hands a rendered-later notification to the dispatcher.
type Notifier interface {
	Notify(ctx context.Context, userID int64, template string, vars map[string]string) error
}

type Deps struct {
	Store    repositories.Store
	Cache    BalanceCache // optional
	Notifier Notifier     // optional
	Metrics  *metrics.Recorder
	Logger   *zap.Logger
	Ledger   config.LedgerConfig
	Holiday  config.HolidayConfig
	Now      func() time.Time
}

type Services struct {
	Wallets     *WalletService
	Catalog     *Catalog
	Holidays    *HolidayPolicy
	Referrals   *ReferralService
	Rankings    *RankingService
	Investments *InvestmentService
	Withdrawals *WithdrawalService
	Deposits    *DepositService
	Pools       *PoolService
	Staking     *StakingService
	Reconciler  *Reconciler
	Triggers    *TriggerService
}

func New(d Deps) *Services {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	wallets := NewWalletService(d.Store, d.Cache, d.Metrics, d.Logger, d.Ledger)
	catalog := NewCatalog(d.Store, d.Ledger.CatalogSize, d.Ledger.CatalogTTL)
	holidays := NewHolidayPolicy(d.Holiday)
	referrals := NewReferralService(d.Store, wallets, catalog, d.Notifier, d.Logger)
	rankings := NewRankingService(d.Store, wallets, catalog, d.Notifier, d.Logger)
	investments := NewInvestmentService(d.Store, wallets, catalog, referrals, holidays, d.Notifier, d.Metrics, d.Logger, d.Now, d.Ledger.BatchWorkers)
	withdrawals := NewWithdrawalService(d.Store, wallets, holidays, d.Notifier, d.Logger, d.Now)
	deposits := NewDepositService(d.Store, wallets, referrals, d.Notifier, d.Logger, d.Now)
	pools := NewPoolService(d.Store, wallets, d.Notifier, d.Logger, d.Now)
	staking := NewStakingService(d.Store, wallets, d.Notifier, d.Logger, d.Now, d.Ledger.BatchWorkers)
	reconciler := NewReconciler(d.Store, wallets, d.Metrics, d.Logger)

	return &Services{
		Wallets:     wallets,
		Catalog:     catalog,
		Holidays:    holidays,
		Referrals:   referrals,
		Rankings:    rankings,
		Investments: investments,
		Withdrawals: withdrawals,
		Deposits:    deposits,
		Pools:       pools,
		Staking:     staking,
		Reconciler:  reconciler,
		Triggers:    NewTriggerService(investments, staking, d.Metrics, d.Logger),
	}
}

// notifyTimeout bounds how long a committed transition waits on the notifier.
const notifyTimeout = 2 * time.Second

// notify is fire-and-forget: a failed publish never undoes the committed transition.
// It runs detached from the caller's cancellation, under its own short deadline.
func notify(ctx context.Context, log *zap.Logger, n Notifier, userID int64, template string, vars map[string]string) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := n.Notify(ctx, userID, template, vars); err != nil {
		log.Warn("failed to publish notification",
			zap.Int64("user_id", userID),
			zap.String("template", template),
			zap.Error(err),
		)
	}
}

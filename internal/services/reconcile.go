package services

import (
	"context"
	"errors"
	"fmt"

	"hyip-ledger/internal/metrics"
	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReconcileReport compares a wallet balance with the replay of its ledger.
type ReconcileReport struct {
	UserID    int64             `json:"userId"`
	Kind      models.WalletKind `json:"kind"`
	Balance   decimal.Decimal   `json:"balance"`
	LedgerSum decimal.Decimal   `json:"ledgerSum"`
	Entries   int               `json:"entries"`
	// BrokenEntryID is the first entry whose post_balance does not follow its predecessor.
	BrokenEntryID int64 `json:"brokenEntryId,omitempty"`
}

func (r ReconcileReport) OK() bool {
	return r.BrokenEntryID == 0 && r.Balance.Equal(r.LedgerSum)
}

// Reconciler detects ledger/balance drift. It reports; it never corrects.
type Reconciler struct {
	store   repositories.Store
	wallets *WalletService
	metrics *metrics.Recorder
	log     *zap.Logger
}

func NewReconciler(store repositories.Store, wallets *WalletService, rec *metrics.Recorder, log *zap.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		wallets: wallets,
		metrics: rec,
		log:     log,
	}
}

// Check replays the wallet's entries under its row lock. A mismatch returns the
// report together with models.ErrIntegrity.
func (r *Reconciler) Check(ctx context.Context, userID int64, kind models.WalletKind) (*ReconcileReport, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("wallet kind %q: %w", kind, models.ErrNotFound)
	}

	var report ReconcileReport
	err := r.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		wallet, err := tx.LockWallet(ctx, userID, kind)
		if err != nil {
			return fmt.Errorf("failed to lock wallet: %w", err)
		}
		entries, err := tx.ListEntries(ctx, userID, kind)
		if err != nil {
			return err
		}
		report = replay(userID, kind, wallet.Balance, entries)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.OK() {
		r.metrics.ReconcileFailure()
		r.log.Error("ledger integrity violation",
			zap.Int64("user_id", userID),
			zap.String("wallet", string(kind)),
			zap.String("balance", report.Balance.String()),
			zap.String("ledger_sum", report.LedgerSum.String()),
			zap.Int64("broken_entry_id", report.BrokenEntryID),
		)
		return &report, fmt.Errorf("%w: user %d %s wallet balance %s, ledger %s",
			models.ErrIntegrity, userID, kind, report.Balance, report.LedgerSum)
	}
	return &report, nil
}

func replay(userID int64, kind models.WalletKind, balance decimal.Decimal, entries []models.LedgerEntry) ReconcileReport {
	report := ReconcileReport{
		UserID:    userID,
		Kind:      kind,
		Balance:   balance,
		LedgerSum: decimal.Zero,
		Entries:   len(entries),
	}
	for _, e := range entries {
		report.LedgerSum = report.LedgerSum.Add(e.Signed())
		if report.BrokenEntryID == 0 && !e.PostBalance.Equal(report.LedgerSum) {
			report.BrokenEntryID = e.ID
		}
	}
	return report
}

// CheckAll checks every wallet and joins the integrity errors.
func (r *Reconciler) CheckAll(ctx context.Context) ([]ReconcileReport, error) {
	wallets, err := r.store.ListWallets(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]ReconcileReport, 0, len(wallets))
	var errs []error
	for _, w := range wallets {
		report, err := r.Check(ctx, w.UserID, w.Kind)
		if report != nil {
			reports = append(reports, *report)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return reports, errors.Join(errs...)
}

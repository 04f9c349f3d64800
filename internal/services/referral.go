package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxReferralDepth bounds chain walks so a corrupted referrer cycle cannot loop forever.
const maxReferralDepth = 64

type ReferralService struct {
	store    repositories.Store
	wallets  *WalletService
	catalog  *Catalog
	notifier Notifier
	log      *zap.Logger
}

func NewReferralService(store repositories.Store, wallets *WalletService, catalog *Catalog, notifier Notifier, log *zap.Logger) *ReferralService {
	return &ReferralService{
		store:    store,
		wallets:  wallets,
		catalog:  catalog,
		notifier: notifier,
		log:      log,
	}
}

// Register records the counters row of a user created by the identity provider.
// referrerID is zero for users without a referrer.
func (s *ReferralService) Register(ctx context.Context, userID, referrerID int64) (*models.User, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", models.ErrInvalidState)
	}
	if referrerID == userID {
		return nil, fmt.Errorf("%w: user cannot refer themselves", models.ErrInvalidState)
	}

	user := &models.User{ID: userID}
	if referrerID != 0 {
		if _, err := s.store.GetUser(ctx, referrerID); err != nil {
			return nil, fmt.Errorf("referrer: %w", err)
		}
		user.ReferrerID = sql.NullInt64{Int64: referrerID, Valid: true}
	}

	err := s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		return tx.InsertUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Distribute pays the multi-level commission for one qualifying event of user. The
// rule for level n pays the n-th referrer up the chain; the cascade stops at the end
// of the chain or after the last configured level. Every level commits on its own, so
// no two wallet locks are ever held together. A failed level is reported and the walk
// continues with the next one.
func (s *ReferralService) Distribute(ctx context.Context, userID int64, base decimal.Decimal, commissionType models.CommissionType) ([]models.LedgerEntry, error) {
	if !base.IsPositive() {
		return nil, nil
	}

	rules, err := s.catalog.ReferralRules(ctx, commissionType)
	if err != nil {
		return nil, fmt.Errorf("failed to load referral rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	reference := uuid.New().String()
	var (
		entries []models.LedgerEntry
		errs    []error
	)

	current, depth := user, 0
	for _, rule := range rules {
		if rule.Level <= 0 {
			continue
		}
		for depth < rule.Level {
			if !current.ReferrerID.Valid || depth >= maxReferralDepth {
				return entries, errors.Join(errs...)
			}
			current, err = s.store.GetUser(ctx, current.ReferrerID.Int64)
			if errors.Is(err, models.ErrNotFound) {
				return entries, errors.Join(errs...)
			}
			if err != nil {
				return entries, errors.Join(append(errs, fmt.Errorf("failed to load referrer: %w", err))...)
			}
			depth++
		}

		amount := models.Percent(base, rule.Percent)
		if !amount.IsPositive() {
			continue
		}

		var entry *models.LedgerEntry
		err := s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
			var err error
			entry, err = s.wallets.Credit(ctx, tx, models.Movement{
				UserID:    current.ID,
				Kind:      models.WalletInterest,
				Amount:    amount,
				Category:  models.CategoryReferralCommission,
				Reference: reference,
				Details:   fmt.Sprintf("Level %d %s commission from user %d", rule.Level, commissionType, userID),
			})
			return err
		})
		if err != nil {
			s.log.Warn("referral commission failed",
				zap.Int64("user_id", userID),
				zap.Int64("referrer_id", current.ID),
				zap.Int("level", rule.Level),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("level %d: %w", rule.Level, err))
			continue
		}

		entries = append(entries, *entry)
		notify(ctx, s.log, s.notifier, current.ID, models.TemplateReferralEarned, map[string]string{
			"amount": amount.String(),
			"level":  fmt.Sprint(rule.Level),
			"type":   string(commissionType),
		})
	}

	return entries, errors.Join(errs...)
}

// ancestors returns the referrer chain of userID, nearest first, read inside tx.
func ancestors(ctx context.Context, tx repositories.Tx, userID int64) ([]int64, error) {
	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var ids []int64
	seen := map[int64]bool{userID: true}
	for user.ReferrerID.Valid && len(ids) < maxReferralDepth {
		id := user.ReferrerID.Int64
		if seen[id] {
			break
		}
		seen[id] = true

		user, err = tx.GetUser(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

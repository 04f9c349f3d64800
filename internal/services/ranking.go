package services

import (
	"context"
	"fmt"

	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RankingProgress is the tier a user holds and the one they are working towards.
// Either may be nil.
type RankingProgress struct {
	Counters models.RankingCounters `json:"counters"`
	Current  *models.UserRanking    `json:"current"`
	Next     *models.UserRanking    `json:"next"`
}

// Evaluate returns the highest-level tier whose thresholds are all met and the
// lowest-level tier above it. Tiers need not be monotonic, so an unmet middle tier
// does not cap the result. The input order does not matter.
func Evaluate(rankings []models.UserRanking, c models.RankingCounters) RankingProgress {
	p := RankingProgress{Counters: c}
	for i := range rankings {
		r := rankings[i]
		if r.SatisfiedBy(c) && (p.Current == nil || r.Level > p.Current.Level) {
			p.Current = &r
		}
	}
	for i := range rankings {
		r := rankings[i]
		if p.Current != nil && r.Level <= p.Current.Level {
			continue
		}
		if p.Next == nil || r.Level < p.Next.Level {
			p.Next = &r
		}
	}
	return p
}

type RankingService struct {
	store    repositories.Store
	wallets  *WalletService
	catalog  *Catalog
	notifier Notifier
	log      *zap.Logger
}

func NewRankingService(store repositories.Store, wallets *WalletService, catalog *Catalog, notifier Notifier, log *zap.Logger) *RankingService {
	return &RankingService{
		store:    store,
		wallets:  wallets,
		catalog:  catalog,
		notifier: notifier,
		log:      log,
	}
}

func (s *RankingService) Status(ctx context.Context, userID int64) (*RankingProgress, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	referrals, err := s.store.CountActiveReferrals(ctx, userID)
	if err != nil {
		return nil, err
	}
	rankings, err := s.catalog.Rankings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rankings: %w", err)
	}

	p := Evaluate(rankings, models.RankingCounters{
		TotalInvest:     user.TotalInvest,
		TeamInvest:      user.TeamInvest,
		ActiveReferrals: referrals,
	})
	return &p, nil
}

// AwardBonuses pays the bonus of every satisfied tier above the last award and moves
// the user to the current tier. A skipped tier below it is never paid later.
func (s *RankingService) AwardBonuses(ctx context.Context, userID int64) ([]models.LedgerEntry, error) {
	progress, err := s.Status(ctx, userID)
	if err != nil {
		return nil, err
	}
	if progress.Current == nil {
		return nil, nil
	}
	rankings, err := s.catalog.Rankings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rankings: %w", err)
	}

	reference := uuid.New().String()
	var (
		entries  []models.LedgerEntry
		promoted []models.UserRanking
	)
	err = s.wallets.Atomic(ctx, func(tx repositories.Tx) error {
		entries, promoted = nil, nil

		// Wallet before user row, the same order Purchase takes them in.
		if _, err := tx.LockWallet(ctx, userID, models.WalletInterest); err != nil {
			return fmt.Errorf("failed to lock wallet: %w", err)
		}
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}

		if progress.Current.Level <= user.RankingLevel {
			return nil
		}
		for _, r := range rankings {
			if r.Level <= user.RankingLevel || r.Level > progress.Current.Level || !r.SatisfiedBy(progress.Counters) {
				continue
			}
			if r.Bonus.IsPositive() {
				entry, err := s.wallets.Credit(ctx, tx, models.Movement{
					UserID:    userID,
					Kind:      models.WalletInterest,
					Amount:    r.Bonus,
					Category:  models.CategoryRankingBonus,
					Reference: reference,
					Details:   fmt.Sprintf("Ranking bonus for %s", r.Name),
				})
				if err != nil {
					return err
				}
				entries = append(entries, *entry)
			}
			promoted = append(promoted, r)
		}
		user.RankingLevel = progress.Current.Level
		return tx.UpdateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	for _, r := range promoted {
		notify(ctx, s.log, s.notifier, userID, models.TemplateRankingPromotion, map[string]string{
			"ranking": r.Name,
			"bonus":   r.Bonus.String(),
		})
	}
	return entries, nil
}

package services

import (
	"context"
	"time"

	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCatalogSize = 512
	defaultCatalogTTL  = 30 * time.Second
)

// Catalog caches admin-owned configuration that engines read on every request.
// Entries expire after a TTL so admin edits are picked up without a restart.
type Catalog struct {
	store    repositories.Store
	plans    *expirable.LRU[int64, models.Plan]
	rules    *expirable.LRU[models.CommissionType, []models.ReferralRule]
	rankings *expirable.LRU[struct{}, []models.UserRanking]
}

func NewCatalog(store repositories.Store, size int, ttl time.Duration) *Catalog {
	if size <= 0 {
		size = defaultCatalogSize
	}
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	return &Catalog{
		store:    store,
		plans:    expirable.NewLRU[int64, models.Plan](size, nil, ttl),
		rules:    expirable.NewLRU[models.CommissionType, []models.ReferralRule](8, nil, ttl),
		rankings: expirable.NewLRU[struct{}, []models.UserRanking](1, nil, ttl),
	}
}

func (c *Catalog) Plan(ctx context.Context, planID int64) (models.Plan, error) {
	if plan, ok := c.plans.Get(planID); ok {
		return plan, nil
	}
	plan, err := c.store.GetPlan(ctx, planID)
	if err != nil {
		return models.Plan{}, err
	}
	c.plans.Add(planID, *plan)
	return *plan, nil
}

// ReferralRules returns the rules of one commission type ordered by level.
func (c *Catalog) ReferralRules(ctx context.Context, t models.CommissionType) ([]models.ReferralRule, error) {
	if rules, ok := c.rules.Get(t); ok {
		return rules, nil
	}
	rules, err := c.store.ListReferralRules(ctx, t)
	if err != nil {
		return nil, err
	}
	c.rules.Add(t, rules)
	return rules, nil
}

// Rankings returns every tier ordered by level.
func (c *Catalog) Rankings(ctx context.Context) ([]models.UserRanking, error) {
	if rankings, ok := c.rankings.Get(struct{}{}); ok {
		return rankings, nil
	}
	rankings, err := c.store.ListRankings(ctx)
	if err != nil {
		return nil, err
	}
	c.rankings.Add(struct{}{}, rankings)
	return rankings, nil
}

// Forget drops a plan so the next read goes to the store.
func (c *Catalog) Forget(planID int64) {
	c.plans.Remove(planID)
}

func (c *Catalog) Purge() {
	c.plans.Purge()
	c.rules.Purge()
	c.rankings.Purge()
}

package services

import (
	"context"
	"testing"
	"time"

	"hyip-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerService_Run(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 1, 0)
	env.fund(t, 1, models.WalletDeposit, "700")
	plan := env.plan(t, starterPlan())
	staking := env.store.PutStakingPlan(models.StakingPlan{Days: 1, InterestPercent: dec("5"), MinAmount: dec("1"), MaxAmount: dec("1000"), Active: true})

	_, err := env.Investments.Purchase(ctx, models.PurchaseRequest{UserID: 1, PlanID: plan.ID, Amount: dec("500"), WalletKind: models.WalletDeposit})
	require.NoError(t, err)
	_, err = env.Staking.Stake(ctx, StakeRequest{UserID: 1, StakingID: staking.ID, Amount: dec("200"), WalletKind: models.WalletDeposit})
	require.NoError(t, err)

	at := env.clock.Advance(24 * time.Hour)

	res, err := env.Triggers.Run(ctx, models.TriggerMessage{ID: "t-1", Job: models.JobAccrual, Cycle: 7, At: at})
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Job: models.JobAccrual, Processed: 1}, res)

	res, err = env.Triggers.Run(ctx, models.TriggerMessage{ID: "t-1", Job: models.JobAccrual, Cycle: 7, At: at})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed, "a redelivered trigger pays nothing")

	res, err = env.Triggers.Run(ctx, models.TriggerMessage{ID: "t-2", Job: models.JobStakingMaturity, At: at})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	res, err = env.Triggers.Run(ctx, models.TriggerMessage{ID: "t-3", Job: models.JobSchedule, At: at})
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Job: models.JobSchedule}, res)

	// 10 interest plus 200 principal and 10 staking interest.
	assertDecimal(t, "220", env.balance(t, 1, models.WalletInterest))
	env.assertReconciled(t)
}

func TestTriggerService_CyclelessAccrualUsesTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, 1, 0)
	env.fund(t, 1, models.WalletDeposit, "500")
	plan := env.plan(t, starterPlan())

	inv, err := env.Investments.Purchase(ctx, models.PurchaseRequest{UserID: 1, PlanID: plan.ID, Amount: dec("500"), WalletKind: models.WalletDeposit})
	require.NoError(t, err)

	at := env.clock.Advance(time.Hour)
	res, err := env.Triggers.Run(ctx, models.TriggerMessage{Job: models.JobAccrual, At: at})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, at.Unix(), env.investment(t, inv.ID).LastCycle)
}

func TestTriggerService_UnknownJob(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.Triggers.Run(context.Background(), models.TriggerMessage{Job: "payroll", At: epoch})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, "payroll", res.Job)
}

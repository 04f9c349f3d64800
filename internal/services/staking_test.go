package services

import (
	"context"
	"testing"
	"time"

	"hyip-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStakingService_StakeAndMature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 1, models.WalletDeposit, "150")
	plan := env.store.PutStakingPlan(models.StakingPlan{
		Days:            7,
		InterestPercent: dec("10"),
		MinAmount:       dec("10"),
		MaxAmount:       dec("500"),
		Active:          true,
	})

	stake, err := env.Staking.Stake(ctx, StakeRequest{UserID: 1, StakingID: plan.ID, Amount: dec("100"), WalletKind: models.WalletDeposit})
	require.NoError(t, err)
	assertDecimal(t, "10", stake.Interest)
	assert.Equal(t, epoch.AddDate(0, 0, 7), stake.EndAt)
	assert.NotEmpty(t, stake.ReferenceCode)
	assertDecimal(t, "50", env.balance(t, 1, models.WalletDeposit))

	res, err := env.Staking.RunMaturity(ctx, env.clock.Advance(6*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assertDecimal(t, "0", env.balance(t, 1, models.WalletInterest))

	now := env.clock.Advance(24 * time.Hour)
	res, err = env.Staking.RunMaturity(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Job: models.JobStakingMaturity, Processed: 1}, res)
	assertDecimal(t, "110", env.balance(t, 1, models.WalletInterest))

	res, err = env.Staking.RunMaturity(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assertDecimal(t, "110", env.balance(t, 1, models.WalletInterest))

	assert.Equal(t, []string{models.TemplateStakingMatured}, env.notifier.templates(1))
	env.assertReconciled(t)
}

func TestStakingService_StakeRejections(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, 1, models.WalletDeposit, "50")
	active := env.store.PutStakingPlan(models.StakingPlan{Days: 1, InterestPercent: dec("1"), MinAmount: dec("10"), MaxAmount: dec("100"), Active: true})
	inactive := env.store.PutStakingPlan(models.StakingPlan{Days: 1, InterestPercent: dec("1"), MinAmount: dec("10"), MaxAmount: dec("100")})

	tests := []struct {
		name    string
		req     StakeRequest
		wantErr error
	}{
		{"unknown plan", StakeRequest{UserID: 1, StakingID: 999, Amount: dec("20"), WalletKind: models.WalletDeposit}, models.ErrNotFound},
		{"inactive plan", StakeRequest{UserID: 1, StakingID: inactive.ID, Amount: dec("20"), WalletKind: models.WalletDeposit}, models.ErrPlanInactive},
		{"below minimum", StakeRequest{UserID: 1, StakingID: active.ID, Amount: dec("5"), WalletKind: models.WalletDeposit}, models.ErrInvalidAmount},
		{"above maximum", StakeRequest{UserID: 1, StakingID: active.ID, Amount: dec("101"), WalletKind: models.WalletDeposit}, models.ErrInvalidAmount},
		{"insufficient balance", StakeRequest{UserID: 1, StakingID: active.ID, Amount: dec("60"), WalletKind: models.WalletDeposit}, models.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Staking.Stake(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assertDecimal(t, "50", env.balance(t, 1, models.WalletDeposit))
}

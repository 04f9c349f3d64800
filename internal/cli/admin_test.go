package cli

import (
	"context"
	"testing"

	"hyip-ledger/internal/config"
	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories/memrepo"
	"hyip-ledger/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCheckWallets(t *testing.T) {
	ctx := context.Background()
	svc := services.New(services.Deps{
		Store:  memrepo.New(),
		Logger: zap.NewNop(),
		Ledger: config.LedgerConfig{BusyRetries: 1},
	})
	_, err := svc.Referrals.Register(ctx, 1, 0)
	require.NoError(t, err)
	_, err = svc.Wallets.Adjust(ctx, services.AdjustRequest{UserID: 1, Kind: models.WalletDeposit, Amount: decimal.NewFromInt(50), Add: true})
	require.NoError(t, err)

	reports, err := checkWallets(ctx, svc.Reconciler, 1)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, models.WalletDeposit, reports[0].Kind)
	assert.True(t, reports[0].OK())
	assert.Equal(t, 1, reports[0].Entries)

	all, err := checkWallets(ctx, svc.Reconciler, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestParseUserID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"7", 7, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"alice", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseUserID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTriggerArgs(t *testing.T) {
	assert.NoError(t, triggerCmd.Args(triggerCmd, []string{models.JobAccrual}))
	assert.NoError(t, triggerCmd.Args(triggerCmd, []string{models.JobStakingMaturity}))
	assert.Error(t, triggerCmd.Args(triggerCmd, []string{"payroll"}))
	assert.Error(t, triggerCmd.Args(triggerCmd, nil))
}

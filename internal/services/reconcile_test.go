package services

import (
	"context"
	"testing"
	"time"

	"hyip-ledger/internal/config"
	"hyip-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciler_DetectsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 1, models.WalletDeposit, "100")
	env.fund(t, 2, models.WalletDeposit, "40")

	report, err := env.Reconciler.Check(ctx, 1, models.WalletDeposit)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Entries)

	// Move the balance without a ledger entry.
	tx, err := env.store.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.LockWallet(ctx, 1, models.WalletDeposit)
	require.NoError(t, err)
	require.NoError(t, tx.UpdateWalletBalance(ctx, 1, models.WalletDeposit, dec("150")))
	require.NoError(t, tx.Commit())

	report, err = env.Reconciler.Check(ctx, 1, models.WalletDeposit)
	assert.ErrorIs(t, err, models.ErrIntegrity)
	require.NotNil(t, report)
	assert.False(t, report.OK())
	assertDecimal(t, "150", report.Balance)
	assertDecimal(t, "100", report.LedgerSum)

	reports, err := env.Reconciler.CheckAll(ctx)
	assert.ErrorIs(t, err, models.ErrIntegrity)
	assert.Len(t, reports, 2)
}

func TestReconciler_BrokenChain(t *testing.T) {
	entries := []models.LedgerEntry{
		{ID: 1, Direction: models.DirectionCredit, Amount: dec("10"), PostBalance: dec("10")},
		{ID: 2, Direction: models.DirectionCredit, Amount: dec("5"), PostBalance: dec("16")},
		{ID: 3, Direction: models.DirectionDebit, Amount: dec("5"), PostBalance: dec("10")},
	}
	report := replay(1, models.WalletInterest, dec("10"), entries)
	assertDecimal(t, "10", report.LedgerSum)
	assert.Equal(t, int64(2), report.BrokenEntryID)
	assert.False(t, report.OK())
}

func TestReconciler_UnknownKind(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Reconciler.Check(context.Background(), 1, models.WalletKind("bonus"))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestHolidayPolicy(t *testing.T) {
	christmas := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	h := NewHolidayPolicy(config.HolidayConfig{
		OffDays: []time.Weekday{time.Saturday, time.Sunday},
		Dates:   []time.Time{christmas},
	})

	tests := []struct {
		name        string
		at          time.Time
		holiday     bool
		nextWorking time.Time
	}{
		{"weekday", epoch, false, epoch},
		{"saturday", time.Date(2025, 3, 8, 9, 30, 0, 0, time.UTC), true, time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)},
		{"listed date", time.Date(2025, 12, 25, 18, 0, 0, 0, time.UTC), true, time.Date(2025, 12, 26, 18, 0, 0, 0, time.UTC)},
		{"friday after a listed thursday", time.Date(2025, 12, 26, 8, 0, 0, 0, time.UTC), false, time.Date(2025, 12, 26, 8, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.holiday, h.IsHoliday(tt.at))
			assert.Equal(t, tt.nextWorking, h.NextWorkingDay(tt.at))
			if tt.holiday {
				assert.ErrorIs(t, h.Check(tt.at), models.ErrHoliday)
			} else {
				assert.NoError(t, h.Check(tt.at))
			}
		})
	}

	everyDay := NewHolidayPolicy(config.HolidayConfig{OffDays: []time.Weekday{0, 1, 2, 3, 4, 5, 6}})
	assert.Equal(t, epoch, everyDay.NextWorkingDay(epoch), "a calendar without working days leaves the time alone")

	overridden := NewHolidayPolicy(config.HolidayConfig{OffDays: []time.Weekday{time.Monday}, Override: true})
	assert.True(t, overridden.IsHoliday(epoch))
	assert.NoError(t, overridden.Check(epoch))
}

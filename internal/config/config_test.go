package config

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := New("testdata/does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "ledger-worker", cfg.Kafka.ConsumerGroup)
	assert.Equal(t, 25, cfg.Postgres.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Postgres.ConnMaxLifetime)
	assert.Equal(t, 5*time.Second, cfg.Postgres.PingTimeout)
	assert.Equal(t, 5*time.Second, cfg.Worker.ProcessingInterval)
	assert.Equal(t, 5, cfg.Ledger.BusyRetries)
	assert.Equal(t, 20*time.Millisecond, cfg.Ledger.BusyBackoff)
	assert.True(t, cfg.Ledger.TransferFixedCharge.IsZero())
	assert.False(t, cfg.Holiday.Override)
}

func TestNew_FromEnvironment(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("POSTGRES_MAX_OPEN_CONNS", "50")
	t.Setenv("LEDGER_TRANSFER_PERCENT_CHARGE", "1.5")
	t.Setenv("HOLIDAY_OFF_DAYS", "Saturday,sunday")
	t.Setenv("HOLIDAY_DATES", "2025-12-25")
	t.Setenv("HOLIDAY_OVERRIDE", "true")

	cfg, err := New("testdata/does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 50, cfg.Postgres.MaxOpenConns)
	assert.Equal(t, "1.5", cfg.Ledger.TransferPercentCharge.String())
	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, cfg.Holiday.OffDays)
	require.Len(t, cfg.Holiday.Dates, 1)
	assert.Equal(t, time.December, cfg.Holiday.Dates[0].Month())
	assert.True(t, cfg.Holiday.Override)
}

func TestNew_RejectsBadHoliday(t *testing.T) {
	t.Setenv("HOLIDAY_OFF_DAYS", "funday")

	_, err := New("testdata/does-not-exist.env")
	assert.Error(t, err)
}

func TestGetSaramaConfig(t *testing.T) {
	k := KafkaConfig{Version: "2.8.0", ConsumerGroup: "ledger-worker"}
	sc := k.GetSaramaConfig()

	assert.True(t, sc.Consumer.Return.Errors)
	assert.Equal(t, "2.8.0", sc.Version.String())
	assert.Equal(t, "ledger-worker", sc.ClientID)
	assert.True(t, sc.Consumer.Offsets.AutoCommit.Enable)
	assert.Equal(t, time.Second, sc.Consumer.Offsets.AutoCommit.Interval)
	require.Len(t, sc.Consumer.Group.Rebalance.GroupStrategies, 1)
	assert.Equal(t, sarama.StickyBalanceStrategyName, sc.Consumer.Group.Rebalance.GroupStrategies[0].Name())
	assert.NoError(t, sc.Validate())
}

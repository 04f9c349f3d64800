package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Worker   WorkerConfig
	Ledger   LedgerConfig
	Holiday  HolidayConfig
	LogLevel string
}

type ServerConfig struct {
	Port string
}

type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

type KafkaConfig struct {
	Brokers           []string
	NotificationTopic string
	TriggerTopic      string
	// Sarama-specific
	Version       string
	ConsumerGroup string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type WorkerConfig struct {
	ProcessingInterval time.Duration
}

type LedgerConfig struct {
	BusyRetries  int
	BusyBackoff  time.Duration
	CacheTTL     time.Duration
	CatalogSize  int
	CatalogTTL   time.Duration
	BatchWorkers int
	// Balance transfer fee: fixed + amount*percent/100
	TransferFixedCharge   decimal.Decimal
	TransferPercentCharge decimal.Decimal
}

type HolidayConfig struct {
	OffDays  []time.Weekday
	Dates    []time.Time
	Override bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", ":8080")
	v.SetDefault("POSTGRES_MAX_OPEN_CONNS", 25)
	v.SetDefault("POSTGRES_MAX_IDLE_CONNS", 5)
	v.SetDefault("POSTGRES_CONN_MAX_LIFETIME", 300)
	v.SetDefault("POSTGRES_PING_TIMEOUT", 5)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_NOTIFICATION_TOPIC", "ledger.notifications")
	v.SetDefault("KAFKA_TRIGGER_TOPIC", "ledger.triggers")
	v.SetDefault("KAFKA_CONSUMER_GROUP", "ledger-worker")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("WORKER_PROCESSING_INTERVAL", 5)
	v.SetDefault("LEDGER_BUSY_RETRIES", 5)
	v.SetDefault("LEDGER_BUSY_BACKOFF_MS", 20)
	v.SetDefault("LEDGER_CACHE_TTL", 300)
	v.SetDefault("LEDGER_CATALOG_SIZE", 512)
	v.SetDefault("LEDGER_CATALOG_TTL", 30)
	v.SetDefault("LEDGER_BATCH_WORKERS", 8)
	v.SetDefault("LEDGER_TRANSFER_FIXED_CHARGE", "0")
	v.SetDefault("LEDGER_TRANSFER_PERCENT_CHARGE", "0")
	v.SetDefault("HOLIDAY_OFF_DAYS", "")
	v.SetDefault("HOLIDAY_DATES", "")
	v.SetDefault("HOLIDAY_OVERRIDE", false)
	v.SetDefault("LOG_LEVEL", "info")
}

// New reads configuration from the environment. A .env file in the working directory
// (or the given files) is loaded first and never overrides variables already set.
func New(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	holiday, err := parseHoliday(v.GetString("HOLIDAY_OFF_DAYS"), v.GetString("HOLIDAY_DATES"))
	if err != nil {
		return nil, fmt.Errorf("invalid holiday config: %w", err)
	}
	holiday.Override = v.GetBool("HOLIDAY_OVERRIDE")

	fixedCharge, err := decimal.NewFromString(v.GetString("LEDGER_TRANSFER_FIXED_CHARGE"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_TRANSFER_FIXED_CHARGE: %w", err)
	}
	percentCharge, err := decimal.NewFromString(v.GetString("LEDGER_TRANSFER_PERCENT_CHARGE"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_TRANSFER_PERCENT_CHARGE: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Port: v.GetString("SERVER_PORT"),
		},
		Postgres: PostgresConfig{
			URL:             v.GetString("POSTGRES_URL"),
			MaxOpenConns:    v.GetInt("POSTGRES_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("POSTGRES_MAX_IDLE_CONNS"),
			ConnMaxLifetime: time.Duration(v.GetInt("POSTGRES_CONN_MAX_LIFETIME")) * time.Second,
			PingTimeout:     time.Duration(v.GetInt("POSTGRES_PING_TIMEOUT")) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:           splitList(v.GetString("KAFKA_BROKERS")),
			NotificationTopic: v.GetString("KAFKA_NOTIFICATION_TOPIC"),
			TriggerTopic:      v.GetString("KAFKA_TRIGGER_TOPIC"),
			Version:           v.GetString("KAFKA_VERSION"),
			ConsumerGroup:     v.GetString("KAFKA_CONSUMER_GROUP"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			PoolSize: v.GetInt("REDIS_POOL_SIZE"),
		},
		Worker: WorkerConfig{
			ProcessingInterval: time.Duration(v.GetInt("WORKER_PROCESSING_INTERVAL")) * time.Second,
		},
		Ledger: LedgerConfig{
			BusyRetries:  v.GetInt("LEDGER_BUSY_RETRIES"),
			BusyBackoff:  time.Duration(v.GetInt("LEDGER_BUSY_BACKOFF_MS")) * time.Millisecond,
			CacheTTL:     time.Duration(v.GetInt("LEDGER_CACHE_TTL")) * time.Second,
			CatalogSize:  v.GetInt("LEDGER_CATALOG_SIZE"),
			CatalogTTL:   time.Duration(v.GetInt("LEDGER_CATALOG_TTL")) * time.Second,
			BatchWorkers: v.GetInt("LEDGER_BATCH_WORKERS"),

			TransferFixedCharge:   fixedCharge,
			TransferPercentCharge: percentCharge,
		},
		Holiday:  holiday,
		LogLevel: v.GetString("LOG_LEVEL"),
	}, nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

// parseHoliday reads comma separated weekday names and YYYY-MM-DD dates.
func parseHoliday(offDays, dates string) (HolidayConfig, error) {
	var h HolidayConfig
	for _, name := range splitList(offDays) {
		day, ok := weekdays[strings.ToLower(name)]
		if !ok {
			return h, fmt.Errorf("unknown weekday %q", name)
		}
		h.OffDays = append(h.OffDays, day)
	}
	for _, d := range splitList(dates) {
		t, err := time.Parse(time.DateOnly, d)
		if err != nil {
			return h, fmt.Errorf("bad holiday date %q: %w", d, err)
		}
		h.Dates = append(h.Dates, t)
	}
	return h, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (k *KafkaConfig) GetSaramaConfig() *sarama.Config {
	config := sarama.NewConfig()

	if k.Version != "" {
		version, err := sarama.ParseKafkaVersion(k.Version)
		if err == nil {
			config.Version = version
		}
	}

	if k.ConsumerGroup != "" {
		config.ClientID = k.ConsumerGroup
	}

	// Consumer group settings. Offsets are marked only after a batch ran, so a worker
	// that was down resumes from the last processed trigger. A group with no committed
	// offset starts at the newest message.
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.AutoCommit.Enable = true
	config.Consumer.Offsets.AutoCommit.Interval = time.Second
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}

	// Triggers are tiny; favour latency over batch size
	config.Consumer.Fetch.Min = 1
	config.Consumer.Fetch.Default = 64 * 1024
	config.Consumer.MaxWaitTime = 100 * time.Millisecond

	config.Net.MaxOpenRequests = 5
	config.Net.DialTimeout = 30 * time.Second
	config.Net.ReadTimeout = 30 * time.Second
	config.Net.WriteTimeout = 30 * time.Second

	return config
}

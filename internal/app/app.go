package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"hyip-ledger/internal/broker"
	"hyip-ledger/internal/cache"
	"hyip-ledger/internal/config"
	"hyip-ledger/internal/database"
	"hyip-ledger/internal/metrics"
	"hyip-ledger/internal/repositories/kafkarepo"
	"hyip-ledger/internal/repositories/postgresrepo"
	"hyip-ledger/internal/repositories/redisrepo"
	"hyip-ledger/internal/services"
	"hyip-ledger/internal/transport/http/handler"
	"hyip-ledger/internal/worker"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// App owns the connections shared by the API server and the trigger worker.
type App struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *sqlx.DB
	redis    *redis.Client
	writer   *kafka.Writer
	metrics  *metrics.Recorder
	services *services.Services
}

// @title HYIP Ledger API
// @version 1.0
// @description Wallet ledger, investment accrual and payout workflows.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log, metrics: metrics.New()}

	// Connect to database
	db, err := database.NewPostgres(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("database connection error: %w", err)
	}
	a.db = db

	// Connect to cache; an empty address runs without the balance cache
	var balanceCache services.BalanceCache
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("cache connection error: %w", err)
		}
		a.redis = client
		balanceCache = redisrepo.NewWalletRepository(client, cfg.Ledger.CacheTTL)
	}

	// Notifications never hold a request open: the writer queues and delivers in the background.
	writer, err := broker.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic, broker.Async(log))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("broker connection error: %w", err)
	}
	a.writer = writer

	a.services = services.New(services.Deps{
		Store:    postgresrepo.NewStore(db),
		Cache:    balanceCache,
		Notifier: kafkarepo.NewNotificationRepository(writer),
		Metrics:  a.metrics,
		Logger:   log,
		Ledger:   cfg.Ledger,
		Holiday:  cfg.Holiday,
	})

	return a, nil
}

func (a *App) Services() *services.Services {
	return a.services
}

// Serve runs the HTTP API until ctx is canceled, then drains in-flight requests.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.cfg.Server.Port,
		Handler:      handler.NewRouter(a.services, a.metrics, a.log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}
	return <-errCh
}

// Work consumes the trigger topic until ctx is canceled.
func (a *App) Work(ctx context.Context) error {
	if a.cfg.Worker.ProcessingInterval <= 0 {
		return fmt.Errorf("worker processing interval must be positive, got %s", a.cfg.Worker.ProcessingInterval)
	}
	manager := worker.NewPartitionManager(a.cfg, a.services.Triggers, a.log)
	return manager.Start(ctx)
}

func (a *App) Close() error {
	var errs []error
	if a.writer != nil {
		errs = append(errs, a.writer.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

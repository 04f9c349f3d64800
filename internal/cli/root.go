package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hyip-ledger/internal/app"
	"hyip-ledger/internal/config"
	"hyip-ledger/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:          "ledgerd",
	Short:        "HYIP wallet ledger and accrual engine",
	Version:      "0.1.0",
	SilenceUsage: true,
}

// Execute is called by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "dotenv file loaded before the environment is read")
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.New(files...)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// withApp builds the application, runs fn with a context canceled on SIGINT or SIGTERM
// and releases the connections afterwards.
func withApp(fn func(ctx context.Context, a *app.App, log *zap.Logger) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("error creating an application instance: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("failed to close connections", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fn(ctx, a, log)
}

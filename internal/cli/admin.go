package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"hyip-ledger/internal/app"
	"hyip-ledger/internal/broker"
	"hyip-ledger/internal/database"
	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories/kafkarepo"
	"hyip-ledger/internal/services"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		if err := database.Migrate(cfg.Postgres.URL); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [user]",
	Short: "Check wallet balances against their ledger",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var userID int64
		if len(args) == 1 {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			userID = id
		}

		return withApp(func(ctx context.Context, a *app.App, log *zap.Logger) error {
			reports, err := checkWallets(ctx, a.Services().Reconciler, userID)
			if err != nil && !errors.Is(err, models.ErrIntegrity) {
				return err
			}
			var drifted int
			for _, r := range reports {
				if !r.OK() {
					drifted++
				}
			}
			out, err := json.MarshalIndent(reports, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if drifted > 0 {
				return fmt.Errorf("%d of %d wallets drifted: %w", drifted, len(reports), models.ErrIntegrity)
			}
			log.Info("all wallets reconciled", zap.Int("wallets", len(reports)))
			return nil
		})
	},
}

var (
	triggerCycle int64
	triggerAt    string
)

var triggerCmd = &cobra.Command{
	Use:       "trigger <accrual|schedule|staking_maturity>",
	Short:     "Publish a periodic job trigger for the worker",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{models.JobAccrual, models.JobSchedule, models.JobStakingMaturity},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		at := time.Now().UTC()
		if triggerAt != "" {
			if at, err = time.Parse(time.RFC3339, triggerAt); err != nil {
				return fmt.Errorf("invalid --at: %w", err)
			}
		}

		writer, err := broker.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.TriggerTopic)
		if err != nil {
			return err
		}
		defer writer.Close()

		id, err := kafkarepo.NewTriggerRepository(writer).SendTrigger(cmd.Context(), args[0], triggerCycle, at)
		if err != nil {
			return err
		}
		log.Info("trigger published", zap.String("trigger_id", id), zap.String("job", args[0]))
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	triggerCmd.Flags().Int64Var(&triggerCycle, "cycle", 0, "accrual cycle number (defaults to the unix time of --at)")
	triggerCmd.Flags().StringVar(&triggerAt, "at", "", "RFC3339 instant the job runs as of (defaults to now)")

	rootCmd.AddCommand(migrateCmd, reconcileCmd, triggerCmd)
}

// checkWallets reconciles one user's wallets, or every wallet when userID is zero.
func checkWallets(ctx context.Context, r *services.Reconciler, userID int64) ([]services.ReconcileReport, error) {
	if userID == 0 {
		return r.CheckAll(ctx)
	}
	var reports []services.ReconcileReport
	for _, kind := range []models.WalletKind{models.WalletDeposit, models.WalletInterest} {
		report, err := r.Check(ctx, userID, kind)
		if report != nil {
			reports = append(reports, *report)
		}
		if err != nil && !errors.Is(err, models.ErrIntegrity) {
			return reports, err
		}
	}
	return reports, nil
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}

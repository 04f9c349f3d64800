package cli

import (
	"context"

	"hyip-ledger/internal/app"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App, _ *zap.Logger) error {
			return a.Serve(ctx)
		})
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume periodic job triggers from Kafka",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App, _ *zap.Logger) error {
			return a.Work(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, workerCmd)
}

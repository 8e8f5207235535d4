package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ancylx/FontSniffer/internal/config"
	"github.com/Ancylx/FontSniffer/internal/logging"
)

var cfgFile string

// appKeyType is the key for storing the app in the command context.
type appKeyType string

const appKey appKeyType = "app"

// app bundles the services every subcommand needs. It is built once in
// PersistentPreRunE and injected through the command context.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func (a *app) close() {
	// Sync flushes buffered log entries; stderr often rejects the syscall,
	// which is harmless.
	_ = a.logger.Sync()
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fontsniffer",
		Short: "Concurrent font search across downcc.com listing pages.",
		Long: `fontsniffer searches the downcc.com font catalog for fonts matching a
keyword. It fans page fetches out across a worker pool, retries transient
failures, deduplicates results by download URL, and prints the collected
fonts together with per-page fetch statistics.`,

		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs after flags are parsed but before the subcommand's RunE;
		// builds the config and logger and injects them for subcommands.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, &app{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app); ok && a != nil {
				a.close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional; defaults and FONTSNIFFER_* env vars apply without one)")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// resolveApp retrieves the injected app from the command context.
func resolveApp(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey).(*app)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

// Execute runs the root command with signal-driven cancellation. SIGINT and
// SIGTERM cancel the context; in-flight work drains cooperatively.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fontsniffer: %v\n", err)
		os.Exit(1)
	}
}

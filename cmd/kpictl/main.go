// Command kpictl runs administrative tasks against the KPI evaluation
// database without going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"kpieval/internal/app/server"
	"kpieval/internal/domain/auth"
	"kpieval/internal/domain/evaluation"
	"kpieval/internal/domain/notifications"
	"kpieval/internal/platform/config"
	"kpieval/internal/platform/db"
)

var (
	jsonOutput bool
	actorID    int64
)

var rootCmd = &cobra.Command{
	Use:   "kpictl",
	Short: "Administer KPI evaluation cycles",
	Long: `kpictl reads the same configuration as the server (KPIEVAL_CONFIG and
environment variables) and talks to the database directly.

Examples:
  kpictl migrate
  kpictl seed
  kpictl gates 0b7c6c1e-5f7e-4c1b-9a55-0d0f3c7d2a10
  kpictl activity 0b7c6c1e-... EVALUATE --enabled --start 2026-06-01 --end 2026-06-30
  kpictl close-cycle 0b7c6c1e-...`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().Int64Var(&actorID, "actor", 1, "User id recorded as the acting administrator")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(gatesCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(closeCycleCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	server.ConfigureLogging(cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// withPool runs fn with a connected pool and closes it afterwards.
func withPool(ctx context.Context, fn func(cfg config.Config, pool *db.Pool) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()
	return fn(cfg, pool)
}

func withService(ctx context.Context, fn func(svc *evaluation.Service, admin auth.UserContext) error) error {
	return withPool(ctx, func(cfg config.Config, pool *db.Pool) error {
		svc := evaluation.NewService(evaluation.NewStore(pool, cfg.TxRetryMaxElapsed), notifications.NewDispatcher(nil))
		return fn(svc, auth.UserContext{UserID: actorID, IsAdmin: true})
	})
}

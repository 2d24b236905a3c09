package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kpieval/internal/platform/config"
	"kpieval/internal/platform/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd.Context(), func(_ config.Config, pool *db.Pool) error {
			if err := db.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the bootstrap admin account from SEED_ADMIN_EMAIL/SEED_ADMIN_PASSWORD",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd.Context(), func(cfg config.Config, pool *db.Pool) error {
			if err := db.Seed(cmd.Context(), pool, cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seed complete")
			return nil
		})
	},
}

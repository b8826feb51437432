package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobmate/proposal-service/internal/config"
	"jobmate/proposal-service/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	pool, err := db.NewPostgresPool(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(cmd.Context(), pool); err != nil {
		return err
	}
	v, err := db.MigrationVersion(cmd.Context(), pool)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", "version", v)
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}

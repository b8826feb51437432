package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"jobmate/proposal-service/internal/config"
)

var runUser string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one automation cycle for a user",
	Long: `Runs a single discovery, matching and proposal cycle for the given user and
prints the cycle report as JSON. Scheduling is not started.`,
	RunE: runCycle,
}

func init() {
	runCmd.Flags().StringVarP(&runUser, "user", "u", "", "User id to run the cycle for")
	_ = runCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(runCmd)
}

func runCycle(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()
	defer a.orch.Shutdown(context.Background())

	report, err := a.orch.RunManual(cmd.Context(), runUser)
	if report != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report); encErr != nil {
			return encErr
		}
	}
	return err
}

// jobmate-proposal-service
//
// Opportunity discovery, matching and proposal automation for freelancers.
// Polls the marketplaces each user is connected to, scores every new posting
// against the user's profile and policy, auto-submits proposals for strong
// matches within the daily quota, and notifies the user.
//
// Commands:
//   - serve             HTTP + gRPC control plane and per-user scheduler
//   - run --user <id>   one cycle for one user, report printed as JSON
//   - migrate           apply database migrations
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:           "proposal-service",
	Short:         "Freelance opportunity discovery and proposal automation",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

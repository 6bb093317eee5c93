// File: cmd/run.go
// Description: One-shot mode: process a single request and exit. Gated plans
// are rejected unless --yes pre-approves them.
package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Firstp1ck/android-agent/api/schemas"
)

var runAutoApprove bool

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Process a single request non-interactively",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer p.close()

		query := schemas.Query{
			ID:        uuid.NewString(),
			Text:      strings.Join(args, " "),
			Timestamp: time.Now(),
		}
		resp := p.orchestrator.ProcessQuery(cmd.Context(), query)

		if resp.Status == schemas.StatusAwaitingConsent && resp.Plan != nil {
			choice := schemas.ConsentRejected
			reason := "non-interactive session without --yes"
			if runAutoApprove {
				choice = schemas.ConsentApproved
				reason = ""
			}
			resp = p.orchestrator.HandleConsent(cmd.Context(), schemas.ConsentDecision{
				PlanID: resp.Plan.ID, Choice: choice, Reason: reason,
			})
		}

		printResponse(cmd.OutOrStdout(), resp)
		if resp.Status == schemas.StatusFailed {
			return fmt.Errorf("request failed")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVarP(&runAutoApprove, "yes", "y", false, "approve the plan without prompting")
	rootCmd.AddCommand(runCmd)
}

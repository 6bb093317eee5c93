// File: cmd/chat.go
// Description: Interactive session. Reads queries line by line, prints plans
// at the consent boundary and forwards the user's approve/reject/modify
// decision to the orchestrator.
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Firstp1ck/android-agent/api/schemas"
	"github.com/Firstp1ck/android-agent/internal/agent"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive agent session",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer p.close()

		p.orchestrator.SetProgressFunc(func(pr agent.Progress) {
			fmt.Fprintf(cmd.OutOrStdout(), "  [%d/%d] executing...\n", pr.Step, pr.Total)
		})

		return runChatLoop(cmd, p.orchestrator)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChatLoop(cmd *cobra.Command, orch *agent.Orchestrator) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())

	fmt.Fprintln(out, "android-agent ready. Type a request, or /help for commands.")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && err != io.EOF {
				return err
			}
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/exit", "/quit":
			return nil
		case "/help":
			fmt.Fprintln(out, "  /history  show the conversation log")
			fmt.Fprintln(out, "  /stats    show experience cache statistics")
			fmt.Fprintln(out, "  /clear    clear the conversation log")
			fmt.Fprintln(out, "  /exit     leave the session")
			continue
		case "/history":
			for _, entry := range orch.History() {
				fmt.Fprintf(out, "  %s %s: %s\n", entry.Timestamp.Format("15:04:05"), entry.Role, entry.Text)
			}
			continue
		case "/stats":
			stats, err := orch.Stats(cmd.Context())
			if err != nil {
				fmt.Fprintf(out, "  stats unavailable: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "  templates=%d executions=%d avg_success=%.2f\n",
				stats.TemplateCount, stats.TotalExecutions, stats.AverageSuccessRate)
			continue
		case "/clear":
			orch.ClearHistory()
			fmt.Fprintln(out, "  conversation cleared")
			continue
		}

		query := schemas.Query{ID: uuid.NewString(), Text: line, Timestamp: time.Now()}
		resp := orch.ProcessQuery(cmd.Context(), query)

		if resp.Status == schemas.StatusAwaitingConsent && resp.Plan != nil {
			resp = resolveConsent(cmd, scanner, orch, *resp.Plan)
		}
		printResponse(out, resp)
	}
}

// resolveConsent shows the parked plan and reads one decision: y approves,
// n rejects, m keeps only the listed step numbers.
func resolveConsent(cmd *cobra.Command, scanner *bufio.Scanner, orch *agent.Orchestrator, plan schemas.ActionPlan) schemas.AgentResponse {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Plan: %s (safety: %s)\n", plan.Description, plan.SafetyLevel)
	for i, action := range plan.Actions {
		meta := action.Meta()
		fmt.Fprintf(out, "  %d. %s [%s]\n", i+1, meta.Description, meta.Safety)
	}
	fmt.Fprint(out, "Execute? [y]es / [n]o / [m]odify: ")

	if !scanner.Scan() {
		return orch.HandleConsent(cmd.Context(), schemas.ConsentDecision{
			PlanID: plan.ID, Choice: schemas.ConsentRejected, Reason: "input closed",
		})
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))

	switch answer {
	case "y", "yes":
		return orch.HandleConsent(cmd.Context(), schemas.ConsentDecision{
			PlanID: plan.ID, Choice: schemas.ConsentApproved,
		})
	case "m", "modify":
		fmt.Fprint(out, "Step numbers to keep (comma separated): ")
		if !scanner.Scan() {
			return orch.HandleConsent(cmd.Context(), schemas.ConsentDecision{
				PlanID: plan.ID, Choice: schemas.ConsentRejected, Reason: "input closed",
			})
		}
		kept := keepSteps(plan.Actions, scanner.Text())
		modified := schemas.NewActionPlan(plan.ID, plan.Description, kept, false, plan.RollbackActions)
		return orch.HandleConsent(cmd.Context(), schemas.ConsentDecision{
			PlanID: plan.ID, Choice: schemas.ConsentModified, ModifiedPlan: &modified,
		})
	default:
		return orch.HandleConsent(cmd.Context(), schemas.ConsentDecision{
			PlanID: plan.ID, Choice: schemas.ConsentRejected, Reason: "declined",
		})
	}
}

// keepSteps filters actions down to the 1-based step numbers in the input.
func keepSteps(actions []schemas.Action, input string) []schemas.Action {
	var kept []schemas.Action
	for _, field := range strings.Split(input, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || n < 1 || n > len(actions) {
			continue
		}
		kept = append(kept, actions[n-1])
	}
	return kept
}

func printResponse(out io.Writer, resp schemas.AgentResponse) {
	switch resp.Status {
	case schemas.StatusCompleted:
		fmt.Fprintf(out, "%s (%.1fs)\n", resp.Message, resp.Latency.Seconds())
	case schemas.StatusCancelled:
		fmt.Fprintln(out, "cancelled")
	default:
		fmt.Fprintf(out, "%s: %s\n", strings.ToLower(string(resp.Status)), resp.Message)
	}
	for _, r := range resp.Results {
		mark := "ok"
		detail := r.Message
		if !r.Success {
			mark = "failed"
			detail = r.Error
		}
		fmt.Fprintf(out, "  - %s: %s\n", mark, detail)
	}
}

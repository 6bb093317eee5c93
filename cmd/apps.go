// File: cmd/apps.go
// Description: Lists the launchable apps the resolution cache would see.
// Useful for checking why a spoken app name resolves the way it does.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Firstp1ck/android-agent/internal/automation"
	"github.com/Firstp1ck/android-agent/internal/observability"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List launchable apps on the connected device",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := automation.NewADBBackend(cfg.Automation, observability.GetLogger())
		apps, err := backend.ListLaunchable(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list apps: %w", err)
		}
		for _, app := range apps {
			fmt.Fprintf(cmd.OutOrStdout(), "%-30s %s\n", app.Label, app.Package)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d apps\n", len(apps))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(appsCmd)
}

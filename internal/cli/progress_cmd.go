package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newProgressCmd(app *App, user userResolver) *cobra.Command {
	var planFlag string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show completion, consistency and streak of a plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID, planID, err := resolvePlan(ctx, user, planFlag)
			if err != nil {
				return err
			}
			progress, err := app.Progress.PlanProgress(ctx, userID, planID)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(app.out())
				enc.SetIndent("", "  ")
				return enc.Encode(progress)
			}
			fmt.Fprint(app.out(), formatProgress(progress))
			return nil
		},
	}

	cmd.Flags().StringVar(&planFlag, "plan", "", "Plan ID")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

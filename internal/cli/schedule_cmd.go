package cli

import (
	"alcyxob/workout-planner/internal/calendar"
	"alcyxob/workout-planner/internal/domain"
	"alcyxob/workout-planner/internal/service"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newScheduleCmd(app *App, user userResolver) *cobra.Command {
	var planFlag, fileFlag string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show the day-by-day calendar of a plan",
		Long: "Shows the stored schedule of --plan, or previews the schedule of a plan\n" +
			"definition in --file (JSON) without touching the database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fileFlag != "" {
				return previewSchedule(app, fileFlag)
			}
			ctx := cmd.Context()
			userID, planID, err := resolvePlan(ctx, user, planFlag)
			if err != nil {
				return err
			}
			days, err := app.Schedule.GetSchedule(ctx, userID, planID)
			if err != nil {
				return err
			}
			fmt.Fprint(app.out(), formatSchedule(days))
			return nil
		},
	}

	cmd.Flags().StringVar(&planFlag, "plan", "", "Plan ID")
	cmd.Flags().StringVar(&fileFlag, "file", "", "Plan definition to preview")
	cmd.MarkFlagsMutuallyExclusive("plan", "file")
	cmd.MarkFlagsOneRequired("plan", "file")

	return cmd
}

func previewSchedule(app *App, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading plan file: %w", err)
	}
	var plan domain.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return fmt.Errorf("decoding plan file: %w", err)
	}
	if err := service.ValidatePlan(&plan); err != nil {
		return err
	}
	loc, err := calendar.LoadLocation(plan.Timezone)
	if err != nil {
		return err
	}
	days, warnings, err := service.BuildLedger(&plan, loc)
	if err != nil {
		return err
	}
	fmt.Fprint(app.out(), formatWarnings(warnings))
	fmt.Fprint(app.out(), formatSchedule(days))
	return nil
}

func newMaterializeCmd(app *App, user userResolver) *cobra.Command {
	var planFlag string

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Rebuild the schedule of a plan from its start date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID, planID, err := resolvePlan(ctx, user, planFlag)
			if err != nil {
				return err
			}
			days, err := app.Schedule.Materialize(ctx, userID, planID)
			if err != nil {
				return err
			}
			training := 0
			for _, d := range days {
				if !d.IsRest {
					training++
				}
			}
			fmt.Fprintf(app.out(), "Materialized %d days (%d training days) for plan %s\n", len(days), training, planID.Hex())
			return nil
		},
	}

	cmd.Flags().StringVar(&planFlag, "plan", "", "Plan ID")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

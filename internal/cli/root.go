// Package cli implements planctl, a terminal front end over the plan,
// schedule, session and progress services.
package cli

import (
	"alcyxob/workout-planner/internal/service"
	"alcyxob/workout-planner/internal/timer"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// App holds references to all services used by CLI commands.
type App struct {
	Plans    service.PlanService
	Schedule service.ScheduleService
	Sessions service.SessionService
	Progress service.ProgressService

	// ResolveUser maps the --user flag to an account id.
	ResolveUser func(ctx context.Context, email string) (primitive.ObjectID, error)

	TimePerSeries int
	Timer         timer.RunnerConfig

	In  io.Reader
	Out io.Writer

	// NewTicker drives the workout timer; it defaults to a one second ticker.
	NewTicker func() (ticks <-chan time.Time, stop func())
	// IsInteractive reports whether In is a terminal.
	IsInteractive func() bool
}

func (a *App) out() io.Writer {
	if a.Out == nil {
		return os.Stdout
	}
	return a.Out
}

func (a *App) in() io.Reader {
	if a.In == nil {
		return os.Stdin
	}
	return a.In
}

func (a *App) ticker() (<-chan time.Time, func()) {
	if a.NewTicker != nil {
		return a.NewTicker()
	}
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

// NewRootCmd creates the top-level "planctl" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	var userEmail string

	root := &cobra.Command{
		Use:           "planctl",
		Short:         "Inspect training plans and run workouts from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&userEmail, "user", os.Getenv("PLANCTL_USER"), "Email of the account to act as")

	user := func(ctx context.Context) (primitive.ObjectID, error) {
		if userEmail == "" {
			return primitive.NilObjectID, fmt.Errorf("--user is required")
		}
		if app.ResolveUser == nil {
			return primitive.NilObjectID, fmt.Errorf("user lookup is not configured")
		}
		return app.ResolveUser(ctx, userEmail)
	}

	root.AddCommand(
		newScheduleCmd(app, user),
		newMaterializeCmd(app, user),
		newProgressCmd(app, user),
		newWorkoutCmd(app, user),
	)

	return root
}

type userResolver func(ctx context.Context) (primitive.ObjectID, error)

// resolvePlan is the common prologue of commands addressing one plan.
func resolvePlan(ctx context.Context, user userResolver, planFlag string) (primitive.ObjectID, primitive.ObjectID, error) {
	userID, err := user(ctx)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	planID, err := primitive.ObjectIDFromHex(planFlag)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, fmt.Errorf("invalid plan id %q", planFlag)
	}
	return userID, planID, nil
}

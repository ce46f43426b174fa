package cli

import (
	"alcyxob/workout-planner/internal/domain"
	"alcyxob/workout-planner/internal/service"
	"alcyxob/workout-planner/internal/timer"
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const workoutKeys = "keys: enter=done  p=pause  r=resume  s=skip  q=quit"

func newWorkoutCmd(app *App, user userResolver) *cobra.Command {
	var planFlag, dayFlag string
	var week, timePerSeries int

	cmd := &cobra.Command{
		Use:   "workout",
		Short: "Run the session of a plan day with the exercise timer",
		Long: "Starts or resumes the session of --week/--day and walks through the\n" +
			"exercises still to do. Quitting leaves the session open for later.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID, planID, err := resolvePlan(ctx, user, planFlag)
			if err != nil {
				return err
			}
			day, err := domain.ParseWeekday(dayFlag)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("time-per-series") {
				timePerSeries = app.TimePerSeries
			}
			return runWorkout(ctx, app, userID, planID, week, day, timePerSeries)
		},
	}

	cmd.Flags().StringVar(&planFlag, "plan", "", "Plan ID")
	cmd.Flags().IntVar(&week, "week", 1, "Week number (1-based)")
	cmd.Flags().StringVar(&dayFlag, "day", "", "Day of week (Lun, Mar, ... or Mon, Tue, ...)")
	cmd.Flags().IntVar(&timePerSeries, "time-per-series", 0, "Seconds per series, 0 to advance by hand")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("day")

	return cmd
}

func runWorkout(ctx context.Context, app *App, userID, planID primitive.ObjectID, week int, day domain.Weekday, timePerSeries int) error {
	out := app.out()
	session, created, err := app.Sessions.ResolveOrCreate(ctx, userID, planID, week, day)
	if err != nil {
		return err
	}
	hydrated, err := app.Sessions.Hydrate(ctx, userID, session.ID)
	if err != nil {
		return err
	}
	verb := "Resuming"
	if created {
		verb = "Starting"
	}
	fmt.Fprintf(out, "%s %s (week %d, %s)\n", verb, styleBold.Render(session.Title), week, day)
	if app.IsInteractive == nil || app.IsInteractive() {
		fmt.Fprintln(out, styleDim.Render(workoutKeys))
	}

	byOrder := make(map[int]service.HydratedExercise, len(hydrated.Exercises))
	for _, ex := range hydrated.Exercises {
		byOrder[ex.Order] = ex
	}

	commands := make(chan timer.Command)
	done := make(chan struct{})
	defer close(done)
	go readCommands(app.in(), commands, done)

	recorder := service.NewOutcomeRecorder(app.Sessions, userID, session.ID)
	quit := false
	for _, order := range hydrated.DisplayOrder {
		ex := byOrder[order]
		if ex.Exercise == nil {
			continue
		}
		res := runExercise(ctx, app, recorder, ex, timePerSeries, commands)
		if res.ReportErr != nil {
			fmt.Fprintf(out, "%s %s\n", styleYellow.Render("warning:"), res.ReportErr)
		}
		fmt.Fprintf(out, "  %s: %s, %d series\n", ex.Exercise.Name, res.Outcome.Status, res.Outcome.SeriesCompleted)
		if res.Outcome.Status == domain.ExerciseCancelled {
			quit = true
			break
		}
	}

	if quit {
		fmt.Fprintln(out, "Session left open, run the same command to resume.")
		return nil
	}

	hydrated, err = app.Sessions.Hydrate(ctx, userID, session.ID)
	if err != nil {
		return err
	}
	total := hydrated.Session.WarmupSeconds
	for _, ex := range hydrated.Exercises {
		total += ex.Progress.TimeSpentSeconds
	}
	closed, err := app.Sessions.CompleteSession(ctx, userID, session.ID, total)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s in %s\n", styleGreen.Render("Session completed"), formatSeconds(closed.TotalDurationSeconds))
	return nil
}

func runExercise(ctx context.Context, app *App, recorder timer.OutcomeRecorder, ex service.HydratedExercise, timePerSeries int, commands <-chan timer.Command) timer.Result {
	engine := timer.NewEngine(*ex.Exercise, timePerSeries)
	engine.Start()

	cfg := app.Timer
	var last timer.Snapshot
	cfg.OnChange = func(s timer.Snapshot) {
		// redraw on state changes only, plus every ten seconds of countdown
		if s.Phase == last.Phase && s.SeriesCompleted == last.SeriesCompleted && s.Paused == last.Paused && (s.Remaining%10 != 0 || s.Remaining == last.Remaining) {
			return
		}
		last = s
		if !s.Halted {
			fmt.Fprintln(app.out(), formatSnapshot(ex.Exercise.Name, s))
		}
	}
	fmt.Fprintln(app.out(), formatSnapshot(ex.Exercise.Name, engine.Snapshot()))

	ticks, stop := app.ticker()
	defer stop()
	return timer.NewRunner(engine, ex.Order, recorder, cfg).Run(ctx, ticks, commands)
}

// readCommands turns input lines into timer commands until EOF or done.
// Closing commands at EOF makes the running exercise cancel.
// A terminal read cannot be interrupted, so after done the goroutine stays
// parked in Scan until the next line or EOF and then returns without sending.
// planctl exits right after a workout, which releases it.
func readCommands(r io.Reader, commands chan<- timer.Command, done <-chan struct{}) {
	defer close(commands)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-done:
			return
		default:
		}
		cmd, ok := parseCommand(scanner.Text())
		if !ok {
			continue
		}
		select {
		case commands <- cmd:
		case <-done:
			return
		}
	}
}

func parseCommand(line string) (timer.Command, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "n", "d", "done":
		return timer.CmdAdvance, true
	case "p", "pause":
		return timer.CmdPause, true
	case "r", "resume":
		return timer.CmdResume, true
	case "s", "skip":
		return timer.CmdSkip, true
	case "q", "quit", "cancel":
		return timer.CmdCancel, true
	}
	return 0, false
}

package cli

import (
	"alcyxob/workout-planner/internal/cache"
	"alcyxob/workout-planner/internal/domain"
	"alcyxob/workout-planner/internal/metrics"
	"alcyxob/workout-planner/internal/repository/memory"
	"alcyxob/workout-planner/internal/service"
	"alcyxob/workout-planner/internal/timer"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type cliEnv struct {
	app    *App
	out    *bytes.Buffer
	email  string
	userID primitive.ObjectID
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	store := memory.NewStore()
	stores := service.Stores{
		Users:    store.Users(),
		Plans:    store.Plans(),
		Schedule: store.Schedule(),
		Sessions: store.Sessions(),
		Progress: store.Progress(),
		Tx:       store.TxManager(),
	}
	clock := service.Clock(func() time.Time { return time.Date(2024, time.March, 27, 9, 0, 0, 0, time.UTC) })
	m := metrics.NewTestManager()

	env := &cliEnv{out: &bytes.Buffer{}, email: gofakeit.Email()}
	env.app = &App{
		Plans:    service.NewPlanService(stores, cache.Noop{}, m, "UTC"),
		Schedule: service.NewScheduleService(stores, cache.Noop{}, m, clock),
		Sessions: service.NewSessionService(stores, cache.Noop{}, m, clock),
		Progress: service.NewProgressService(stores, cache.Noop{}, clock),
		ResolveUser: func(ctx context.Context, email string) (primitive.ObjectID, error) {
			u, err := store.Users().GetByEmail(ctx, email)
			if err != nil {
				return primitive.NilObjectID, err
			}
			return u.ID, nil
		},
		Out:           env.out,
		In:            strings.NewReader(""),
		NewTicker:     func() (<-chan time.Time, func()) { return nil, func() {} },
		IsInteractive: func() bool { return false },
	}

	id, err := store.Users().Create(context.Background(), &domain.User{Name: gofakeit.Name(), Email: env.email})
	require.NoError(t, err)
	env.userID = id
	return env
}

func (e *cliEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	e.out.Reset()
	root := NewRootCmd(e.app)
	root.SetArgs(append(args, "--user", e.email))
	root.SetOut(e.out)
	return root.ExecuteContext(context.Background())
}

func (e *cliEnv) activePlan(t *testing.T, exercises int) *domain.Plan {
	t.Helper()
	exs := make([]domain.Exercise, exercises)
	for i := range exs {
		exs[i] = domain.Exercise{Name: gofakeit.Word(), Series: 2, Reps: "10"}
	}
	ctx := context.Background()
	plan, _, err := e.app.Plans.Create(ctx, e.userID, service.PlanInput{
		Name:      "Block",
		StartDate: "2024-03-27",
		Timezone:  "UTC",
		Weeks: []domain.Week{{Sessions: []domain.PlannedSession{
			{Day: "Mie", Title: "Upper", Exercises: exs},
			{Day: "Vie", Title: "Lower", Exercises: exs},
		}}},
	})
	require.NoError(t, err)
	plan, err = e.app.Plans.SetStatus(ctx, e.userID, plan.ID, domain.PlanActive)
	require.NoError(t, err)
	return plan
}

func TestScheduleCmd_PreviewFile(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"name": "Preview",
		"startDate": "2024-03-27",
		"timezone": "UTC",
		"weeks": [{"sessions": [
			{"day": "Miércoles", "title": "Upper", "exercises": [{"name": "Press", "series": 3}]},
			{"day": "Someday", "title": "Mystery"}
		]}]
	}`), 0o600))

	require.NoError(t, env.run(t, "schedule", "--file", path))
	out := env.out.String()
	assert.Contains(t, out, "2024-03-27")
	assert.Contains(t, out, "#1 Upper")
	assert.Contains(t, out, "rest")
	assert.Contains(t, out, `day "Someday" not recognized`)
	assert.Equal(t, 7+3, strings.Count(out, "\n"), "warning, header, separator and one line per day")
}

func TestScheduleCmd_StoredPlan(t *testing.T) {
	env := newCLIEnv(t)
	plan := env.activePlan(t, 1)

	require.NoError(t, env.run(t, "schedule", "--plan", plan.ID.Hex()))
	assert.Contains(t, env.out.String(), "#2 Lower")

	require.NoError(t, env.run(t, "materialize", "--plan", plan.ID.Hex()))
	assert.Contains(t, env.out.String(), "Materialized 7 days (2 training days)")

	assert.Error(t, env.run(t, "schedule", "--plan", "not-an-id"))
	assert.Error(t, env.run(t, "schedule"))
}

func TestWorkoutCmd_CompletesSession(t *testing.T) {
	env := newCLIEnv(t)
	plan := env.activePlan(t, 2)
	// two exercises of two series: exercise, rest, exercise, rest each
	env.app.In = strings.NewReader(strings.Repeat("\n", 8))

	require.NoError(t, env.run(t, "workout", "--plan", plan.ID.Hex(), "--week", "1", "--day", "mie"))
	assert.Contains(t, env.out.String(), "Starting")
	assert.Contains(t, env.out.String(), "Session completed")

	require.NoError(t, env.run(t, "progress", "--plan", plan.ID.Hex()))
	out := env.out.String()
	assert.Contains(t, out, "1 completed")
	assert.Contains(t, out, "2/2")
}

func TestWorkoutCmd_QuitLeavesSessionOpen(t *testing.T) {
	env := newCLIEnv(t)
	plan := env.activePlan(t, 3)
	env.app.In = strings.NewReader("s\nq\n")

	require.NoError(t, env.run(t, "workout", "--plan", plan.ID.Hex(), "--day", "Mie"))
	assert.Contains(t, env.out.String(), "Session left open")

	ctx := context.Background()
	session, created, err := env.app.Sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Wednesday)
	require.NoError(t, err)
	assert.False(t, created)
	hydrated, err := env.app.Sessions.Hydrate(ctx, env.userID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExerciseSkipped, hydrated.Exercises[0].Progress.Status)
	assert.Equal(t, domain.ExerciseCancelled, hydrated.Exercises[1].Progress.Status)
	assert.Equal(t, domain.ExercisePending, hydrated.Exercises[2].Progress.Status)
	assert.Equal(t, 0, hydrated.Pointer)

	// resuming revisits the skipped exercise first
	env.app.In = strings.NewReader(strings.Repeat("\n", 12))
	require.NoError(t, env.run(t, "workout", "--plan", plan.ID.Hex(), "--day", "Mie"))
	assert.Contains(t, env.out.String(), "Resuming")
	assert.Contains(t, env.out.String(), "Session completed")
}

func TestWorkoutCmd_RestDay(t *testing.T) {
	env := newCLIEnv(t)
	plan := env.activePlan(t, 1)
	err := env.run(t, "workout", "--plan", plan.ID.Hex(), "--day", "Jue")
	assert.ErrorIs(t, err, service.ErrRestDay)
}

func TestProgressCmd_JSON(t *testing.T) {
	env := newCLIEnv(t)
	plan := env.activePlan(t, 1)
	require.NoError(t, env.run(t, "progress", "--plan", plan.ID.Hex(), "--json"))
	assert.Contains(t, env.out.String(), `"trainingDays": 2`)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want timer.Command
		ok   bool
	}{
		{"", timer.CmdAdvance, true},
		{" Done ", timer.CmdAdvance, true},
		{"p", timer.CmdPause, true},
		{"resume", timer.CmdResume, true},
		{"s", timer.CmdSkip, true},
		{"Q", timer.CmdCancel, true},
		{"jump", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseCommand(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0:00:59", formatSeconds(59))
	assert.Equal(t, "1:01:01", formatSeconds(3661))
}

func TestReadCommands_StopsAfterDone(t *testing.T) {
	pr, pw := io.Pipe()
	commands := make(chan timer.Command)
	done := make(chan struct{})
	go readCommands(pr, commands, done)

	_, err := pw.Write([]byte("p\n"))
	require.NoError(t, err)
	assert.Equal(t, timer.CmdPause, <-commands)

	close(done)
	// the reader is parked in Scan; the next line releases it without a send
	_, err = pw.Write([]byte("s\n"))
	require.NoError(t, err)
	_, open := <-commands
	assert.False(t, open)
	require.NoError(t, pw.Close())
}

package service

import (
	"alcyxob/workout-planner/internal/domain"
	"alcyxob/workout-planner/internal/timer"
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestResolveOrCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.activePlan(t, "2024-03-27", weekOf(4, "Mie", "Vie"), weekOf(2, "Lun"))

	session, created, err := env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Wednesday)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.SessionPending, session.Status)
	assert.Nil(t, session.StartedAt)
	assert.Equal(t, "Session Mie", session.Title)

	rows, err := env.stores.Progress.GetBySessionID(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i, row := range rows {
		assert.Equal(t, i, row.ExerciseOrder)
		assert.Equal(t, domain.ExercisePending, row.Status)
		assert.Equal(t, 3, row.SeriesTotal)
	}

	again, created, err := env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Wednesday)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, session.ID, again.ID)

	_, _, err = env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Thursday)
	assert.ErrorIs(t, err, ErrRestDay)
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 3, domain.Monday)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = env.sessions.ResolveOrCreate(ctx, primitive.NewObjectID(), plan.ID, 1, domain.Wednesday)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestResolveOrCreate_RequiresActivePlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.createPlan(t, "2024-03-27", weekOf(1, "Mie"))

	_, _, err := env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Wednesday)
	assert.ErrorIs(t, err, ErrPlanNotActive)
	assert.ErrorIs(t, err, ErrConflict)

	for _, status := range []domain.PlanStatus{domain.PlanActive, domain.PlanCancelled} {
		_, err = env.plans.SetStatus(ctx, env.userID, plan.ID, status)
		require.NoError(t, err)
	}
	_, _, err = env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Wednesday)
	assert.ErrorIs(t, err, ErrConflict)

	sessions, err := env.stores.Sessions.GetByPlanID(ctx, plan.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions, "no orphaned sessions")
}

func TestResolveOrCreate_NewSessionAfterCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.activePlan(t, "2024-03-27", weekOf(1, "Mie"))

	first, _, err := env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Wednesday)
	require.NoError(t, err)
	_, err = env.sessions.CompleteSession(ctx, env.userID, first.ID, 600)
	require.NoError(t, err)

	second, created, err := env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Wednesday)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestHydrate_Pointer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.activePlan(t, "2024-03-27", weekOf(4, "Mie"))
	session, _, err := env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Wednesday)
	require.NoError(t, err)

	record := func(order int, status domain.ExerciseStatus) {
		_, err := env.sessions.RecordExerciseOutcome(ctx, env.userID, session.ID, order, ExerciseOutcome{Status: status, SeriesCompleted: 3, TimeSpentSeconds: 120})
		require.NoError(t, err)
	}

	h, err := env.sessions.Hydrate(ctx, env.userID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, h.Pointer)
	assert.Equal(t, []int{0, 1, 2, 3}, h.DisplayOrder)
	require.NotNil(t, h.Exercises[0].Exercise)
	assert.Equal(t, plan.Weeks[0].Sessions[0].Exercises[0].Name, h.Exercises[0].Exercise.Name)

	record(0, domain.ExerciseCompleted)
	record(1, domain.ExerciseSkipped)
	record(2, domain.ExerciseCompleted)

	h, err = env.sessions.Hydrate(ctx, env.userID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Pointer, "skipped exercises are revisited")
	assert.Equal(t, []int{1, 3}, h.DisplayOrder)
	assert.Equal(t, domain.SessionInProgress, h.Session.Status)
	assert.NotNil(t, h.Session.StartedAt)

	record(1, domain.ExerciseCompleted)
	record(3, domain.ExerciseCompleted)

	h, err = env.sessions.Hydrate(ctx, env.userID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Pointer, "all done points at the last exercise")
	assert.True(t, h.AllCompleted)
	assert.Empty(t, h.DisplayOrder)
}

func TestResumePointer_Empty(t *testing.T) {
	assert.Equal(t, -1, ResumePointer(nil))
}

func TestRecordExerciseOutcome_Rules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.activePlan(t, "2024-03-27", weekOf(2, "Mie"))
	session, _, err := env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Wednesday)
	require.NoError(t, err)

	// pending is never a valid write
	_, err = env.sessions.RecordExerciseOutcome(ctx, env.userID, session.ID, 0, ExerciseOutcome{Status: domain.ExercisePending})
	assert.ErrorIs(t, err, ErrValidation)

	// skipped rows force zero series and can be revisited
	row, err := env.sessions.RecordExerciseOutcome(ctx, env.userID, session.ID, 0, ExerciseOutcome{Status: domain.ExerciseSkipped, SeriesCompleted: 2})
	require.NoError(t, err)
	assert.Zero(t, row.SeriesCompleted)
	row, err = env.sessions.RecordExerciseOutcome(ctx, env.userID, session.ID, 0, ExerciseOutcome{Status: domain.ExerciseCancelled})
	require.NoError(t, err)
	row, err = env.sessions.RecordExerciseOutcome(ctx, env.userID, session.ID, 0, ExerciseOutcome{Status: domain.ExerciseCompleted, SeriesCompleted: 9, TimeSpentSeconds: -5})
	require.NoError(t, err)
	assert.Equal(t, 3, row.SeriesCompleted, "clamped to the prescription")
	assert.Zero(t, row.TimeSpentSeconds)
	require.NotNil(t, row.CompletedAt)

	// completed accepts only a repeated completed write
	_, err = env.sessions.RecordExerciseOutcome(ctx, env.userID, session.ID, 0, ExerciseOutcome{Status: domain.ExerciseSkipped})
	assert.ErrorIs(t, err, ErrIllegalState)
	_, err = env.sessions.RecordExerciseOutcome(ctx, env.userID, session.ID, 0, ExerciseOutcome{Status: domain.ExerciseCompleted, SeriesCompleted: 3})
	assert.NoError(t, err)

	_, err = env.sessions.RecordExerciseOutcome(ctx, env.userID, session.ID, 7, ExerciseOutcome{Status: domain.ExerciseCompleted})
	assert.ErrorIs(t, err, ErrExerciseNotFound)

	_, err = env.sessions.RecordExerciseOutcome(ctx, primitive.NewObjectID(), session.ID, 0, ExerciseOutcome{Status: domain.ExerciseCompleted})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRecordExerciseOutcome_TerminalSessionRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.activePlan(t, "2024-03-27", weekOf(2, "Mie", "Vie"))

	done, _, err := env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Wednesday)
	require.NoError(t, err)
	_, err = env.sessions.CompleteSession(ctx, env.userID, done.ID, 100)
	require.NoError(t, err)

	_, err = env.sessions.RecordExerciseOutcome(ctx, env.userID, done.ID, 0, ExerciseOutcome{Status: domain.ExerciseCompleted})
	assert.ErrorIs(t, err, ErrSessionTerminal)
	_, err = env.sessions.RecordFeedback(ctx, env.userID, done.ID, 0, domain.SentimentLike, "")
	assert.ErrorIs(t, err, ErrIllegalState)

	abandoned, _, err := env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Friday)
	require.NoError(t, err)
	_, err = env.sessions.CancelSession(ctx, env.userID, abandoned.ID)
	require.NoError(t, err)
	_, err = env.sessions.RecordExerciseOutcome(ctx, env.userID, abandoned.ID, 1, ExerciseOutcome{Status: domain.ExerciseSkipped})
	assert.ErrorIs(t, err, ErrIllegalState)

	rows, err := env.stores.Progress.GetBySessionID(ctx, done.ID)
	require.NoError(t, err)
	for _, row := range rows {
		assert.Equal(t, domain.ExercisePending, row.Status, "rows of closed sessions are immutable")
	}
}

// The final status of each row equals the last accepted write for it.
func TestRecordExerciseOutcome_LastWriteWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.activePlan(t, "2024-03-27", weekOf(5, "Mie"))
	session, _, err := env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Wednesday)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	statuses := []domain.ExerciseStatus{domain.ExerciseInProgress, domain.ExerciseSkipped, domain.ExerciseCancelled, domain.ExerciseCompleted}
	last := map[int]domain.ExerciseStatus{}
	for i := 0; i < 200; i++ {
		order := rng.Intn(5)
		status := statuses[rng.Intn(len(statuses))]
		_, err := env.sessions.RecordExerciseOutcome(ctx, env.userID, session.ID, order, ExerciseOutcome{Status: status, SeriesCompleted: 1})
		if err == nil {
			last[order] = status
		} else {
			require.ErrorIs(t, err, ErrIllegalState)
			require.Equal(t, domain.ExerciseCompleted, last[order])
		}
	}

	rows, err := env.stores.Progress.GetBySessionID(ctx, session.ID)
	require.NoError(t, err)
	for _, row := range rows {
		if want, ok := last[row.ExerciseOrder]; ok {
			assert.Equal(t, want, row.Status, "order %d", row.ExerciseOrder)
		}
	}
}

func TestCompleteSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.activePlan(t, "2024-03-27", weekOf(3, "Mie", "Vie"))
	session, _, err := env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Wednesday)
	require.NoError(t, err)

	completed, err := env.sessions.CompleteSession(ctx, env.userID, session.ID, -3)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, completed.Status)
	assert.Zero(t, completed.TotalDurationSeconds)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.StartedAt)

	env.now = env.now.Add(time.Hour)
	again, err := env.sessions.CompleteSession(ctx, env.userID, session.ID, 999)
	require.NoError(t, err)
	assert.Equal(t, *completed.CompletedAt, *again.CompletedAt, "second completion is a no-op")
	assert.Zero(t, again.TotalDurationSeconds)

	_, err = env.sessions.CancelSession(ctx, env.userID, session.ID)
	assert.ErrorIs(t, err, ErrSessionTerminal)

	other, _, err := env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Friday)
	require.NoError(t, err)
	_, err = env.sessions.CancelSession(ctx, env.userID, other.ID)
	require.NoError(t, err)
	_, err = env.sessions.CompleteSession(ctx, env.userID, other.ID, 10)
	assert.ErrorIs(t, err, ErrCompleteCancelled)
}

func TestRecordFeedbackAndWarmup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.activePlan(t, "2024-03-27", weekOf(2, "Mie"))
	session, _, err := env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Wednesday)
	require.NoError(t, err)

	row, err := env.sessions.RecordFeedback(ctx, env.userID, session.ID, 1, domain.SentimentHard, "  last set was brutal ")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentHard, row.FeedbackSentiment)
	assert.Equal(t, "last set was brutal", row.FeedbackComment)

	_, err = env.sessions.RecordFeedback(ctx, env.userID, session.ID, 1, "meh", "")
	assert.ErrorIs(t, err, ErrInvalidFeedback)

	ws, err := env.sessions.RecordWarmup(ctx, env.userID, session.ID, 300)
	require.NoError(t, err)
	ws, err = env.sessions.RecordWarmup(ctx, env.userID, session.ID, 120)
	require.NoError(t, err)
	assert.Equal(t, 420, ws.WarmupSeconds)
	assert.Equal(t, domain.SessionInProgress, ws.Status)

	_, err = env.sessions.RecordWarmup(ctx, env.userID, session.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOutcomeRecorder_DrivenByTimer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.activePlan(t, "2024-03-27", weekOf(2, "Mie"))
	session, _, err := env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Wednesday)
	require.NoError(t, err)

	recorder := NewOutcomeRecorder(env.sessions, env.userID, session.ID)
	engine := timer.NewEngine(plan.Weeks[0].Sessions[0].Exercises[1], 0)
	runner := timer.NewRunner(engine, 1, recorder, timer.RunnerConfig{})

	commands := make(chan timer.Command, 16)
	commands <- timer.CmdStart
	for i := 0; i < 6; i++ {
		commands <- timer.CmdAdvance
	}
	res := runner.Run(ctx, nil, commands)
	require.NoError(t, res.ReportErr)

	row, err := env.stores.Progress.Get(ctx, session.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ExerciseCompleted, row.Status)
	assert.Equal(t, 3, row.SeriesCompleted)
}

func TestOutcomeRecorder_ClosedSessionFailsFast(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plan := env.activePlan(t, "2024-03-27", weekOf(2, "Mie"))
	session, _, err := env.sessions.ResolveOrCreate(ctx, env.userID, plan.ID, 1, domain.Wednesday)
	require.NoError(t, err)
	_, err = env.sessions.CancelSession(ctx, env.userID, session.ID)
	require.NoError(t, err)

	recorder := NewOutcomeRecorder(env.sessions, env.userID, session.ID)
	err = recorder.RecordOutcome(ctx, 0, timer.Outcome{Status: domain.ExerciseSkipped})
	assert.ErrorIs(t, err, ErrSessionTerminal)
	assert.True(t, timer.IsPermanent(err))

	engine := timer.NewEngine(plan.Weeks[0].Sessions[0].Exercises[0], 0)
	runner := timer.NewRunner(engine, 0, recorder, timer.RunnerConfig{ReportAttempts: 3, ReportBackoff: time.Hour})
	commands := make(chan timer.Command, 1)
	commands <- timer.CmdSkip
	res := runner.Run(ctx, nil, commands)
	assert.ErrorIs(t, res.ReportErr, ErrSessionTerminal)
}

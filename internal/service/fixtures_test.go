package service

import (
	"alcyxob/workout-planner/internal/cache"
	"alcyxob/workout-planner/internal/domain"
	"alcyxob/workout-planner/internal/metrics"
	"alcyxob/workout-planner/internal/repository/memory"
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	_ "time/tzdata"
)

// testEnv wires every service against one in-memory store and a movable clock.
type testEnv struct {
	store    *memory.Store
	stores   Stores
	now      time.Time
	metrics  *metrics.Manager
	cache    cache.PlanCache
	plans    PlanService
	schedule ScheduleService
	sessions SessionService
	progress ProgressService
	userID   primitive.ObjectID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	env := &testEnv{
		store: store,
		stores: Stores{
			Users:    store.Users(),
			Plans:    store.Plans(),
			Schedule: store.Schedule(),
			Sessions: store.Sessions(),
			Progress: store.Progress(),
			Tx:       store.TxManager(),
		},
		now:     time.Date(2024, time.March, 27, 9, 0, 0, 0, time.UTC),
		metrics: metrics.NewTestManager(),
		cache:   cache.NewPlanCache(1, time.Minute),
	}
	clock := Clock(func() time.Time { return env.now })
	env.plans = NewPlanService(env.stores, env.cache, env.metrics, "UTC")
	env.schedule = NewScheduleService(env.stores, env.cache, env.metrics, clock)
	env.sessions = NewSessionService(env.stores, env.cache, env.metrics, clock)
	env.progress = NewProgressService(env.stores, env.cache, clock)

	id, err := store.Users().Create(context.Background(), &domain.User{Name: gofakeit.Name(), Email: gofakeit.Email()})
	require.NoError(t, err)
	env.userID = id
	return env
}

func exercises(n int) []domain.Exercise {
	out := make([]domain.Exercise, n)
	for i := range out {
		out[i] = domain.Exercise{
			Name:        gofakeit.Word(),
			Series:      3,
			Reps:        "8-12",
			RestSeconds: 90,
			Intensity:   "RPE 8",
		}
	}
	return out
}

// weekOf builds a week with one session per tag, each with n exercises.
func weekOf(n int, tags ...string) domain.Week {
	w := domain.Week{}
	for _, tag := range tags {
		w.Sessions = append(w.Sessions, domain.PlannedSession{
			Day:       tag,
			Title:     "Session " + tag,
			Exercises: exercises(n),
		})
	}
	return w
}

func (e *testEnv) createPlan(t *testing.T, start string, weeks ...domain.Week) *domain.Plan {
	t.Helper()
	plan, _, err := e.plans.Create(context.Background(), e.userID, PlanInput{
		Name:      gofakeit.Sentence(3),
		StartDate: start,
		Timezone:  "Europe/Madrid",
		Weeks:     weeks,
	})
	require.NoError(t, err)
	return plan
}

func (e *testEnv) activePlan(t *testing.T, start string, weeks ...domain.Week) *domain.Plan {
	t.Helper()
	plan := e.createPlan(t, start, weeks...)
	plan, err := e.plans.SetStatus(context.Background(), e.userID, plan.ID, domain.PlanActive)
	require.NoError(t, err)
	return plan
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExerciseStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to ExerciseStatus
		want     bool
	}{
		{ExercisePending, ExercisePending, true},
		{ExercisePending, ExerciseInProgress, true},
		{ExercisePending, ExerciseCompleted, true},
		{ExerciseInProgress, ExercisePending, false},
		{ExerciseInProgress, ExerciseSkipped, true},
		{ExerciseSkipped, ExerciseCompleted, true},
		{ExerciseSkipped, ExercisePending, false},
		{ExerciseCancelled, ExerciseInProgress, true},
		{ExerciseCompleted, ExerciseCompleted, true},
		{ExerciseCompleted, ExerciseSkipped, false},
		{ExerciseCompleted, ExercisePending, false},
		{ExercisePending, ExerciseStatus("bogus"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestSessionStatus_Terminal(t *testing.T) {
	assert.False(t, SessionPending.Terminal())
	assert.False(t, SessionInProgress.Terminal())
	assert.True(t, SessionCompleted.Terminal())
	assert.True(t, SessionCancelled.Terminal())
}

func TestPlanStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, PlanDraft.CanTransitionTo(PlanActive))
	assert.True(t, PlanActive.CanTransitionTo(PlanCompleted))
	assert.False(t, PlanCancelled.CanTransitionTo(PlanActive))
	assert.False(t, PlanCompleted.CanTransitionTo(PlanActive))
	assert.False(t, PlanDraft.CanTransitionTo(PlanCompleted))
}

func TestExercise_RepBasedOverridesDuration(t *testing.T) {
	assert.True(t, Exercise{Series: 3, DurationSeconds: 40}.RepBased())
	assert.False(t, Exercise{Series: 3, DurationSeconds: 40}.TimeBased())
	assert.True(t, Exercise{DurationSeconds: 40}.TimeBased())
	assert.False(t, Exercise{}.TimeBased())
}

func TestPlan_SessionFor(t *testing.T) {
	p := &Plan{Weeks: []Week{{Sessions: []PlannedSession{
		{Day: "Lunes", Title: "A"},
		{Day: "Miércoles", Title: "B"},
	}}}}

	s, ok := p.SessionFor(1, Wednesday)
	assert.True(t, ok)
	assert.Equal(t, "B", s.Title)

	_, ok = p.SessionFor(1, Friday)
	assert.False(t, ok)
	_, ok = p.SessionFor(2, Monday)
	assert.False(t, ok)
	_, ok = p.SessionFor(0, Monday)
	assert.False(t, ok)
}

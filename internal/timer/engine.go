// Package timer drives one exercise through ready, exercise, rest and done.
// The engine is a plain state machine advanced by Tick; it never reads a
// clock, so callers decide where ticks come from.
package timer

import (
	"alcyxob/workout-planner/internal/domain"
	"fmt"
)

type Phase int

const (
	PhaseReady Phase = iota
	PhaseExercise
	PhaseRest
	PhaseDone
)

var phaseNames = [...]string{"ready", "exercise", "rest", "done"}

func (p Phase) String() string {
	if p < PhaseReady || p > PhaseDone {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

const (
	DefaultTimePerSeries = 45
	DefaultRestSeconds   = 60
	MinRestSeconds       = 30
	MaxRestSeconds       = 120
)

// ClampRest bounds a rest prescription; zero or negative means the default.
func ClampRest(seconds int) int {
	if seconds <= 0 {
		seconds = DefaultRestSeconds
	}
	if seconds < MinRestSeconds {
		return MinRestSeconds
	}
	if seconds > MaxRestSeconds {
		return MaxRestSeconds
	}
	return seconds
}

// Outcome is what the engine hands to the session when it stops.
type Outcome struct {
	Status           domain.ExerciseStatus
	SeriesCompleted  int
	TimeSpentSeconds int
}

// Snapshot is a read-only view of the engine for display.
type Snapshot struct {
	Phase           Phase
	Remaining       int // seconds left in the current countdown, 0 when open-ended
	Manual          bool
	SeriesCompleted int
	SeriesTotal     int
	Elapsed         int
	Paused          bool
	Halted          bool
}

// Engine is not safe for concurrent use.
type Engine struct {
	exercise        domain.Exercise
	timePerSeries   int
	phase           Phase
	remaining       int
	manual          bool
	seriesCompleted int
	seriesTotal     int
	elapsed         int
	paused          bool
	halted          bool
	outcome         domain.ExerciseStatus
}

// NewEngine prepares an engine in the ready phase. timePerSeries is the
// countdown for rep-based series; 0 means the user advances by hand, a
// negative value selects DefaultTimePerSeries.
func NewEngine(exercise domain.Exercise, timePerSeries int) *Engine {
	if timePerSeries < 0 {
		timePerSeries = DefaultTimePerSeries
	}
	total := exercise.Series
	if total < 1 {
		total = 1
	}
	return &Engine{
		exercise:      exercise,
		timePerSeries: timePerSeries,
		phase:         PhaseReady,
		seriesTotal:   total,
	}
}

func (e *Engine) Phase() Phase { return e.phase }

// Finished reports whether the engine will accept no further transitions.
func (e *Engine) Finished() bool { return e.phase == PhaseDone || e.halted }

func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Phase:           e.phase,
		Remaining:       e.remaining,
		Manual:          e.manual,
		SeriesCompleted: e.seriesCompleted,
		SeriesTotal:     e.seriesTotal,
		Elapsed:         e.elapsed,
		Paused:          e.paused,
		Halted:          e.halted,
	}
}

// Outcome returns the terminal outcome once the engine has finished.
func (e *Engine) Outcome() (Outcome, bool) {
	if !e.Finished() {
		return Outcome{}, false
	}
	out := Outcome{Status: e.outcome, SeriesCompleted: e.seriesCompleted, TimeSpentSeconds: e.elapsed}
	if out.Status != domain.ExerciseCompleted {
		out.SeriesCompleted = 0
	}
	return out, true
}

// Start leaves the ready phase.
func (e *Engine) Start() bool {
	if e.phase != PhaseReady || e.halted {
		return false
	}
	e.enterExercise()
	return true
}

func (e *Engine) enterExercise() {
	e.phase = PhaseExercise
	switch {
	case e.exercise.TimeBased():
		e.remaining, e.manual = e.exercise.DurationSeconds, false
	case e.timePerSeries == 0:
		e.remaining, e.manual = 0, true
	default:
		e.remaining, e.manual = e.timePerSeries, false
	}
}

func (e *Engine) enterRest() {
	e.phase = PhaseRest
	e.manual = false
	e.remaining = ClampRest(e.exercise.RestSeconds)
}

func (e *Engine) finishSeries() {
	e.seriesCompleted++
	if e.seriesCompleted < e.seriesTotal {
		e.enterExercise()
		return
	}
	e.phase = PhaseDone
	e.remaining = 0
	e.outcome = domain.ExerciseCompleted
}

// Tick advances one second. It is a no-op while ready, paused or finished.
func (e *Engine) Tick() {
	if e.paused || e.Finished() || e.phase == PhaseReady {
		return
	}
	e.elapsed++
	if e.manual {
		return
	}
	e.remaining--
	if e.remaining > 0 {
		return
	}
	switch e.phase {
	case PhaseExercise:
		e.enterRest()
	case PhaseRest:
		e.finishSeries()
	}
}

// Advance is the manual "done" action: it ends the current exercise phase,
// or cuts the current rest short.
func (e *Engine) Advance() bool {
	if e.paused || e.Finished() {
		return false
	}
	switch e.phase {
	case PhaseExercise:
		e.enterRest()
	case PhaseRest:
		e.finishSeries()
	default:
		return false
	}
	return true
}

// Pause stops the countdown without touching the remaining time.
func (e *Engine) Pause() bool {
	if e.paused || e.Finished() || e.phase == PhaseReady {
		return false
	}
	e.paused = true
	return true
}

func (e *Engine) Resume() bool {
	if !e.paused {
		return false
	}
	e.paused = false
	return true
}

// Skip halts the engine with a skipped outcome.
func (e *Engine) Skip() bool { return e.halt(domain.ExerciseSkipped) }

// Cancel halts the engine with a cancelled outcome.
func (e *Engine) Cancel() bool { return e.halt(domain.ExerciseCancelled) }

func (e *Engine) halt(status domain.ExerciseStatus) bool {
	if e.Finished() {
		return false
	}
	e.halted = true
	e.paused = false
	e.outcome = status
	return true
}

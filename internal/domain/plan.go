// internal/domain/plan.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanStatus tracks the lifecycle of a Plan.
type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"
	PlanActive    PlanStatus = "active"
	PlanCancelled PlanStatus = "cancelled"
	PlanCompleted PlanStatus = "completed"
)

// Plan is a multi-week training program owned by one user.
// Weeks, sessions and exercises are value objects stored inline.
type Plan struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Name      string             `bson:"name" json:"name"`
	StartDate string             `bson:"startDate" json:"startDate"` // YYYY-MM-DD in Timezone
	Timezone  string             `bson:"timezone" json:"timezone"`   // IANA name fixed at creation
	Status    PlanStatus         `bson:"status" json:"status"`
	Weeks     []Week             `bson:"weeks" json:"weeks"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Week is an ordered list of sessions, each pinned to a day tag.
type Week struct {
	Sessions []PlannedSession `bson:"sessions" json:"sessions"`
}

// PlannedSession is one training day inside a Week. Day holds the tag as it was
// authored; it is normalized with ParseWeekday wherever the schedule is built.
type PlannedSession struct {
	Day       string     `bson:"day" json:"day"`
	Title     string     `bson:"title" json:"title"`
	Exercises []Exercise `bson:"exercises" json:"exercises"`
}

// Exercise is the prescription for one movement in a session.
type Exercise struct {
	Name            string `bson:"name" json:"name"`
	Series          int    `bson:"series,omitempty" json:"series,omitempty"`
	Reps            string `bson:"reps,omitempty" json:"reps,omitempty"` // "8-12", "AMRAP", ...
	DurationSeconds int    `bson:"durationSeconds,omitempty" json:"durationSeconds,omitempty"`
	RestSeconds     int    `bson:"restSeconds,omitempty" json:"restSeconds,omitempty"`
	Intensity       string `bson:"intensity,omitempty" json:"intensity,omitempty"`
	Tempo           string `bson:"tempo,omitempty" json:"tempo,omitempty"`
}

// RepBased reports whether the exercise is prescribed in series/reps. Series or
// reps always win over a stray duration.
func (e Exercise) RepBased() bool {
	return e.Series > 0 || e.Reps != ""
}

// TimeBased reports whether the exercise is a pure countdown of DurationSeconds.
func (e Exercise) TimeBased() bool {
	return e.DurationSeconds > 0 && !e.RepBased()
}

// WeekCount is the number of weeks in the plan structure.
func (p *Plan) WeekCount() int {
	return len(p.Weeks)
}

// IsActive reports whether sessions may be started against the plan.
func (p *Plan) IsActive() bool {
	return p.Status == PlanActive
}

// SessionFor returns the planned session of a week that carries the given day,
// comparing normalized tags. weekNumber is 1-based.
func (p *Plan) SessionFor(weekNumber int, day Weekday) (*PlannedSession, bool) {
	if weekNumber < 1 || weekNumber > len(p.Weeks) {
		return nil, false
	}
	sessions := p.Weeks[weekNumber-1].Sessions
	for i := range sessions {
		parsed, err := ParseWeekday(sessions[i].Day)
		if err == nil && parsed == day {
			return &sessions[i], true
		}
	}
	return nil, false
}

// Valid reports whether s is a known plan status.
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanDraft, PlanActive, PlanCancelled, PlanCompleted:
		return true
	}
	return false
}

var planTransitions = map[PlanStatus][]PlanStatus{
	PlanDraft:  {PlanActive, PlanCancelled},
	PlanActive: {PlanCompleted, PlanCancelled},
}

// CanTransitionTo reports whether a plan in status s may move to next.
func (s PlanStatus) CanTransitionTo(next PlanStatus) bool {
	for _, allowed := range planTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
